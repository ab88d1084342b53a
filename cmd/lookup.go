package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/territory-cli/internal/config"
	"github.com/sells-group/territory-cli/internal/zipcode"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <zip>",
	Short: "Print the stored assignment for one ZIP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("lookup"); err != nil {
			return err
		}
		return lookupZip(cmd.Context(), cfg, args[0], os.Stdout)
	},
}

func lookupZip(ctx context.Context, c *config.Config, raw string, out io.Writer) error {
	zip, reason := zipcode.Normalize(raw)
	if reason != zipcode.ReasonOK {
		return eris.Errorf("lookup: %q is not a 5-digit ZIP code", raw)
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := st.GetAssignment(ctx, zip)
	if err != nil {
		return eris.Wrap(err, "lookup")
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
