package export

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/territory-cli/internal/model"
)

// CSV writes the assignment table to a CSV file.
type CSV struct {
	Path string
}

// Name implements Exporter.
func (c CSV) Name() string { return "csv" }

// Export implements Exporter.
func (c CSV) Export(_ context.Context, res *model.RunResult) error {
	return writeAtomic(c.Path, func(w io.Writer) error {
		return WriteCSV(w, res.Assignments)
	})
}

// WriteCSV encodes assignments with a header row.
func WriteCSV(w io.Writer, assignments []model.TerritoryAssignment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, a := range assignments {
		if err := cw.Write(Row(a)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}
