package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrMissingColumns is returned when a source lacks a required column.
var ErrMissingColumns = eris.New("ingest: missing required columns")

type column struct {
	name     string
	aliases  []string
	required bool
}

// columnIndex maps logical column names to header positions; absent
// optional columns map to -1.
type columnIndex map[string]int

func resolveColumns(source string, header []string, cols []column) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := headerKey(h)
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}

	idx := make(columnIndex, len(cols))
	var missing []string
	for _, c := range cols {
		idx[c.name] = -1
		for _, alias := range c.aliases {
			if pos, ok := positions[headerKey(alias)]; ok {
				idx[c.name] = pos
				break
			}
		}
		if idx[c.name] < 0 && c.required {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Wrapf(ErrMissingColumns, "%s: %s (header: %s)",
			source, strings.Join(missing, ", "), strings.Join(header, ", "))
	}
	return idx, nil
}

// headerKey folds case, surrounding space and a leading BOM.
func headerKey(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, utf8BOM)))
}
