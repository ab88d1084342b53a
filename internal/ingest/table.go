// Package ingest reads the ZIP master and rep activity sources into the
// engine's input types, counting every rejected row by reason.
package ingest

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Cell is one source value. Numeric marks spreadsheet or dBASE number
// cells, whose ZIPs may have lost leading zeros.
type Cell struct {
	Text    string
	Numeric bool
}

// Record is one data row. Line is 1-based and counts the header.
type Record struct {
	Line  int
	Cells []Cell
}

// Get returns the cell at i, or an empty cell when the row is short.
func (r Record) Get(i int) Cell {
	if i < 0 || i >= len(r.Cells) {
		return Cell{}
	}
	return r.Cells[i]
}

// Table is a streamed source table. Drain Rows, then read Errs once; a
// closed Errs yields nil.
type Table struct {
	Header []string
	Rows   <-chan Record
	Errs   <-chan error
}

// ReadOptions configures table opening.
type ReadOptions struct {
	// Sheet selects an xlsx worksheet by name; empty means the first.
	Sheet string
}

// Open streams the table at path, choosing the reader by extension.
func Open(ctx context.Context, path string, opts ReadOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return openCSV(ctx, path)
	case ".xlsx":
		return openXLSX(ctx, path, opts.Sheet)
	case ".shp":
		return openShapefile(ctx, path)
	default:
		return nil, eris.Errorf("ingest: unsupported source format %q", filepath.Ext(path))
	}
}

func cellsFromStrings(fields []string) []Cell {
	cells := make([]Cell, len(fields))
	for i, f := range fields {
		cells[i] = Cell{Text: strings.TrimSpace(f)}
	}
	return cells
}
