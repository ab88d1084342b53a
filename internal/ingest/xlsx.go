package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// openXLSX loads the workbook and streams the chosen sheet. The first row
// is the header.
func openXLSX(ctx context.Context, path, sheetName string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}

	sheet, err := pickSheet(f, sheetName)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("ingest: sheet %q has no header row", sheet.Name)
	}

	first := xlsxCells(sheet.Rows[0])
	header := make([]string, len(first))
	for i, c := range first {
		header[i] = c.Text
	}

	rowCh := make(chan Record, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		for i, row := range sheet.Rows[1:] {
			if row == nil {
				continue
			}
			cells := xlsxCells(row)
			if blankCells(cells) {
				continue
			}
			select {
			case rowCh <- Record{Line: i + 2, Cells: cells}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: xlsx context cancelled")
				return
			}
		}
	}()

	return &Table{Header: header, Rows: rowCh, Errs: errCh}, nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("ingest: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

// xlsxCells keeps the raw value of number cells so ZIPs formatted as
// numbers can be padded instead of rejected.
func xlsxCells(row *xlsx.Row) []Cell {
	cells := make([]Cell, len(row.Cells))
	for i, c := range row.Cells {
		if c == nil {
			continue
		}
		if c.Type() == xlsx.CellTypeNumeric {
			cells[i] = Cell{Text: c.Value, Numeric: true}
			continue
		}
		cells[i] = cellsFromStrings([]string{c.String()})[0]
	}
	return cells
}

func blankCells(cells []Cell) bool {
	for _, c := range cells {
		if c.Text != "" {
			return false
		}
	}
	return true
}
