package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

const utf8BOM = "\ufeff"

// openCSV reads the header synchronously and streams the remaining rows.
func openCSV(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open csv")
	}

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		_ = f.Close()
		if err == io.EOF {
			return nil, eris.New("ingest: csv has no header row")
		}
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	rowCh := make(chan Record, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)
		defer f.Close() //nolint:errcheck

		line := 1
		for {
			fields, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "ingest: read csv row")
				return
			}
			line++
			if blank(fields) {
				continue
			}

			select {
			case rowCh <- Record{Line: line, Cells: cellsFromStrings(fields)}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv context cancelled")
				return
			}
		}
	}()

	return &Table{Header: header, Rows: rowCh, Errs: errCh}, nil
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
