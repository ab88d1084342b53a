package ingest

import (
	"context"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
)

// Synthetic columns holding a shape's coordinates: the point itself, or
// the bounding-box center for other shape types.
const (
	GeometryLatColumn = "_geom_lat"
	GeometryLngColumn = "_geom_lng"
)

// openShapefile streams the dBASE attributes of a shapefile with the
// geometry coordinates appended as two extra columns.
func openShapefile(ctx context.Context, path string) (*Table, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open shapefile")
	}

	fields := reader.Fields()
	header := make([]string, 0, len(fields)+2)
	numeric := make([]bool, len(fields))
	for i, f := range fields {
		header = append(header, strings.TrimRight(f.String(), "\x00"))
		numeric[i] = f.Fieldtype == 'N' || f.Fieldtype == 'F'
	}
	header = append(header, GeometryLatColumn, GeometryLngColumn)

	rowCh := make(chan Record, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)
		defer func() { _ = reader.Close() }()

		line := 1
		for reader.Next() {
			line++
			_, shape := reader.Shape()

			cells := make([]Cell, 0, len(fields)+2)
			for i := range fields {
				cells = append(cells, Cell{
					Text:    strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00")),
					Numeric: numeric[i],
				})
			}
			lat, lng, ok := shapeCoordinates(shape)
			if ok {
				cells = append(cells,
					Cell{Text: strconv.FormatFloat(lat, 'f', -1, 64), Numeric: true},
					Cell{Text: strconv.FormatFloat(lng, 'f', -1, 64), Numeric: true},
				)
			} else {
				cells = append(cells, Cell{}, Cell{})
			}

			select {
			case rowCh <- Record{Line: line, Cells: cells}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: shapefile context cancelled")
				return
			}
		}
		if err := reader.Err(); err != nil {
			errCh <- eris.Wrap(err, "ingest: read shapefile")
		}
	}()

	return &Table{Header: header, Rows: rowCh, Errs: errCh}, nil
}

func shapeCoordinates(s shp.Shape) (lat, lng float64, ok bool) {
	switch shape := s.(type) {
	case nil:
		return 0, 0, false
	case *shp.Null:
		return 0, 0, false
	case *shp.Point:
		return shape.Y, shape.X, true
	default:
		box := s.BBox()
		return (box.MinY + box.MaxY) / 2, (box.MinX + box.MaxX) / 2, true
	}
}
