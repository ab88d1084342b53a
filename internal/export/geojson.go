package export

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/territory-cli/internal/model"
)

// GeoJSON writes one point feature per ZIP centroid for map viewers.
type GeoJSON struct {
	Path string
}

// Name implements Exporter.
func (g GeoJSON) Name() string { return "geojson" }

// Export implements Exporter.
func (g GeoJSON) Export(_ context.Context, res *model.RunResult) error {
	fc := FeatureCollection(res.Assignments)
	return writeAtomic(g.Path, func(w io.Writer) error {
		return eris.Wrap(json.NewEncoder(w).Encode(fc), "export: encode geojson")
	})
}

// FeatureCollection builds the GeoJSON collection for assignments.
func FeatureCollection(assignments []model.TerritoryAssignment) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(assignments))}
	bounds := geom.NewBounds(geom.XY)
	for _, a := range assignments {
		pt := geom.NewPointFlat(geom.XY, []float64{a.Longitude, a.Latitude})
		bounds.Extend(pt)

		props := map[string]any{
			"status":         string(a.Status),
			"reason":         a.Reason,
			"city":           a.City,
			"state":          a.State,
			"neighbor_count": a.NeighborCount,
			"deal_count":     a.DealCount,
			"owner_email":    nil,
		}
		if a.OwnerEmail != nil {
			props["owner_email"] = *a.OwnerEmail
		}
		if a.OwnerName != "" {
			props["owner_name"] = a.OwnerName
		}
		if a.SourceScore != nil {
			props["source_score"] = *a.SourceScore
		}
		if a.DominanceRatio != nil {
			props["dominance_ratio"] = *a.DominanceRatio
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         a.Zip,
			Geometry:   pt,
			Properties: props,
		})
	}
	if len(assignments) > 0 {
		fc.BBox = bounds
	}
	return fc
}
