package ingest

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/territory-cli/internal/model"
	"github.com/sells-group/territory-cli/internal/zipcode"
)

var zipMasterColumns = []column{
	{name: "zip", aliases: []string{"zip", "zipcode", "zip_code", "zcta5ce20", "zcta5ce10", "geoid20", "geoid10"}, required: true},
	{name: "lat", aliases: []string{"lat", "latitude", "intptlat20", "intptlat10", GeometryLatColumn}, required: true},
	{name: "lng", aliases: []string{"lng", "lon", "long", "longitude", "intptlon20", "intptlon10", GeometryLngColumn}, required: true},
	{name: "city", aliases: []string{"city", "primary_city", "po_name"}},
	{name: "state", aliases: []string{"state_id", "state", "state_code", "stusps"}},
	{name: "state_name", aliases: []string{"state_name"}},
	{name: "county", aliases: []string{"county_name", "county"}},
	{name: "population", aliases: []string{"population", "pop"}},
	{name: "timezone", aliases: []string{"timezone", "tz"}},
}

// ZipMasterOptions configures LoadZipMaster.
type ZipMasterOptions struct {
	Sheet string
	// PadShortZips left-pads short digit strings in text cells.
	PadShortZips bool
}

// LoadStats counts what a loader read and kept.
type LoadStats struct {
	Rows     int
	Kept     int
	Rejected *zipcode.Rejections
}

// LoadZipMaster reads a ZIP master table. Rows with malformed ZIPs or
// coordinates are skipped and counted; missing required columns fail.
func LoadZipMaster(ctx context.Context, path string, opts ZipMasterOptions) (*zipcode.Master, LoadStats, error) {
	stats := LoadStats{Rejected: &zipcode.Rejections{}}

	tbl, err := Open(ctx, path, ReadOptions{Sheet: opts.Sheet})
	if err != nil {
		return nil, stats, err
	}
	idx, err := resolveColumns(model.SourceZipMaster, tbl.Header, zipMasterColumns)
	if err != nil {
		drain(tbl)
		return nil, stats, err
	}

	master := zipcode.NewMaster(nil, nil)
	titler := titleCaser()

	for rec := range tbl.Rows {
		stats.Rows++
		zr, reason := parseZipRecord(rec, idx, opts.PadShortZips, titler)
		if reason == zipcode.ReasonOK {
			reason = master.Add(zr)
		}
		if reason != zipcode.ReasonOK {
			stats.Rejected.Add(reason)
			continue
		}
		stats.Kept++
	}
	if err := <-tbl.Errs; err != nil {
		return nil, stats, eris.Wrap(err, "ingest: load zip master")
	}

	log := zap.L().With(zap.String("component", "ingest"), zap.String("source", model.SourceZipMaster))
	log.Info("ingest: zip master loaded",
		zap.String("path", path),
		zap.Int("rows", stats.Rows),
		zap.Int("zips", master.Len()),
	)
	if n := stats.Rejected.Total(); n > 0 {
		log.Warn("ingest: zip master rows rejected", zap.Int("rejected", n), zap.Any("reasons", stats.Rejected.Map()))
	}
	return master, stats, nil
}

func parseZipRecord(rec Record, idx columnIndex, padShort bool, titler cases.Caser) (model.ZipRecord, zipcode.Reason) {
	zc := rec.Get(idx["zip"])
	zip, reason := zipcode.NormalizeToken(zc.Text, zc.Numeric, padShort)
	if reason != zipcode.ReasonOK {
		return model.ZipRecord{}, reason
	}

	lat, latErr := strconv.ParseFloat(rec.Get(idx["lat"]).Text, 64)
	lng, lngErr := strconv.ParseFloat(rec.Get(idx["lng"]).Text, 64)
	if latErr != nil || lngErr != nil || !zipcode.ValidCoordinates(lat, lng) {
		return model.ZipRecord{}, zipcode.ReasonBadCoordinates
	}

	zr := model.ZipRecord{
		Zip:       zip,
		Latitude:  lat,
		Longitude: lng,
		City:      cityName(rec.Get(idx["city"]).Text, titler),
		State:     strings.ToUpper(rec.Get(idx["state"]).Text),
		StateName: rec.Get(idx["state_name"]).Text,
		County:    rec.Get(idx["county"]).Text,
		Timezone:  rec.Get(idx["timezone"]).Text,
	}
	if p := rec.Get(idx["population"]).Text; p != "" {
		if f, err := strconv.ParseFloat(p, 64); err == nil && f >= 0 {
			n := int64(f)
			zr.Population = &n
		}
	}
	return zr, zipcode.ReasonOK
}

// cityName title-cases single-case names such as "NEW YORK" and leaves
// mixed-case names like "McAllen" untouched.
func cityName(s string, titler cases.Caser) string {
	s = strings.Join(strings.Fields(s), " ")
	var upper, lower bool
	for _, r := range s {
		upper = upper || unicode.IsUpper(r)
		lower = lower || unicode.IsLower(r)
	}
	if upper && lower {
		return s
	}
	return titler.String(s)
}

// titleCaser returns the caser used for city names.
func titleCaser() cases.Caser {
	return cases.Title(language.English)
}

// drain discards a table's remaining rows so its reader goroutine exits.
func drain(tbl *Table) {
	for range tbl.Rows {
	}
	<-tbl.Errs
}
