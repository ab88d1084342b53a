package zipcode

import (
	"math"
	"sort"

	"github.com/sells-group/territory-cli/internal/model"
)

// Master is the validated ZIP master keyed by canonical ZIP.
type Master struct {
	byZip map[string]model.ZipRecord
	zips  []string
}

// NewMaster builds a Master from records, keeping the first occurrence of
// each ZIP. Records with a malformed ZIP or out-of-range coordinates are
// rejected and counted.
func NewMaster(records []model.ZipRecord, rej *Rejections) *Master {
	m := &Master{byZip: make(map[string]model.ZipRecord, len(records))}
	for _, rec := range records {
		if reason := m.Add(rec); reason != ReasonOK && rej != nil {
			rej.Add(reason)
		}
	}
	return m
}

// Add inserts one record and returns the rejection reason, if any.
func (m *Master) Add(rec model.ZipRecord) Reason {
	if !Valid(rec.Zip) {
		return ReasonMalformed
	}
	if !ValidCoordinates(rec.Latitude, rec.Longitude) {
		return ReasonBadCoordinates
	}
	if _, dup := m.byZip[rec.Zip]; dup {
		return ReasonDuplicateZip
	}
	m.byZip[rec.Zip] = rec
	m.zips = nil
	return ReasonOK
}

// Len returns the number of ZIPs in the master.
func (m *Master) Len() int {
	return len(m.byZip)
}

// Get returns the record for a canonical ZIP.
func (m *Master) Get(zip string) (model.ZipRecord, bool) {
	rec, ok := m.byZip[zip]
	return rec, ok
}

// Contains reports whether zip is in the master.
func (m *Master) Contains(zip string) bool {
	_, ok := m.byZip[zip]
	return ok
}

// Zips returns every ZIP in ascending order.
func (m *Master) Zips() []string {
	if m.zips == nil {
		m.zips = make([]string, 0, len(m.byZip))
		for z := range m.byZip {
			m.zips = append(m.zips, z)
		}
		sort.Strings(m.zips)
	}
	return m.zips
}

// Resolve normalizes a raw token from an activity source and checks it
// against the master.
func (m *Master) Resolve(raw string, numeric, padShort bool) (string, Reason) {
	zip, reason := NormalizeToken(raw, numeric, padShort)
	if reason != ReasonOK {
		return "", reason
	}
	if !m.Contains(zip) {
		return "", ReasonUnknownZip
	}
	return zip, ReasonOK
}

// NormalizeToken picks the normalization for a source token: numeric tokens
// (spreadsheet number cells) are padded, text tokens are padded only when
// padShort is set.
func NormalizeToken(raw string, numeric, padShort bool) (string, Reason) {
	switch {
	case numeric:
		return normalizeNumericText(raw)
	case padShort:
		return NormalizePadded(raw)
	default:
		return Normalize(raw)
	}
}

// ValidCoordinates reports whether lat/lng are finite and within Earth bounds.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// normalizeNumericText handles number cells rendered as text, e.g. "1234" or "1234.0".
func normalizeNumericText(raw string) (string, Reason) {
	f, ok := parseWholeNumber(raw)
	if !ok {
		return Normalize(raw)
	}
	return NormalizeNumeric(f)
}
