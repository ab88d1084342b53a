// Package activity fuses raw rep activity rows into per-(ZIP, rep) records
// and derives the active owner of every ZIP with recorded deals.
package activity

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/territory-cli/internal/model"
)

// Row is one normalized rep activity row. Zip must already be canonical.
type Row struct {
	Zip       string
	RepEmail  string
	RepName   string
	DealCount int64
	Status    string
}

// Options tunes aggregation.
type Options struct {
	// RequireActiveStatus restricts active ownership to records whose
	// source status is active.
	RequireActiveStatus bool
}

// Result is the aggregated activity snapshot.
type Result struct {
	// Records holds every (zip, rep) pair with a positive deal count,
	// sorted by zip then email.
	Records []model.RepActivityRecord
	// Active maps each ZIP with an owner to its ActiveAssignment.
	Active map[string]model.ActiveAssignment
	// ZeroCountPairs is the number of (zip, rep) groups dropped for summing to zero.
	ZeroCountPairs int
}

// ActiveZips returns the ZIPs with an active owner in ascending order.
func (r *Result) ActiveZips() []string {
	zips := make([]string, 0, len(r.Active))
	for z := range r.Active {
		zips = append(zips, z)
	}
	sort.Strings(zips)
	return zips
}

type pairKey struct {
	zip   string
	email string
}

// Aggregate groups rows by (zip, lower-cased email), sums deal counts, drops
// groups that total zero and picks the active owner per ZIP. The result does
// not depend on input row order.
func Aggregate(rows []Row, opts Options) *Result {
	groups := make(map[pairKey]*model.RepActivityRecord, len(rows))
	order := make([]pairKey, 0, len(rows))

	for _, row := range rows {
		email := NormalizeEmail(row.RepEmail)
		if email == "" || row.DealCount < 0 {
			continue
		}
		key := pairKey{zip: row.Zip, email: email}
		rec, ok := groups[key]
		if !ok {
			rec = &model.RepActivityRecord{
				Zip:      row.Zip,
				RepEmail: email,
				Status:   model.RepStatusInactive,
			}
			groups[key] = rec
			order = append(order, key)
		}
		rec.DealCount = addSaturating(rec.DealCount, row.DealCount)
		if IsActiveStatus(row.Status) {
			rec.Status = model.RepStatusActive
		}
		if name := strings.TrimSpace(row.RepName); name != "" && (rec.RepName == "" || name < rec.RepName) {
			rec.RepName = name
		}
	}

	res := &Result{Active: make(map[string]model.ActiveAssignment)}
	for _, key := range order {
		rec := groups[key]
		if rec.DealCount == 0 {
			res.ZeroCountPairs++
			continue
		}
		res.Records = append(res.Records, *rec)
	}
	sort.Slice(res.Records, func(i, j int) bool {
		a, b := res.Records[i], res.Records[j]
		if a.Zip != b.Zip {
			return a.Zip < b.Zip
		}
		return a.RepEmail < b.RepEmail
	})

	totals := make(map[string]int64)
	for _, rec := range res.Records {
		totals[rec.Zip] = addSaturating(totals[rec.Zip], rec.DealCount)
		if opts.RequireActiveStatus && rec.Status != model.RepStatusActive {
			continue
		}
		cur, ok := res.Active[rec.Zip]
		if !ok || outranks(rec, cur) {
			res.Active[rec.Zip] = model.ActiveAssignment{
				Zip:            rec.Zip,
				OwnerEmail:     rec.RepEmail,
				OwnerName:      rec.RepName,
				OwnerDealCount: rec.DealCount,
			}
		}
	}
	for zip, a := range res.Active {
		a.TotalDealCount = totals[zip]
		res.Active[zip] = a
	}

	return res
}

// outranks reports whether rec beats the current owner: more deals, or the
// same deals and a lexicographically smaller email.
func outranks(rec model.RepActivityRecord, cur model.ActiveAssignment) bool {
	if rec.DealCount != cur.OwnerDealCount {
		return rec.DealCount > cur.OwnerDealCount
	}
	return rec.RepEmail < cur.OwnerEmail
}

// addSaturating adds two non-negative counts, clamping at math.MaxInt64.
func addSaturating(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// NormalizeEmail trims and lower-cases a rep email.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsActiveStatus reports whether a raw source status means active.
func IsActiveStatus(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "active", "true", "yes":
		return true
	}
	return false
}
