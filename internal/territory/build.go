package territory

import (
	"github.com/sells-group/territory-cli/internal/model"
	"github.com/sells-group/territory-cli/internal/scorer"
	"github.com/sells-group/territory-cli/internal/zipcode"
)

// Build emits exactly one assignment per master ZIP in ascending ZIP order.
// Active ownership wins; otherwise the scorer decision applies. A ZIP with
// no decision was never evaluated because there were no seeds. names maps
// rep emails to display names for prospective owners and may be nil.
func Build(master *zipcode.Master, active map[string]model.ActiveAssignment, decisions map[string]scorer.Decision, names map[string]string) []model.TerritoryAssignment {
	zips := master.Zips()
	out := make([]model.TerritoryAssignment, 0, len(zips))

	for _, z := range zips {
		rec, _ := master.Get(z)
		row := model.TerritoryAssignment{
			Zip:       z,
			City:      rec.City,
			State:     rec.State,
			Latitude:  rec.Latitude,
			Longitude: rec.Longitude,
		}

		if a, ok := active[z]; ok {
			owner := a.OwnerEmail
			row.OwnerEmail = &owner
			row.OwnerName = a.OwnerName
			row.Status = model.StatusActive
			row.Reason = model.ReasonDirectActivity
			row.DealCount = a.OwnerDealCount
			out = append(out, row)
			continue
		}

		d, ok := decisions[z]
		if !ok {
			row.Status = model.StatusUnassigned
			row.Reason = model.ReasonNoActivity
			out = append(out, row)
			continue
		}

		pa := d.Prospective(z)
		row.Reason = pa.Reason
		row.NeighborCount = pa.NeighborCount
		if pa.NeighborCount > 0 {
			score, ratio := pa.Score, pa.DominanceRatio
			row.SourceScore = &score
			row.DominanceRatio = &ratio
		}
		if pa.InferredOwnerEmail != nil {
			row.OwnerEmail = pa.InferredOwnerEmail
			row.OwnerName = names[*pa.InferredOwnerEmail]
			row.Status = model.StatusProspective
		} else {
			row.Status = model.StatusUnassigned
		}
		out = append(out, row)
	}
	return out
}

// OwnerNames maps each rep email to the name it was recorded under, picking
// the smallest non-empty name when a rep appears with several.
func OwnerNames(records []model.RepActivityRecord) map[string]string {
	names := make(map[string]string)
	for _, rec := range records {
		if rec.RepName == "" {
			continue
		}
		if cur, ok := names[rec.RepEmail]; !ok || rec.RepName < cur {
			names[rec.RepEmail] = rec.RepName
		}
	}
	return names
}
