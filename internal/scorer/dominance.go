package scorer

import (
	"sort"

	"github.com/sells-group/territory-cli/internal/geo"
	"github.com/sells-group/territory-cli/internal/model"
)

// Outcome is the scorer's decision for one ZIP.
type Outcome string

const (
	OutcomeProspective Outcome = "prospective"
	OutcomeUnassigned  Outcome = "unassigned"
)

// OwnerScore is one rep's weighted score among a ZIP's neighbors.
type OwnerScore struct {
	OwnerEmail string  `json:"owner_email"`
	Score      float64 `json:"score"`
	Neighbors  int     `json:"neighbors"`
}

// Decision is the explainable result of scoring one ZIP.
type Decision struct {
	Outcome        Outcome
	Reason         string
	DominantOwner  string
	DominantScore  float64
	TotalScore     float64
	DominanceRatio float64
	NeighborCount  int
	// Owners is the per-owner breakdown, highest score first.
	Owners []OwnerScore
}

// Prospective converts the decision into a ProspectiveAssignment for zip.
func (d Decision) Prospective(zip string) model.ProspectiveAssignment {
	pa := model.ProspectiveAssignment{
		Zip:            zip,
		Score:          d.DominantScore,
		DominanceRatio: d.DominanceRatio,
		NeighborCount:  d.NeighborCount,
		Reason:         d.Reason,
	}
	if d.Outcome == OutcomeProspective {
		owner := d.DominantOwner
		pa.InferredOwnerEmail = &owner
	}
	return pa
}

// Weight is the contribution of one neighbor: deal count decayed by
// 1 + distance so co-located seeds stay finite.
func Weight(dealCount int64, distanceMiles float64) float64 {
	return float64(dealCount) / (1 + distanceMiles)
}

// Score decides ownership of a ZIP from its neighbors. It is a pure
// function: the same neighbors and threshold always give the same decision.
func Score(neighbors []geo.Neighbor, threshold float64) Decision {
	if len(neighbors) == 0 {
		return Decision{Outcome: OutcomeUnassigned, Reason: model.ReasonNoNeighbors}
	}

	byOwner := make(map[string]*OwnerScore, len(neighbors))
	owners := make([]*OwnerScore, 0, len(neighbors))
	for _, n := range neighbors {
		s, ok := byOwner[n.OwnerEmail]
		if !ok {
			s = &OwnerScore{OwnerEmail: n.OwnerEmail}
			byOwner[n.OwnerEmail] = s
			owners = append(owners, s)
		}
		s.Score += Weight(n.DealCount, n.Distance)
		s.Neighbors++
	}

	sort.Slice(owners, func(i, j int) bool {
		if owners[i].Score != owners[j].Score {
			return owners[i].Score > owners[j].Score
		}
		return owners[i].OwnerEmail < owners[j].OwnerEmail
	})

	var total float64
	breakdown := make([]OwnerScore, len(owners))
	for i, s := range owners {
		total += s.Score
		breakdown[i] = *s
	}

	dominant := owners[0]
	d := Decision{
		DominantOwner: dominant.OwnerEmail,
		DominantScore: dominant.Score,
		TotalScore:    total,
		NeighborCount: len(neighbors),
		Owners:        breakdown,
	}
	if total > 0 {
		d.DominanceRatio = dominant.Score / total
	}

	if total > 0 && d.DominanceRatio >= threshold {
		d.Outcome = OutcomeProspective
		d.Reason = model.ReasonDominantNeighbor
	} else {
		d.Outcome = OutcomeUnassigned
		d.Reason = model.ReasonNoClearDominant
	}
	return d
}
