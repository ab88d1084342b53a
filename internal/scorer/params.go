// Package scorer infers a prospective owner for a ZIP from the activity of
// its nearest active neighbors.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Params controls neighbor selection and the dominance policy.
type Params struct {
	RadiusMiles        float64 `json:"radius_miles" yaml:"radius_miles"`
	MaxNeighbors       int     `json:"max_neighbors" yaml:"max_neighbors"`
	DominanceThreshold float64 `json:"dominance_threshold" yaml:"dominance_threshold"`
}

// DefaultParams returns the operator defaults: a 25 mile radius, at most 15
// neighbors, and a 0.6 dominance threshold.
func DefaultParams() Params {
	return Params{
		RadiusMiles:        25,
		MaxNeighbors:       15,
		DominanceThreshold: 0.6,
	}
}

// ValidateParams checks p and reports every problem in a single error.
func ValidateParams(p Params) error {
	var errs []string

	switch {
	case math.IsNaN(p.RadiusMiles) || math.IsInf(p.RadiusMiles, 0):
		errs = append(errs, "radius_miles must be a finite number")
	case p.RadiusMiles <= 0:
		errs = append(errs, fmt.Sprintf("radius_miles must be > 0, got %g", p.RadiusMiles))
	}

	if p.MaxNeighbors < 1 {
		errs = append(errs, fmt.Sprintf("max_neighbors must be >= 1, got %d", p.MaxNeighbors))
	}

	if math.IsNaN(p.DominanceThreshold) || p.DominanceThreshold <= 0 || p.DominanceThreshold > 1 {
		errs = append(errs, fmt.Sprintf("dominance_threshold must be in (0, 1], got %g", p.DominanceThreshold))
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: params validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
