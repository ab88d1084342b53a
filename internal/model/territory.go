// Package model defines the records that flow through the territory pipeline.
package model

import "time"

// AssignmentStatus is the ownership state of a ZIP in the final table.
type AssignmentStatus string

const (
	StatusActive      AssignmentStatus = "active"
	StatusProspective AssignmentStatus = "prospective"
	StatusUnassigned  AssignmentStatus = "unassigned"
)

// Valid reports whether s is one of the known statuses.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case StatusActive, StatusProspective, StatusUnassigned:
		return true
	}
	return false
}

// Inference reasons attached to every TerritoryAssignment.
const (
	ReasonDirectActivity   = "direct deal activity"
	ReasonDominantNeighbor = "dominant neighbor owner"
	ReasonNoClearDominant  = "no clear dominant owner"
	ReasonNoNeighbors      = "no active neighbors in radius"
	ReasonNoActivity       = "no activity, no qualifying neighbors"
)

// Rep activity status values after normalization.
const (
	RepStatusActive   = "ACTIVE"
	RepStatusInactive = "INACTIVE"
)

// ZipRecord is one row of the ZIP master. Immutable once loaded.
type ZipRecord struct {
	Zip        string  `json:"zip"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	StateName  string  `json:"state_name,omitempty"`
	County     string  `json:"county,omitempty"`
	Population *int64  `json:"population,omitempty"`
	Timezone   string  `json:"timezone,omitempty"`
}

// RepActivityRecord is the aggregated activity of one rep at one ZIP.
type RepActivityRecord struct {
	Zip       string `json:"zip"`
	RepEmail  string `json:"rep_email"`
	RepName   string `json:"rep_name,omitempty"`
	DealCount int64  `json:"deal_count"`
	Status    string `json:"status"`
}

// ActiveAssignment is the directly observed owner of a ZIP.
type ActiveAssignment struct {
	Zip            string `json:"zip"`
	OwnerEmail     string `json:"owner_email"`
	OwnerName      string `json:"owner_name,omitempty"`
	OwnerDealCount int64  `json:"owner_deal_count"`
	TotalDealCount int64  `json:"total_deal_count"`
}

// ProspectiveAssignment is the scorer outcome for a ZIP without activity.
type ProspectiveAssignment struct {
	Zip                string  `json:"zip"`
	InferredOwnerEmail *string `json:"inferred_owner_email"`
	Score              float64 `json:"score"`
	DominanceRatio     float64 `json:"dominance_ratio"`
	NeighborCount      int     `json:"neighbor_count"`
	Reason             string  `json:"reason"`
}

// TerritoryAssignment is the final, unified row for one ZIP.
type TerritoryAssignment struct {
	Zip            string           `json:"zip"`
	OwnerEmail     *string          `json:"owner_email"`
	OwnerName      string           `json:"owner_name,omitempty"`
	Status         AssignmentStatus `json:"status"`
	Reason         string           `json:"reason"`
	SourceScore    *float64         `json:"source_score"`
	DominanceRatio *float64         `json:"dominance_ratio,omitempty"`
	NeighborCount  int              `json:"neighbor_count"`
	DealCount      int64            `json:"deal_count"`
	City           string           `json:"city"`
	State          string           `json:"state"`
	Latitude       float64          `json:"latitude"`
	Longitude      float64          `json:"longitude"`
}

// Owner returns the owner email or "" when the ZIP is unowned.
func (a TerritoryAssignment) Owner() string {
	if a.OwnerEmail == nil {
		return ""
	}
	return *a.OwnerEmail
}

// RunParams records the engine parameters a run was computed with.
type RunParams struct {
	RadiusMiles         float64 `json:"radius_miles" yaml:"radius_miles"`
	MaxNeighbors        int     `json:"max_neighbors" yaml:"max_neighbors"`
	DominanceThreshold  float64 `json:"dominance_threshold" yaml:"dominance_threshold"`
	RequireActiveStatus bool    `json:"require_active_status" yaml:"require_active_status"`
}

// Input sources named in rejection counters.
const (
	SourceZipMaster   = "zip_master"
	SourceRepActivity = "rep_activity"
)

// RunSummary holds the counters reported for one pipeline run.
type RunSummary struct {
	RunID          string                    `json:"run_id" yaml:"run_id"`
	StartedAt      time.Time                 `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time                 `json:"finished_at" yaml:"finished_at"`
	Params         RunParams                 `json:"params" yaml:"params"`
	ZipsConsidered int                       `json:"zips_considered" yaml:"zips_considered"`
	Active         int                       `json:"active" yaml:"active"`
	Prospective    int                       `json:"prospective" yaml:"prospective"`
	Unassigned     int                       `json:"unassigned" yaml:"unassigned"`
	ZipMasterRows  int                       `json:"zip_master_rows" yaml:"zip_master_rows"`
	ActivityRows   int                       `json:"activity_rows" yaml:"activity_rows"`
	ActivityPairs  int                       `json:"activity_pairs" yaml:"activity_pairs"`
	ZeroCountPairs int                       `json:"zero_count_pairs" yaml:"zero_count_pairs"`
	Rejected       map[string]map[string]int `json:"rejected" yaml:"rejected"`
}

// RowsProcessed is the number of raw input rows read from both sources.
func (s RunSummary) RowsProcessed() int {
	return s.ZipMasterRows + s.ActivityRows
}

// RejectedTotal sums rejected rows across sources and reasons.
func (s RunSummary) RejectedTotal() int {
	var n int
	for _, byReason := range s.Rejected {
		for _, c := range byReason {
			n += c
		}
	}
	return n
}

// Duration is the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// RunResult is what a finished run hands to exporters. ZipMaster and
// Activity are the normalized inputs the assignments were built from.
type RunResult struct {
	Summary     RunSummary            `json:"summary"`
	Assignments []TerritoryAssignment `json:"assignments"`
	ZipMaster   []ZipRecord           `json:"zip_master,omitempty"`
	Activity    []RepActivityRecord   `json:"activity,omitempty"`
}
