// Package store persists the assignment table, its inputs and run summaries, and
// answers the read side of the query API.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/territory-cli/internal/db"
	"github.com/sells-group/territory-cli/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// Paging limits for ListAssignments.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Filter narrows ListAssignments. Zero values mean "any".
type Filter struct {
	ZipPrefix string                 `json:"zip_prefix,omitempty"`
	City      string                 `json:"city,omitempty"`
	State     string                 `json:"state,omitempty"`
	Status    model.AssignmentStatus `json:"status,omitempty"`
	Page      int                    `json:"page,omitempty"`
	Size      int                    `json:"size,omitempty"`
}

// Normalize fills paging defaults and validates the filter.
func (f Filter) Normalize() (Filter, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Size == 0 {
		f.Size = DefaultPageSize
	}
	var errs []string
	if f.Page < 1 {
		errs = append(errs, "page must be >= 1")
	}
	if f.Size < 1 || f.Size > MaxPageSize {
		errs = append(errs, fmt.Sprintf("size must be between 1 and %d", MaxPageSize))
	}
	if f.Status != "" && !f.Status.Valid() {
		errs = append(errs, fmt.Sprintf("unknown status %q", f.Status))
	}
	if len(errs) > 0 {
		return f, eris.Errorf("store: invalid filter: %s", strings.Join(errs, "; "))
	}
	f.State = strings.ToUpper(strings.TrimSpace(f.State))
	f.ZipPrefix = strings.TrimSpace(f.ZipPrefix)
	f.City = strings.TrimSpace(f.City)
	return f, nil
}

// Page is one page of assignments.
type Page struct {
	Items []model.TerritoryAssignment `json:"items"`
	Total int                         `json:"total"`
	Page  int                         `json:"page"`
	Size  int                         `json:"size"`
}

// Stats summarizes the current table.
type Stats struct {
	Total     int                `json:"total"`
	ByStatus  map[string]int     `json:"by_status"`
	LatestRun *model.RunSummary `json:"latest_run,omitempty"`
}

// Store persists and serves the assignment table. Implementations also
// satisfy export.Exporter.
type Store interface {
	Name() string
	Export(ctx context.Context, res *model.RunResult) error

	// ReplaceAssignments swaps the assignment table and the zip_master and
	// rep_activity input tables, and records the run, in one transaction.
	ReplaceAssignments(ctx context.Context, res *model.RunResult) error
	ListAssignments(ctx context.Context, f Filter) (*Page, error)
	GetAssignment(ctx context.Context, zip string) (*model.TerritoryAssignment, error)
	EachAssignment(ctx context.Context, fn func(model.TerritoryAssignment) error) error
	// ZipActivity returns the stored rep activity for zip, most deals first.
	ZipActivity(ctx context.Context, zip string) ([]model.RepActivityRecord, error)
	Stats(ctx context.Context) (*Stats, error)
	LatestRun(ctx context.Context) (*model.RunSummary, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open connects to the store for driver. SQLite paths get their parent
// directory created.
func Open(ctx context.Context, driver, dsn string, poolCfg db.PoolConfig) (Store, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrap(err, "store: create database directory")
			}
		}
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := NewPostgres(ctx, dsn, poolCfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}

const assignmentTable = "territory_assignments"

// assignmentColumns is the column order for inserts, COPY and selects.
var assignmentColumns = []string{
	"zip", "lat", "lng", "city", "state", "status",
	"owner_email", "owner_name", "reason",
	"source_score", "dominance_ratio", "neighbor_count", "deal_count", "run_id",
}

var selectAssignments = "SELECT " + strings.Join(assignmentColumns[:len(assignmentColumns)-1], ", ") + " FROM " + assignmentTable

func assignmentValues(a model.TerritoryAssignment, runID string) []any {
	return []any{
		a.Zip, a.Latitude, a.Longitude, a.City, a.State, string(a.Status),
		a.OwnerEmail, a.OwnerName, a.Reason,
		a.SourceScore, a.DominanceRatio, a.NeighborCount, a.DealCount, runID,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

// scanAssignment reads the columns of selectAssignments. sql.Null types
// keep it usable with both database/sql and pgx rows.
func scanAssignment(row scannable) (model.TerritoryAssignment, error) {
	var (
		a      model.TerritoryAssignment
		status string
		owner  sql.NullString
		score  sql.NullFloat64
		ratio  sql.NullFloat64
	)
	err := row.Scan(
		&a.Zip, &a.Latitude, &a.Longitude, &a.City, &a.State, &status,
		&owner, &a.OwnerName, &a.Reason,
		&score, &ratio, &a.NeighborCount, &a.DealCount,
	)
	if err != nil {
		return a, err
	}
	a.Status = model.AssignmentStatus(status)
	if owner.Valid {
		a.OwnerEmail = &owner.String
	}
	if score.Valid {
		a.SourceScore = &score.Float64
	}
	if ratio.Valid {
		a.DominanceRatio = &ratio.Float64
	}
	return a, nil
}

// where renders the filter as a WHERE clause; ph formats the nth
// placeholder for the driver.
func (f Filter) where(ph func(n int) string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(expr string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(expr, ph(len(args))))
	}
	if f.ZipPrefix != "" {
		add(`zip LIKE %s ESCAPE '\'`, escapeLike(f.ZipPrefix)+"%")
	}
	if f.City != "" {
		add(`LOWER(city) LIKE %s ESCAPE '\'`, "%"+escapeLike(strings.ToLower(f.City))+"%")
	}
	if f.State != "" {
		add("state = %s", f.State)
	}
	if f.Status != "" {
		add("status = %s", string(f.Status))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

func marshalSummary(s model.RunSummary) ([]byte, error) {
	b, err := json.Marshal(s)
	return b, eris.Wrap(err, "store: marshal run summary")
}

func unmarshalSummary(b []byte) (*model.RunSummary, error) {
	var s model.RunSummary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal run summary")
	}
	return &s, nil
}

func emptyStatusCounts() map[string]int {
	return map[string]int{
		string(model.StatusActive):      0,
		string(model.StatusProspective): 0,
		string(model.StatusUnassigned):  0,
	}
}
