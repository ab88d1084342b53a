package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/territory-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestSQLite_ReplaceAndGet(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	res := sampleResult("run-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, s.Export(ctx, res))

	got, err := s.GetAssignment(ctx, "73344")
	require.NoError(t, err)
	assert.Equal(t, res.Assignments[1], *got)

	got, err = s.GetAssignment(ctx, "90210")
	require.NoError(t, err)
	assert.Nil(t, got.OwnerEmail)
	assert.Nil(t, got.SourceScore)
	assert.Nil(t, got.DominanceRatio)

	_, err = s.GetAssignment(ctx, "00000")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_ReplaceDropsStaleRows(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	first := sampleResult("run-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.ReplaceAssignments(ctx, first))

	second := sampleResult("run-2", time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	second.Assignments = second.Assignments[:2]
	second.Summary.ZipsConsidered = 2
	require.NoError(t, s.ReplaceAssignments(ctx, second))

	page, err := s.ListAssignments(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	run, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", run.RunID)
	assert.Equal(t, 2, run.ZipsConsidered)
	assert.Equal(t, 1, run.Rejected[model.SourceZipMaster]["malformed-zip"])
}

func countRows(t *testing.T, s *SQLiteStore, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSQLite_ReplaceStoresInputs(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	res := sampleResult("run-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.ReplaceAssignments(ctx, res))

	assert.Equal(t, 3, countRows(t, s, "zip_master"))

	var (
		county string
		pop    int64
		runID  string
	)
	require.NoError(t, s.db.QueryRow(
		"SELECT county, population, run_id FROM zip_master WHERE zip = ?", "73301",
	).Scan(&county, &pop, &runID))
	assert.Equal(t, "Travis", county)
	assert.Equal(t, int64(1200), pop)
	assert.Equal(t, "run-1", runID)

	recs, err := s.ZipActivity(ctx, "73301")
	require.NoError(t, err)
	assert.Equal(t, res.Activity, recs)

	recs, err = s.ZipActivity(ctx, "90210")
	require.NoError(t, err)
	assert.Empty(t, recs)

	second := sampleResult("run-2", time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	second.ZipMaster = second.ZipMaster[:1]
	second.Activity = nil
	require.NoError(t, s.ReplaceAssignments(ctx, second))
	assert.Equal(t, 1, countRows(t, s, "zip_master"))
	assert.Equal(t, 0, countRows(t, s, "rep_activity"))
}

func TestSQLite_ReplaceFailureKeepsPreviousInputs(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAssignments(ctx, sampleResult("run-1", time.Now())))

	bad := sampleResult("run-2", time.Now())
	bad.Activity = append(bad.Activity, bad.Activity[0])
	require.Error(t, s.ReplaceAssignments(ctx, bad))

	assert.Equal(t, 4, countRows(t, s, "territory_assignments"))
	assert.Equal(t, 3, countRows(t, s, "zip_master"))
	assert.Equal(t, 2, countRows(t, s, "rep_activity"))
	run, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.RunID)
}

func TestSQLite_ReplaceNil(t *testing.T) {
	s := newTestSQLiteStore(t)
	assert.Error(t, s.ReplaceAssignments(context.Background(), nil))
}

func TestSQLite_ListAssignments(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAssignments(ctx, sampleResult("run-1", time.Now())))

	tests := []struct {
		name  string
		f     Filter
		total int
		zips  []string
	}{
		{"all", Filter{}, 4, []string{"73301", "73344", "90210", "9_100"}},
		{"prefix", Filter{ZipPrefix: "733"}, 2, []string{"73301", "73344"}},
		{"prefix underscore is literal", Filter{ZipPrefix: "9_"}, 1, []string{"9_100"}},
		{"city substring case-insensitive", Filter{City: "beverly"}, 1, []string{"90210"}},
		{"state", Filter{State: "ca"}, 2, []string{"90210", "9_100"}},
		{"status", Filter{Status: model.StatusUnassigned}, 2, []string{"90210", "9_100"}},
		{"paged", Filter{Page: 2, Size: 3}, 4, []string{"9_100"}},
		{"past the end", Filter{Page: 5, Size: 3}, 4, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.ListAssignments(ctx, tt.f)
			require.NoError(t, err)
			assert.Equal(t, tt.total, page.Total)
			var zips []string
			for _, a := range page.Items {
				zips = append(zips, a.Zip)
			}
			assert.Equal(t, tt.zips, zips)
		})
	}

	_, err := s.ListAssignments(ctx, Filter{Size: 1000})
	assert.Error(t, err)
}

func TestSQLite_EachAssignment(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAssignments(ctx, sampleResult("run-1", time.Now())))

	var zips []string
	err := s.EachAssignment(ctx, func(a model.TerritoryAssignment) error {
		zips = append(zips, a.Zip)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"73301", "73344", "90210", "9_100"}, zips)

	stop := eris.New("stop")
	err = s.EachAssignment(ctx, func(model.TerritoryAssignment) error { return stop })
	assert.True(t, eris.Is(err, stop))
}

func TestSQLite_Stats(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Total)
	assert.Nil(t, st.LatestRun)
	assert.Equal(t, 0, st.ByStatus["active"])

	_, err = s.LatestRun(ctx)
	assert.True(t, eris.Is(err, ErrNotFound))

	require.NoError(t, s.ReplaceAssignments(ctx, sampleResult("run-1", time.Now())))
	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, map[string]int{"active": 1, "prospective": 1, "unassigned": 2}, st.ByStatus)
	require.NotNil(t, st.LatestRun)
	assert.Equal(t, "run-1", st.LatestRun.RunID)
}
