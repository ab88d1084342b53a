package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/territory-cli/internal/model"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS territory_assignments (
	zip             TEXT PRIMARY KEY,
	lat             REAL NOT NULL,
	lng             REAL NOT NULL,
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	owner_email     TEXT,
	owner_name      TEXT NOT NULL DEFAULT '',
	reason          TEXT NOT NULL,
	source_score    REAL,
	dominance_ratio REAL,
	neighbor_count  INTEGER NOT NULL DEFAULT 0,
	deal_count      INTEGER NOT NULL DEFAULT 0,
	run_id          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS zip_master (
	zip        TEXT PRIMARY KEY,
	lat        REAL NOT NULL,
	lng        REAL NOT NULL,
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	state_name TEXT NOT NULL DEFAULT '',
	county     TEXT NOT NULL DEFAULT '',
	population INTEGER,
	timezone   TEXT NOT NULL DEFAULT '',
	run_id     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rep_activity (
	zip        TEXT NOT NULL,
	rep_email  TEXT NOT NULL,
	rep_name   TEXT NOT NULL DEFAULT '',
	deal_count INTEGER NOT NULL,
	status     TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	PRIMARY KEY (zip, rep_email)
);

CREATE TABLE IF NOT EXISTS territory_runs (
	run_id          TEXT PRIMARY KEY,
	started_at      TEXT NOT NULL,
	finished_at     TEXT NOT NULL,
	zips_considered INTEGER NOT NULL,
	active          INTEGER NOT NULL,
	prospective     INTEGER NOT NULL,
	unassigned      INTEGER NOT NULL,
	summary         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_territory_assignments_status ON territory_assignments(status);
CREATE INDEX IF NOT EXISTS idx_territory_assignments_state ON territory_assignments(state);
CREATE INDEX IF NOT EXISTS idx_territory_assignments_owner ON territory_assignments(owner_email);
CREATE INDEX IF NOT EXISTS idx_territory_runs_finished_at ON territory_runs(finished_at);
CREATE INDEX IF NOT EXISTS idx_rep_activity_email ON rep_activity(rep_email);
`

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Export implements export.Exporter.
func (s *SQLiteStore) Export(ctx context.Context, res *model.RunResult) error {
	return s.ReplaceAssignments(ctx, res)
}

func (s *SQLiteStore) ReplaceAssignments(ctx context.Context, res *model.RunResult) error {
	if res == nil {
		return eris.New("sqlite: nil run result")
	}
	summary, err := marshalSummary(res.Summary)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	runID := res.Summary.RunID
	assignments := make([][]any, len(res.Assignments))
	for i, a := range res.Assignments {
		assignments[i] = assignmentValues(a, runID)
	}
	for _, t := range []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{assignmentTable, assignmentColumns, assignments},
		{zipMasterTable, zipMasterColumns, zipMasterRows(res.ZipMaster, runID)},
		{repActivityTable, repActivityColumns, repActivityRows(res.Activity, runID)},
	} {
		if err := replaceSQLiteTable(ctx, tx, t.table, t.columns, t.rows); err != nil {
			return err
		}
	}

	sum := res.Summary
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO territory_runs
			(run_id, started_at, finished_at, zips_considered, active, prospective, unassigned, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, sum.StartedAt.UTC().Format(timeLayout), sum.FinishedAt.UTC().Format(timeLayout),
		sum.ZipsConsidered, sum.Active, sum.Prospective, sum.Unassigned, string(summary),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// replaceSQLiteTable deletes every row of table and inserts rows in its place.
func replaceSQLiteTable(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return eris.Wrapf(err, "sqlite: clear %s", table)
	}
	if len(rows) == 0 {
		return nil
	}

	insert := "INSERT INTO " + table + " (" + strings.Join(columns, ", ") +
		") VALUES (?" + strings.Repeat(", ?", len(columns)-1) + ")"
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return eris.Wrapf(err, "sqlite: prepare insert into %s", table)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: insert into %s (%v)", table, row[0])
		}
	}
	return nil
}

func (s *SQLiteStore) ListAssignments(ctx context.Context, f Filter) (*Page, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	where, args := f.where(func(int) string { return "?" })

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+assignmentTable+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "sqlite: count assignments")
	}

	query := selectAssignments + where + " ORDER BY zip LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, f.Size, (f.Page-1)*f.Size)...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assignments")
	}
	defer rows.Close()

	page := &Page{Items: []model.TerritoryAssignment{}, Total: total, Page: f.Page, Size: f.Size}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assignment")
		}
		page.Items = append(page.Items, a)
	}
	return page, eris.Wrap(rows.Err(), "sqlite: iterate assignments")
}

func (s *SQLiteStore) GetAssignment(ctx context.Context, zip string) (*model.TerritoryAssignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx, selectAssignments+" WHERE zip = ?", zip))
	if isNoRows(err) {
		return nil, eris.Wrapf(ErrNotFound, "assignment %s", zip)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get assignment")
	}
	return &a, nil
}

func (s *SQLiteStore) EachAssignment(ctx context.Context, fn func(model.TerritoryAssignment) error) error {
	rows, err := s.db.QueryContext(ctx, selectAssignments+" ORDER BY zip")
	if err != nil {
		return eris.Wrap(err, "sqlite: stream assignments")
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return eris.Wrap(err, "sqlite: scan assignment")
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return eris.Wrap(rows.Err(), "sqlite: iterate assignments")
}

func (s *SQLiteStore) ZipActivity(ctx context.Context, zip string) ([]model.RepActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRepActivity+" WHERE zip = ? ORDER BY deal_count DESC, rep_email", zip)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: zip activity")
	}
	defer rows.Close()

	out := []model.RepActivityRecord{}
	for rows.Next() {
		rec, err := scanRepActivity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan activity")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate activity")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM "+assignmentTable+" GROUP BY status")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	defer rows.Close()

	st := &Stats{ByStatus: emptyStatusCounts()}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stats")
		}
		st.ByStatus[status] = n
		st.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate stats")
	}

	run, err := s.LatestRun(ctx)
	switch {
	case err == nil:
		st.LatestRun = run
	case !eris.Is(err, ErrNotFound):
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.RunSummary, error) {
	var summary string
	err := s.db.QueryRowContext(ctx,
		"SELECT summary FROM territory_runs ORDER BY finished_at DESC, rowid DESC LIMIT 1",
	).Scan(&summary)
	if isNoRows(err) {
		return nil, eris.Wrap(ErrNotFound, "latest run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest run")
	}
	return unmarshalSummary([]byte(summary))
}
