package store

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/territory-cli/internal/db"
	"github.com/sells-group/territory-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS territory_assignments (
	zip             TEXT PRIMARY KEY,
	lat             DOUBLE PRECISION NOT NULL,
	lng             DOUBLE PRECISION NOT NULL,
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	owner_email     TEXT,
	owner_name      TEXT NOT NULL DEFAULT '',
	reason          TEXT NOT NULL,
	source_score    DOUBLE PRECISION,
	dominance_ratio DOUBLE PRECISION,
	neighbor_count  INTEGER NOT NULL DEFAULT 0,
	deal_count      BIGINT NOT NULL DEFAULT 0,
	run_id          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS zip_master (
	zip        TEXT PRIMARY KEY,
	lat        DOUBLE PRECISION NOT NULL,
	lng        DOUBLE PRECISION NOT NULL,
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	state_name TEXT NOT NULL DEFAULT '',
	county     TEXT NOT NULL DEFAULT '',
	population BIGINT,
	timezone   TEXT NOT NULL DEFAULT '',
	run_id     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rep_activity (
	zip        TEXT NOT NULL,
	rep_email  TEXT NOT NULL,
	rep_name   TEXT NOT NULL DEFAULT '',
	deal_count BIGINT NOT NULL,
	status     TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	PRIMARY KEY (zip, rep_email)
);

CREATE TABLE IF NOT EXISTS territory_runs (
	run_id          TEXT PRIMARY KEY,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL,
	zips_considered INTEGER NOT NULL,
	active          INTEGER NOT NULL,
	prospective     INTEGER NOT NULL,
	unassigned      INTEGER NOT NULL,
	summary         JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_territory_assignments_status ON territory_assignments(status);
CREATE INDEX IF NOT EXISTS idx_territory_assignments_state ON territory_assignments(state);
CREATE INDEX IF NOT EXISTS idx_territory_assignments_owner ON territory_assignments(owner_email);
CREATE INDEX IF NOT EXISTS idx_territory_runs_finished_at ON territory_runs(finished_at);
CREATE INDEX IF NOT EXISTS idx_rep_activity_email ON rep_activity(rep_email);
`

const insertRunSQL = `INSERT INTO territory_runs
	(run_id, started_at, finished_at, zips_considered, active, prospective, unassigned, summary)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (run_id) DO UPDATE SET
	finished_at = EXCLUDED.finished_at,
	zips_considered = EXCLUDED.zips_considered,
	active = EXCLUDED.active,
	prospective = EXCLUDED.prospective,
	unassigned = EXCLUDED.unassigned,
	summary = EXCLUDED.summary`

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Export implements export.Exporter.
func (s *PostgresStore) Export(ctx context.Context, res *model.RunResult) error {
	return s.ReplaceAssignments(ctx, res)
}

func (s *PostgresStore) ReplaceAssignments(ctx context.Context, res *model.RunResult) error {
	if res == nil {
		return eris.New("postgres: nil run result")
	}
	summary, err := marshalSummary(res.Summary)
	if err != nil {
		return err
	}

	rows := make([][]any, len(res.Assignments))
	for i, a := range res.Assignments {
		rows[i] = assignmentValues(a, res.Summary.RunID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := db.ReplaceTable(ctx, tx, assignmentTable, assignmentColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: replace assignments")
	}
	if _, err := db.ReplaceTable(ctx, tx, zipMasterTable, zipMasterColumns, zipMasterRows(res.ZipMaster, res.Summary.RunID)); err != nil {
		return eris.Wrap(err, "postgres: replace zip master")
	}
	if _, err := db.ReplaceTable(ctx, tx, repActivityTable, repActivityColumns, repActivityRows(res.Activity, res.Summary.RunID)); err != nil {
		return eris.Wrap(err, "postgres: replace rep activity")
	}

	sum := res.Summary
	if _, err := tx.Exec(ctx, insertRunSQL,
		sum.RunID, sum.StartedAt.UTC(), sum.FinishedAt.UTC(),
		sum.ZipsConsidered, sum.Active, sum.Prospective, sum.Unassigned, string(summary),
	); err != nil {
		return eris.Wrap(err, "postgres: insert run")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func (s *PostgresStore) ListAssignments(ctx context.Context, f Filter) (*Page, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	where, args := f.where(dollar)

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+assignmentTable+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "postgres: count assignments")
	}

	query := fmt.Sprintf("%s%s ORDER BY zip LIMIT %s OFFSET %s",
		selectAssignments, where, dollar(len(args)+1), dollar(len(args)+2))
	rows, err := s.pool.Query(ctx, query, append(args, f.Size, (f.Page-1)*f.Size)...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assignments")
	}
	defer rows.Close()

	page := &Page{Items: []model.TerritoryAssignment{}, Total: int(total), Page: f.Page, Size: f.Size}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan assignment")
		}
		page.Items = append(page.Items, a)
	}
	return page, eris.Wrap(rows.Err(), "postgres: iterate assignments")
}

func (s *PostgresStore) GetAssignment(ctx context.Context, zip string) (*model.TerritoryAssignment, error) {
	a, err := scanAssignment(s.pool.QueryRow(ctx, selectAssignments+" WHERE zip = $1", zip))
	if isNoRows(err) {
		return nil, eris.Wrapf(ErrNotFound, "assignment %s", zip)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get assignment")
	}
	return &a, nil
}

func (s *PostgresStore) EachAssignment(ctx context.Context, fn func(model.TerritoryAssignment) error) error {
	rows, err := s.pool.Query(ctx, selectAssignments+" ORDER BY zip")
	if err != nil {
		return eris.Wrap(err, "postgres: stream assignments")
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return eris.Wrap(err, "postgres: scan assignment")
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return eris.Wrap(rows.Err(), "postgres: iterate assignments")
}

func (s *PostgresStore) ZipActivity(ctx context.Context, zip string) ([]model.RepActivityRecord, error) {
	rows, err := s.pool.Query(ctx, selectRepActivity+" WHERE zip = $1 ORDER BY deal_count DESC, rep_email", zip)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: zip activity")
	}
	defer rows.Close()

	out := []model.RepActivityRecord{}
	for rows.Next() {
		rec, err := scanRepActivity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan activity")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate activity")
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.pool.Query(ctx, "SELECT status, COUNT(*) FROM "+assignmentTable+" GROUP BY status")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	defer rows.Close()

	st := &Stats{ByStatus: emptyStatusCounts()}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stats")
		}
		st.ByStatus[status] = int(n)
		st.Total += int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate stats")
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

func (s *PostgresStore) LatestRun(ctx context.Context) (*model.RunSummary, error) {
	var summary []byte
	err := s.pool.QueryRow(ctx,
		"SELECT summary FROM territory_runs ORDER BY finished_at DESC LIMIT 1",
	).Scan(&summary)
	if isNoRows(err) {
		return nil, eris.Wrap(ErrNotFound, "latest run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest run")
	}
	return unmarshalSummary(summary)
}
