package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Identifier splits an optionally schema-qualified table name.
func Identifier(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

// CopyFrom bulk-inserts rows into table with the COPY protocol.
func CopyFrom(ctx context.Context, c Copier, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := c.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

// Tx is what ReplaceTable needs from a transaction.
type Tx interface {
	Execer
	Copier
}

// ReplaceTable truncates table and COPYs rows into it. Run it inside a
// transaction so readers see either the old rows or the new ones.
func ReplaceTable(ctx context.Context, tx Tx, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE %s", Identifier(table).Sanitize())); err != nil {
		return 0, eris.Wrapf(err, "db: replace: truncate %s", table)
	}
	n, err := CopyFrom(ctx, tx, table, columns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace")
	}
	if n != int64(len(rows)) {
		return n, eris.Errorf("db: replace: copied %d of %d rows into %s", n, len(rows), table)
	}
	return n, nil
}
