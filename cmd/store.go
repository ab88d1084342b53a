package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/territory-cli/internal/config"
	"github.com/sells-group/territory-cli/internal/db"
	"github.com/sells-group/territory-cli/internal/store"
)

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	if c.Store.Driver == store.DriverNone {
		return nil, eris.New("store is disabled (store.driver = none)")
	}
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL, db.PoolConfig{MaxConns: c.Store.MaxConns})
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}
