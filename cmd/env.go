package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/segment-assigner/internal/fetcher"
	"github.com/sells-group/segment-assigner/internal/reader"
	"github.com/sells-group/segment-assigner/internal/store"
)

// defaultSQLitePath is used when store.driver is sqlite and no
// database_url is configured.
const defaultSQLitePath = "segment-assigner.db"

// initStore opens the configured run store. It returns a nil Store when
// store.driver is none.
func initStore(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.DatabaseURL
	if cfg.Store.Driver == store.DriverSQLite && dsn == "" {
		dsn = defaultSQLitePath
	}
	st, err := store.Open(ctx, cfg.Store.Driver, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// newReader builds a layer reader that downloads remote sources with the
// configured fetch settings.
func newReader() *reader.Reader {
	return reader.New(fetcher.New(cfg.Fetch.Options()), cfg.Fetch.TempDir)
}
