// Package storeutils constructs store drivers from configuration.
package storeutils

import (
	"context"
	"fmt"

	"github.com/quillworksco/folio/pkg/store"
	"github.com/quillworksco/folio/pkg/store/inmemory"
	"github.com/quillworksco/folio/pkg/store/postgres"
	"github.com/quillworksco/folio/pkg/store/sqlite"
)

type NewDriverOpts struct {
	DriverType string

	// SQLitePath is the database path for the sqlite driver.
	SQLitePath string

	// PostgresURL is the connection string for the postgres driver.
	PostgresURL string
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (store.Driver, error) {
	switch o.DriverType {
	case "inmemory":
		return inmemory.NewDriver(), nil
	case "sqlite":
		return sqlite.NewDriver(o.SQLitePath)
	case "postgres":
		return postgres.NewDriver(ctx, o.PostgresURL)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", o.DriverType)
	}
}
