package logstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	SQLiteFile = "logs.db"
)

// Open builds the store named by backend. dir holds the file records or the sqlite database; dsn is
// only used by the postgres backend.
func Open(backend, dir, dsn string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dir)
	case BackendSQLite:
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, errors.Wrap(err, "error creating logs directory")
		}
		db, err := openDB(sqlite.Open(filepath.Join(dir, SQLiteFile)))
		if err != nil {
			return nil, errors.Wrap(err, "unable to open sqlite log database")
		}
		return NewSQLStore(db)
	case BackendPostgres:
		if dsn == "" {
			return nil, errors.New("postgres log backend requires a dsn")
		}
		db, err := openDB(postgres.Open(dsn))
		if err != nil {
			return nil, errors.Wrap(err, "unable to open postgres log database")
		}
		return NewSQLStore(db)
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

// openDB opens a gorm handle with query tracing. Spans go to the global tracer provider, which is a
// noop unless telemetry is enabled.
func openDB(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, errors.Wrap(err, "unable to register tracing plugin")
	}
	return db, nil
}
