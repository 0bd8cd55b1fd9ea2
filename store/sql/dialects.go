package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// PersistenceConfig is the subset of persistence client configuration the
// ledger needs to open a database.
type PersistenceConfig interface {
	GetDebug() bool
	GetDriver() string
	GetServer() string
	GetPingTimeout() time.Duration
	GetOtelIdentifier() string
}

// OpenClient opens a persistence client for the delivery ledger using the
// driver named by cfg. Postgres backs production deployments; sqlite covers
// local development and tests.
func OpenClient(cfg PersistenceConfig, dsn string) (*persistence.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sqlstore: persistence config is required")
	}
	driver := strings.TrimSpace(cfg.GetDriver())
	switch driver {
	case "postgres", "pg":
		return OpenPostgres(cfg, dsn)
	case "sqlite", "sqlite3":
		return OpenSQLite(cfg, dsn)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// OpenPostgres opens a postgres-backed persistence client.
func OpenPostgres(cfg PersistenceConfig, dsn string) (*persistence.Client, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}
	client, err := persistence.New(cfg, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return client, nil
}

// OpenSQLite opens a sqlite-backed persistence client.
func OpenSQLite(cfg PersistenceConfig, dsn string) (*persistence.Client, error) {
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return client, nil
}
