// Package database provides the Postgres connection, query building,
// transactions and migrations used by the repositories.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// DB is the database handle repositories depend on
type DB interface {
	Querier
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Config holds Postgres connection settings
type Config struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the connection string for lib/pq
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:   c.Name,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) *DatabaseInstance {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
	}
}

// Connect opens and pings a pooled connection
func Connect(ctx context.Context, cfg Config, logger ectologger.Logger) (*DatabaseInstance, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sqlx.ConnectContext(ctx, driver, cfg.DSN())
	if err != nil {
		logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"host": cfg.Host,
			"name": cfg.Name,
		}).Error("Failed to connect to database")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return NewDatabaseInstance(db, logger), nil
}

// Ping satisfies health checks that take no context
func (db *DatabaseInstance) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// WithTx runs fn inside a transaction on this database
func (db *DatabaseInstance) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, db, db.logger, fn)
}
