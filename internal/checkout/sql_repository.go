package checkout

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type SQLConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SQLRepository struct {
	db     *sql.DB
	driver string
}

func NewSQLRepository(ctx context.Context, cfg SQLConfig) (*SQLRepository, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite allows one writer.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(10)
	}
	return &SQLRepository{db: db, driver: cfg.Driver}, nil
}

func (r *SQLRepository) RunMigrations() error {
	var (
		driver database.Driver
		err    error
	)
	switch r.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{
			MigrationsTable: "checkout_schema_migrations",
		})
	default:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{
			MigrationsTable: "checkout_schema_migrations",
		})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, r.driver, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}
	return nil
}

func (r *SQLRepository) RecordAttempt(ctx context.Context, a *Attempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	query := r.rebind(`INSERT INTO checkout_attempts
	          (id, client_id, session_id, outcome, total_amount, currency, shipping_rate_id, error, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		a.ID.String(),
		a.ClientID,
		a.SessionID.String(),
		a.Outcome,
		a.TotalAmount,
		a.Currency,
		a.ShippingRateID.String(),
		a.Error,
		a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert checkout attempt: %w", err)
	}
	return nil
}

func (r *SQLRepository) ListAttempts(ctx context.Context, clientID string, limit int) ([]*Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.rebind(`SELECT id, client_id, session_id, outcome, total_amount, currency, shipping_rate_id, error, created_at
	          FROM checkout_attempts WHERE client_id = ? ORDER BY created_at DESC LIMIT ?`)

	rows, err := r.db.QueryContext(ctx, query, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query checkout attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		var (
			a                   Attempt
			id, session, rateID string
		)
		if err := rows.Scan(
			&id,
			&a.ClientID,
			&session,
			&a.Outcome,
			&a.TotalAmount,
			&a.Currency,
			&rateID,
			&a.Error,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan checkout attempt row: %w", err)
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse checkout attempt id: %w", err)
		}
		a.SessionID = domain.SessionID(session)
		a.ShippingRateID = domain.ShippingRateID(rateID)
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return attempts, nil
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
