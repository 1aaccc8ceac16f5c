package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
)

const (
	DriverPQ  = "pq"
	DriverPGX = "pgx"
)

// DBAdapter runs the store's queries on one of the supported postgres drivers.
type DBAdapter interface {
	QueryRow(ctx context.Context, query string) (bookRow, error)
	Exec(ctx context.Context, query string) error
	Ping(ctx context.Context) error
	Close() error
}

/* Connects to the database trought a connection string, using the driver by name, and returns a ready adapter. */
func ConnectDb(ctx context.Context, driver, connStr string) (DBAdapter, error) {
	var adapter DBAdapter
	switch driver {
	case DriverPQ, "":
		db, err := sqlx.Open("postgres", connStr)
		if err != nil {
			return nil, fmt.Errorf("connecting to db, openning: %w", err)
		}
		configureSQLX(db)
		adapter = NewSQLXAdapter(db)
	case DriverPGX:
		dbConfig, err := pgxpool.ParseConfig(connStr)
		if err != nil {
			return nil, fmt.Errorf("connecting to db, parsing config: %w", err)
		}
		configurePGX(dbConfig)
		pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting to db, openning: %w", err)
		}
		adapter = NewPGXAdapter(pool)
	default:
		return nil, fmt.Errorf("connecting to db: unknown driver %q", driver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := adapter.Ping(pingCtx)
	if err != nil {
		adapter.Close()
		return nil, fmt.Errorf("connecting to db, pingging: %w", err)
	}

	log.Println("Successfully connected!")
	return adapter, nil
}

func configureSQLX(db *sqlx.DB) {
	const defaultMaxOpenConnections = 50
	const defaultMaxIdleConnections = 10
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)
}

func configurePGX(dbConfig *pgxpool.Config) {
	const defaultMaxConnections = int32(8)
	const defaultMinConnections = int32(2)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	dbConfig.MaxConns = defaultMaxConnections
	dbConfig.MinConns = defaultMinConnections
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout
}

// SQLXAdapter implements DBAdapter for sqlx.DB over lib/pq.
type SQLXAdapter struct {
	db *sqlx.DB
}

func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

func (s *SQLXAdapter) QueryRow(ctx context.Context, query string) (bookRow, error) {
	var row bookRow
	err := s.db.QueryRowxContext(ctx, query).StructScan(&row)
	return row, err
}

func (s *SQLXAdapter) Exec(ctx context.Context, query string) error {
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *SQLXAdapter) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLXAdapter) Close() error {
	return s.db.Close()
}

// PGXAdapter implements DBAdapter for pgxpool.Pool.
type PGXAdapter struct {
	pool *pgxpool.Pool
}

func NewPGXAdapter(pool *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{pool: pool}
}

func (p *PGXAdapter) QueryRow(ctx context.Context, query string) (bookRow, error) {
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return bookRow{}, err
	}
	return pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[bookRow])
}

func (p *PGXAdapter) Exec(ctx context.Context, query string) error {
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PGXAdapter) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PGXAdapter) Close() error {
	p.pool.Close()
	return nil
}
