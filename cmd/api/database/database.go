package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/book-intake/cmd/api/book"
	"github.com/doug-martin/goqu/v9"
	"github.com/golang-migrate/migrate/v4"
	"github.com/google/uuid"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const (
	dialectPostgres = "postgres"
	tableBooks      = "books"
)

type Store struct {
	db           DBAdapter
	writeTimeout time.Duration
}

func NewStore(db DBAdapter, writeTimeout time.Duration) *Store {
	return &Store{
		db:           db,
		writeTimeout: writeTimeout,
	}
}

type bookRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Author    string    `db:"author"`
	ISBN      *string   `db:"isbn"`
	Year      *int      `db:"year"`
	CreatedAt time.Time `db:"created_at"`
}

func (row bookRow) toBook() (book.Book, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return book.Book{}, fmt.Errorf("parsing stored id: %w", err)
	}
	return book.Book{
		ID:        id,
		Title:     row.Title,
		Author:    row.Author,
		ISBN:      row.ISBN,
		Year:      row.Year,
		CreatedAt: row.CreatedAt.UTC(),
	}, nil
}

/* Stores the book into the database, checks and returns it if succeed. A unique index on isbn rejects duplicates atomically. */
func (store *Store) CreateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	if store.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, store.writeTimeout)
		defer cancel()
	}

	sqlStatement, err := buildInsertBook(bookEntry)
	if err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", err)
	}

	row, err := store.db.QueryRow(ctx, sqlStatement)
	if err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", classifyError(err))
	}

	return row.toBook()
}

func (store *Store) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func (store *Store) Close() error {
	return store.db.Close()
}

func buildInsertBook(bookEntry book.Book) (string, error) {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(tableBooks).
		Rows(goqu.Record{
			"id":         bookEntry.ID.String(),
			"title":      bookEntry.Title,
			"author":     bookEntry.Author,
			"isbn":       nullable(bookEntry.ISBN),
			"year":       nullable(bookEntry.Year),
			"created_at": bookEntry.CreatedAt,
		}).
		Returning(goqu.L("id::text").As("id"), "title", "author", "isbn", "year", "created_at")

	sqlQuery, _, err := insertStmt.ToSQL()
	if err != nil {
		return "", fmt.Errorf("building insert query: %w", err)
	}
	return sqlQuery, nil
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func newMigrate(connStr, path string) (*migrate.Migrate, error) {
	m, err := migrate.New(fmt.Sprintf("file://%s", path), connStr)
	if err != nil {
		return nil, fmt.Errorf("opening migrations: %w", err)
	}
	return m, nil
}

func MigrationUp(connStr, path string) error {
	m, err := newMigrate(connStr, path)
	if err != nil {
		return fmt.Errorf("migrating up: %w", err)
	}
	defer closeMigrate(m)

	err = m.Up()
	if err != nil {
		return fmt.Errorf("migrating up: %w", err)
	}
	return nil
}

func MigrationDown(connStr, path string) error {
	m, err := newMigrate(connStr, path)
	if err != nil {
		return fmt.Errorf("migrating down: %w", err)
	}
	defer closeMigrate(m)

	err = m.Down()
	if err != nil {
		return fmt.Errorf("migrating down: %w", err)
	}
	return nil
}

func closeMigrate(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		log.Println("closing migrations:", err)
	}
}
