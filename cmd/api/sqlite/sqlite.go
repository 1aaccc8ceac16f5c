package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-intake/cmd/api/book"
	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // driver import
)

const (
	dialectSQLite = "sqlite3"
	tableBooks    = "books"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	isbn TEXT,
	year INTEGER,
	created_at DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_books_isbn ON books(isbn);
`

type Store struct {
	db *sqlx.DB
}

type bookRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Author    string    `db:"author"`
	ISBN      *string   `db:"isbn"`
	Year      *int      `db:"year"`
	CreatedAt time.Time `db:"created_at"`
}

/* Opens (or creates) the SQLite file at path and applies the books schema. */
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating sqlite directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// SQLite has a single writer; one connection keeps writes from failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

/* Inserts the book and reads it back inside one transaction. The unique isbn index rejects duplicates. */
func (s *Store) CreateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	builder := goqu.Dialect(dialectSQLite)

	insertSQL, insertArgs, err := builder.Insert(tableBooks).
		Prepared(true).
		Rows(goqu.Record{
			"id":         bookEntry.ID.String(),
			"title":      bookEntry.Title,
			"author":     bookEntry.Author,
			"isbn":       nullable(bookEntry.ISBN),
			"year":       nullable(bookEntry.Year),
			"created_at": bookEntry.CreatedAt.UTC(),
		}).ToSQL()
	if err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", err)
	}

	selectSQL, selectArgs, err := builder.From(tableBooks).
		Prepared(true).
		Select("id", "title", "author", "isbn", "year", "created_at").
		Where(goqu.C("id").Eq(bookEntry.ID.String())).ToSQL()
	if err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", classifyError(err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertSQL, insertArgs...); err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", classifyError(err))
	}

	var row bookRow
	if err := tx.GetContext(ctx, &row, selectSQL, selectArgs...); err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", classifyError(err))
	}

	if err := tx.Commit(); err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", classifyError(err))
	}

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

func classifyError(err error) error {
	var sqliteErr *sqlitedriver.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		switch {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE,
			code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE"):
			return fmt.Errorf("%w: %w", book.ErrDuplicateKey, err)
		case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", book.ErrUnavailable, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", book.ErrUnavailable, err)
	}
	return err
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
