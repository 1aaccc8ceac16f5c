package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/book-intake/cmd/api/book"
	"github.com/jmoiron/sqlx"
	"github.com/matryer/is"
)

const insertDune = `INSERT INTO books (id, title, author, isbn, year, created_at)
VALUES ('2f1c5a8e-6f0b-4d0a-9a53-0d3c1f4b7e11', 'Dune', 'Herbert', '9780441172719', 1965, '2026-10-16 10:00:00')`

// lockedDB returns a connection to a database whose write lock is held by another connection.
func lockedDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "books.db")

	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	holder, err := store.db.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := holder.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		holder.ExecContext(ctx, "ROLLBACK")
		holder.Close()
	})

	db, err := sqlx.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(0)", path))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestClassifyError(t *testing.T) {

	t.Run("locked database is unavailable", func(t *testing.T) {
		is := is.New(t)
		db := lockedDB(t)

		_, err := db.Exec(insertDune)
		is.True(err != nil)

		classified := classifyError(err)
		is.True(errors.Is(classified, book.ErrUnavailable))
		is.True(!errors.Is(classified, book.ErrDuplicateKey))
	})

	t.Run("unique isbn violation is a duplicate", func(t *testing.T) {
		is := is.New(t)
		store, err := Open(filepath.Join(t.TempDir(), "books.db"))
		is.NoErr(err)
		defer store.Close()

		_, err = store.db.Exec(insertDune)
		is.NoErr(err)
		_, err = store.db.Exec(`INSERT INTO books (id, title, author, isbn, created_at)
VALUES ('7d0e4c7a-1b5e-4b8f-8a0e-3c9f2a6d5b22', 'Dune Messiah', 'Herbert', '9780441172719', '2026-10-16 10:00:00')`)
		is.True(err != nil)

		is.True(errors.Is(classifyError(err), book.ErrDuplicateKey))
	})

	t.Run("deadline is unavailable", func(t *testing.T) {
		is := is.New(t)
		err := fmt.Errorf("begin tx: %w", context.DeadlineExceeded)
		is.True(errors.Is(classifyError(err), book.ErrUnavailable))
	})

	t.Run("other errors pass through", func(t *testing.T) {
		is := is.New(t)
		err := errors.New("no such table: books")
		is.Equal(classifyError(err), err)
	})
}
