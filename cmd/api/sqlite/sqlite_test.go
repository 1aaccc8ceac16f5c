package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/book-intake/cmd/api/book"
	"github.com/book-intake/cmd/api/sqlite"
	"github.com/google/uuid"
	"github.com/matryer/is"
)

var ctx context.Context = context.Background()

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "books.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestCreateBook(t *testing.T) {
	store := openStore(t)

	t.Run("creates a book without errors", func(t *testing.T) {
		is := is.New(t)

		b := book.Book{
			ID:        uuid.New(),
			Title:     "Dune",
			Author:    "Herbert",
			ISBN:      toPointer("9780441172719"),
			Year:      toPointer(1965),
			CreatedAt: time.Now().UTC().Round(time.Millisecond),
		}

		newBook, err := store.CreateBook(ctx, b)
		is.NoErr(err)
		compareBooks(is, newBook, b)
	})

	t.Run("books without isbn do not collide", func(t *testing.T) {
		is := is.New(t)

		for i := 0; i < 2; i++ {
			b := book.Book{
				ID:        uuid.New(),
				Title:     "Untitled draft",
				Author:    "Anonymous",
				CreatedAt: time.Now().UTC().Round(time.Millisecond),
			}
			newBook, err := store.CreateBook(ctx, b)
			is.NoErr(err)
			compareBooks(is, newBook, b)
		}
	})

	t.Run("a stored isbn returns a duplicate key error", func(t *testing.T) {
		is := is.New(t)

		_, err := store.CreateBook(ctx, book.Book{
			ID:        uuid.New(),
			Title:     "Dune again",
			Author:    "Herbert",
			ISBN:      toPointer("9780441172719"),
			CreatedAt: time.Now().UTC().Round(time.Millisecond),
		})
		is.True(errors.Is(err, book.ErrDuplicateKey))
	})
}

func TestCreateBookConcurrently(t *testing.T) {
	is := is.New(t)
	store := openStore(t)

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateBook(ctx, book.Book{
				ID:        uuid.New(),
				Title:     "Dune",
				Author:    "Herbert",
				ISBN:      toPointer("0441172717"),
				CreatedAt: time.Now().UTC().Round(time.Millisecond),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		is.True(errors.Is(err, book.ErrDuplicateKey))
	}
	is.Equal(created, 1)
}

func toPointer[T any](v T) *T {
	return &v
}

func compareBooks(is *is.I, a, b book.Book) {
	is.Helper()

	is.True(a.CreatedAt.Equal(b.CreatedAt))
	b.CreatedAt = a.CreatedAt

	is.Equal(a, b)
}
