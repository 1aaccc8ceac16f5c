package inmemory

import (
	"context"
	"fmt"

	"github.com/book-intake/cmd/api/book"
	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
)

const tableBook = "book"

type InMemoryStore struct {
	db *memdb.MemDB
}

func NewInMemoryStore() (*InMemoryStore, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableBook: {
				Name: tableBook,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"isbn": { // Books without an ISBN are left out of this index.
						Name:         "isbn",
						Unique:       true,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "ISBN"},
					},
				},
			},
		},
	}

	err := schema.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating in-memory schema: %w", err)
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize in-memory database: %w", err)
	}
	return &InMemoryStore{db: db}, nil
}

type AdaptedBook struct {
	ID     string
	Title  string
	Author string
	ISBN   string
	Year   *int
	Book   book.Book
}

func adaptBook(bookEntry book.Book) AdaptedBook {
	adapted := AdaptedBook{
		ID:     bookEntry.ID.String(),
		Title:  bookEntry.Title,
		Author: bookEntry.Author,
		Year:   bookEntry.Year,
		Book:   bookEntry,
	}
	if bookEntry.ISBN != nil {
		adapted.ISBN = *bookEntry.ISBN
	}
	return adapted
}

/* Stores the book. The ISBN lookup and the insert share one write transaction; memdb allows a single writer at a time. */
func (store *InMemoryStore) CreateBook(ctx context.Context, bookEntry book.Book) (book.Book, error) {
	txn := store.db.Txn(true)
	defer txn.Abort()

	if bookEntry.ISBN != nil {
		raw, err := txn.First(tableBook, "isbn", *bookEntry.ISBN)
		if err != nil {
			return book.Book{}, fmt.Errorf("storing book on db: %w", err)
		}
		if raw != nil {
			return book.Book{}, fmt.Errorf("storing book on db: %w", book.ErrDuplicateKey)
		}
	}

	err := txn.Insert(tableBook, adaptBook(bookEntry))
	if err != nil {
		return book.Book{}, fmt.Errorf("storing book on db: %w", err)
	}
	txn.Commit()

	return bookEntry, nil
}

/* Searches a book by ID. Not part of the intake flow; used to inspect the store. */
func (store *InMemoryStore) GetBookByID(ctx context.Context, id uuid.UUID) (book.Book, bool, error) {
	txn := store.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableBook, "id", id.String())
	if err != nil {
		return book.Book{}, false, fmt.Errorf("searching by ID: %w", err)
	}
	if raw == nil {
		return book.Book{}, false, nil
	}
	return raw.(AdaptedBook).Book, true, nil
}

func (store *InMemoryStore) CountBooks(ctx context.Context) (int, error) {
	txn := store.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableBook, "id")
	if err != nil {
		return 0, fmt.Errorf("counting books: %w", err)
	}
	count := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		count++
	}
	return count, nil
}
