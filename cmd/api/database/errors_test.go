package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/book-intake/cmd/api/book"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/matryer/is"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"pq unique violation", &pq.Error{Code: "23505"}, book.ErrDuplicateKey},
		{"pgx unique violation", &pgconn.PgError{Code: "23505"}, book.ErrDuplicateKey},
		{"pq connection failure", &pq.Error{Code: "08006"}, book.ErrUnavailable},
		{"pgx too many connections", &pgconn.PgError{Code: "53300"}, book.ErrUnavailable},
		{"pgx admin shutdown", &pgconn.PgError{Code: "57P01"}, book.ErrUnavailable},
		{"wrapped deadline", fmt.Errorf("querying: %w", context.DeadlineExceeded), book.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			got := classifyError(tt.err)
			is.True(errors.Is(got, tt.want))
			is.True(errors.Is(got, tt.err)) // the cause is kept
		})
	}

	t.Run("unknown errors are not translated", func(t *testing.T) {
		is := is.New(t)
		dbErr := &pq.Error{Code: "42601"} // syntax_error
		got := classifyError(dbErr)
		is.True(!errors.Is(got, book.ErrDuplicateKey))
		is.True(!errors.Is(got, book.ErrUnavailable))
	})
}

func TestBuildInsertBook(t *testing.T) {
	is := is.New(t)

	id := uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	query, err := buildInsertBook(book.Book{
		ID:        id,
		Title:     "L'Étranger",
		Author:    "Camus",
		Year:      toPointer(1942),
		CreatedAt: time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC),
	})
	is.NoErr(err)
	is.True(strings.HasPrefix(query, `INSERT INTO "books"`))
	is.True(strings.Contains(query, `'1b4e28ba-2fa1-11d2-883f-0016d3cca427'`))
	is.True(strings.Contains(query, `'L''Étranger'`)) // quotes are escaped
	is.True(strings.Contains(query, `NULL`))           // missing isbn
	is.True(strings.Contains(query, `1942`))
	is.True(strings.Contains(query, `RETURNING id::text AS "id"`))
}

func toPointer[T any](v T) *T {
	return &v
}
