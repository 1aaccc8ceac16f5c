package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/book-intake/cmd/api/book"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation     = "23505"
	pgClassConnection     = "08"
	pgClassResources      = "53"
	pgClassOperatorAction = "57" // includes query_canceled and admin_shutdown
)

/* Translates driver errors into the book package persistence errors. Unknown errors are returned as they came. */
func classifyError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyCode(string(pqErr.Code), err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyCode(pgErr.Code, err)
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr),
		errors.As(err, &netErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", book.ErrUnavailable, err)
	}

	return err
}

func classifyCode(code string, err error) error {
	switch {
	case code == pgUniqueViolation:
		return fmt.Errorf("%w: %w", book.ErrDuplicateKey, err)
	case strings.HasPrefix(code, pgClassConnection),
		strings.HasPrefix(code, pgClassResources),
		strings.HasPrefix(code, pgClassOperatorAction):
		return fmt.Errorf("%w: %w", book.ErrUnavailable, err)
	}
	return err
}
