package book

import (
	"fmt"
	"strings"
)

type ErrResponse struct {
	Code    string
	Message string
}

func (e ErrResponse) Error() string {
	return e.Message
}

var ErrResponseEntryInvalidJSON = ErrResponse{"invalid_json", "invalid json request: "}
var ErrDuplicateKey = ErrResponse{"duplicate", "a book with this isbn is already stored"}
var ErrUnavailable = ErrResponse{"unavailable", "book storage is temporarily unavailable, try again later"}
var ErrInternal = ErrResponse{"internal", "the server could not process the request"}

const (
	CodeRequired   = "required"
	CodeInvalid    = "invalid"
	CodeOutOfRange = "out_of_range"
)

// FieldError describes a single failed field constraint.
type FieldError struct {
	Field   string
	Code    string
	Message string
}

type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, fe := range v {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Code))
	}
	return "invalid book entry: " + strings.Join(msgs, ", ")
}

func yearRangeMessage(yearMax int) string {
	return fmt.Sprintf("year must be an integer between %d and %d", YearMin, yearMax)
}

type ErrNotificationFailed struct {
	statusCode int
}

func (e ErrNotificationFailed) Error() string {
	return fmt.Sprintf("ntfy wrong response - want: 200 OK, got: %d", e.statusCode)
}

func NewErrNotificationFailed(statusCode int) ErrNotificationFailed {
	return ErrNotificationFailed{statusCode: statusCode}
}
