package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/book-intake/cmd/api/book"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

//go:generate mockgen -destination=mocks/mock_http.go -package=mocks github.com/book-intake/cmd/api/book ServiceAPI

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1_048_576

type BookHandler struct {
	bookService book.ServiceAPI
}

func NewBookHandler(bookService book.ServiceAPI) *BookHandler {
	return &BookHandler{bookService: bookService}
}

type BookEntry struct {
	Title  string              `json:"title"`
	Author string              `json:"author"`
	ISBN   *string             `json:"isbn"`
	Year   jsoniter.RawMessage `json:"year"` //Kept raw so a non-integer year is reported as a field error.
}

/* Decodes the entry and stores it as a new book. The service validates before anything is stored. */
func (h *BookHandler) createBook(w http.ResponseWriter, r *http.Request) {
	var bookEntry BookEntry
	err := readJSON(w, r, &bookEntry)
	if err != nil {
		log.Println(err)
		responseErrors(w, http.StatusBadRequest, errorEntry{
			Code:    book.ErrResponseEntryInvalidJSON.Code,
			Message: book.ErrResponseEntryInvalidJSON.Message + err.Error(),
		})
		return
	}

	reqBook, yearErr := bookToCreateReq(bookEntry)
	if yearErr != nil {
		errs := append(reqBook.Normalize().Validate(time.Now()), *yearErr)
		responseErrors(w, http.StatusBadRequest, fieldErrorsToEntries(errs)...)
		return
	}

	// A client going away must not abort a write that already started.
	storedBook, err := h.bookService.CreateBook(context.WithoutCancel(r.Context()), reqBook)
	if err != nil {
		createBookError(w, err)
		return
	}

	responseJSON(w, http.StatusCreated, bookToResponse(storedBook))
}

/* Maps the service errors to exactly one http response. */
func createBookError(w http.ResponseWriter, err error) {
	var validationErrs book.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		responseErrors(w, http.StatusBadRequest, fieldErrorsToEntries(validationErrs)...)
	case errors.Is(err, book.ErrDuplicateKey):
		log.Println(err)
		responseErrors(w, http.StatusConflict, errorEntry{
			Field:   "isbn",
			Code:    book.ErrDuplicateKey.Code,
			Message: book.ErrDuplicateKey.Message,
		})
	case errors.Is(err, book.ErrUnavailable):
		log.Println(err)
		responseErrors(w, http.StatusInternalServerError, errorEntry{
			Code:    book.ErrUnavailable.Code,
			Message: book.ErrUnavailable.Message,
		})
	default:
		log.Println(err)
		responseErrors(w, http.StatusInternalServerError, errorEntry{
			Code:    book.ErrInternal.Code,
			Message: book.ErrInternal.Message,
		})
	}
}

/* Converts from BookEntry type to CreateBookRequest type, with no json tags. */
func bookToCreateReq(b BookEntry) (book.CreateBookRequest, *book.FieldError) {
	req := book.CreateBookRequest{
		Title:  b.Title,
		Author: b.Author,
		ISBN:   b.ISBN,
	}

	raw := strings.TrimSpace(string(b.Year))
	if raw == "" || raw == "null" {
		return req, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return req, &book.FieldError{Field: "year", Code: book.CodeInvalid, Message: "year must be an integer"}
	}
	req.Year = &year
	return req, nil
}

type BookResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	ISBN      *string   `json:"isbn"`
	Year      *int      `json:"year"`
	CreatedAt time.Time `json:"createdAt"`
}

/*Copy the fields of a book object to an http layer struct with json tags*/
func bookToResponse(b book.Book) BookResponse {
	return BookResponse{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		ISBN:      b.ISBN,
		Year:      b.Year,
		CreatedAt: b.CreatedAt,
	}
}

type errorEntry struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorsResponse struct {
	Errors []errorEntry `json:"errors"`
}

func fieldErrorsToEntries(errs []book.FieldError) []errorEntry {
	entries := make([]errorEntry, 0, len(errs))
	for _, fe := range errs {
		entries = append(entries, errorEntry{Field: fe.Field, Code: fe.Code, Message: fe.Message})
	}
	return entries
}

func responseErrors(w http.ResponseWriter, status int, entries ...errorEntry) {
	responseJSON(w, status, ErrorsResponse{Errors: entries})
}

/*Writes a JSON response into a http.ResponseWriter. */
func responseJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		log.Println(err)
	}
}

/* Reads a body of at most 1 MB holding a single JSON value and decodes it into dst. */
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesErr.Limit)
		}
		return fmt.Errorf("reading body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("body must not be empty")
	}
	if !json.Valid(body) {
		return errors.New("body contains malformed JSON")
	}
	return json.Unmarshal(body, dst)
}
