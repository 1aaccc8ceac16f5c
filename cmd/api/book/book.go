package book

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	YearMin = 1450 //First printed books.
)

type Book struct {
	ID        uuid.UUID
	Title     string
	Author    string
	ISBN      *string
	Year      *int
	CreatedAt time.Time
}

type CreateBookRequest struct {
	Title  string
	Author string
	ISBN   *string
	Year   *int
}

/* Trims the text fields and brings a present ISBN to its canonical form. A blank ISBN stays present and fails validation. */
func (req CreateBookRequest) Normalize() CreateBookRequest {
	normalized := CreateBookRequest{
		Title:  strings.TrimSpace(req.Title),
		Author: strings.TrimSpace(req.Author),
		Year:   req.Year,
	}
	if req.ISBN != nil {
		isbn := CanonicalISBN(*req.ISBN)
		normalized.ISBN = &isbn
	}
	return normalized
}

/* Checks every field of the request and returns one FieldError per failed field, in field order. */
func (req CreateBookRequest) Validate(now time.Time) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(req.Title) == "" {
		errs = append(errs, FieldError{Field: "title", Code: CodeRequired, Message: "title must be provided"})
	}
	if strings.TrimSpace(req.Author) == "" {
		errs = append(errs, FieldError{Field: "author", Code: CodeRequired, Message: "author must be provided"})
	}
	if req.ISBN != nil && !ValidISBN(CanonicalISBN(*req.ISBN)) {
		errs = append(errs, FieldError{Field: "isbn", Code: CodeInvalid, Message: "isbn must be a valid ISBN-10 or ISBN-13"})
	}
	if req.Year != nil {
		yearMax := now.Year() + 1
		if *req.Year < YearMin || *req.Year > yearMax {
			errs = append(errs, FieldError{Field: "year", Code: CodeOutOfRange, Message: yearRangeMessage(yearMax)})
		}
	}

	return errs
}

func newBook(req CreateBookRequest, now time.Time) Book {
	return Book{
		ID:        uuid.New(),
		Title:     req.Title,
		Author:    req.Author,
		ISBN:      req.ISBN,
		Year:      req.Year,
		CreatedAt: now.UTC().Round(time.Millisecond),
	}
}
