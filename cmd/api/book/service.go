package book

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

//go:generate mockgen -destination=mocks/mock_book.go -package=mocks github.com/book-intake/cmd/api/book Repository,Notifier

type ServiceAPI interface {
	CreateBook(ctx context.Context, req CreateBookRequest) (Book, error)
}

// Repository is the persistence collaborator. CreateBook must check ISBN uniqueness and
// insert atomically, reporting ErrDuplicateKey or ErrUnavailable wrapped when they apply.
type Repository interface {
	CreateBook(ctx context.Context, bookEntry Book) (Book, error)
}

type Notifier interface {
	BookCreated(ctx context.Context, title, author string) error
}

type Service struct {
	repo                 Repository
	ntfy                 Notifier
	notificationsTimeout time.Duration
}

func NewService(repo Repository, ntfy Notifier, notificationsTimeout time.Duration) *Service {
	return &Service{
		repo:                 repo,
		ntfy:                 ntfy,
		notificationsTimeout: notificationsTimeout,
	}
}

/* Validates the request and, only if it is valid, stores it as a new book with a fresh ID. */
func (s *Service) CreateBook(ctx context.Context, req CreateBookRequest) (Book, error) {
	now := time.Now()
	req = req.Normalize()
	if errs := req.Validate(now); len(errs) > 0 {
		return Book{}, errs
	}

	storedBook, err := s.repo.CreateBook(ctx, newBook(req, now))
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateKey), errors.Is(err, ErrUnavailable):
			return Book{}, err
		case errors.Is(err, context.DeadlineExceeded):
			return Book{}, fmt.Errorf("timeout on call to CreateBook: %w: %w", ErrUnavailable, err)
		default:
			return Book{}, fmt.Errorf("creating book: %w", err)
		}
	}

	if s.ntfy != nil {
		go s.notifyBookCreated(storedBook)
	}

	return storedBook, nil
}

func (s *Service) notifyBookCreated(b Book) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notificationsTimeout)
	defer cancel()
	err := s.ntfy.BookCreated(ctx, b.Title, b.Author)
	if err != nil {
		log.Println("notifying book creation:", err)
	}
}
