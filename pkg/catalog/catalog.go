// Package catalog manages the books owners list for exchange.
package catalog

import (
	"context"

	"bookswap/pkg/apperr"
	"bookswap/pkg/models"
	"bookswap/pkg/store"

	"github.com/go-playground/validator/v10"
)

type BookInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Author      string `json:"author" validate:"required,max=200"`
	Genre       string `json:"genre" validate:"required,max=100"`
	Location    string `json:"location" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Cover       string `json:"cover" validate:"omitempty,max=500"`
}

type Service struct {
	stores   store.Stores
	validate *validator.Validate
}

func NewService(stores store.Stores) *Service {
	return &Service{stores: stores, validate: validator.New()}
}

func (s *Service) CreateBook(ctx context.Context, ownerID string, in BookInput) (*models.Book, error) {
	if ownerID == "" {
		return nil, apperr.New(apperr.InvalidInput, "owner is required")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err, "invalid book")
	}
	if _, err := s.stores.GetUser(ctx, ownerID); err != nil {
		return nil, err
	}

	book := &models.Book{
		Title:       in.Title,
		Author:      in.Author,
		Genre:       in.Genre,
		Location:    in.Location,
		Description: in.Description,
		Cover:       in.Cover,
		Status:      models.BookAvailable,
		OwnerID:     ownerID,
	}
	if err := s.stores.CreateBook(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (s *Service) GetBook(ctx context.Context, id string) (*models.Book, error) {
	return s.stores.GetBook(ctx, id)
}

func (s *Service) ListBooks(ctx context.Context, filter store.BookFilter) ([]models.Book, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.New(apperr.InvalidInput, "unknown book status %q", filter.Status)
	}
	return s.stores.ListBooks(ctx, filter)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]models.Book, error) {
	return s.stores.ListBooksByOwner(ctx, ownerID)
}

// UpdateBook replaces the descriptive fields of a book. Status is changed
// through SetStatus or by the exchange.
func (s *Service) UpdateBook(ctx context.Context, actorID, bookID string, in BookInput) (*models.Book, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err, "invalid book")
	}
	book, err := s.ownedBook(ctx, s.stores, actorID, bookID)
	if err != nil {
		return nil, err
	}

	book.Title = in.Title
	book.Author = in.Author
	book.Genre = in.Genre
	book.Location = in.Location
	book.Description = in.Description
	book.Cover = in.Cover
	if err := s.stores.UpdateBookDetails(ctx, book); err != nil {
		return nil, err
	}
	return s.stores.GetBook(ctx, bookID)
}

// SetStatus is the owner's manual toggle between available and unavailable.
// It is refused while an approved or active transaction holds the book.
func (s *Service) SetStatus(ctx context.Context, actorID, bookID string, status models.BookStatus) (*models.Book, error) {
	if status != models.BookAvailable && status != models.BookUnavailable {
		return nil, apperr.New(apperr.InvalidInput, "status must be available or unavailable")
	}

	var updated *models.Book
	err := s.stores.Atomic(ctx, func(st store.Stores) error {
		book, err := s.ownedBook(ctx, st, actorID, bookID)
		if err != nil {
			return err
		}
		holders, err := st.ListByBook(ctx, bookID, models.HoldingStatuses...)
		if err != nil {
			return err
		}
		if len(holders) > 0 {
			return apperr.New(apperr.InvalidState, "book %s is held by transaction %s", bookID, holders[0].ID)
		}

		ok, err := st.CompareAndSetBookStatus(ctx, bookID, []models.BookStatus{book.Status}, status)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.Conflict, "book %s was modified concurrently", bookID)
		}
		updated, err = st.GetBook(ctx, bookID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteBook removes a book that no open transaction references.
func (s *Service) DeleteBook(ctx context.Context, actorID, bookID string) error {
	return s.stores.Atomic(ctx, func(st store.Stores) error {
		if _, err := s.ownedBook(ctx, st, actorID, bookID); err != nil {
			return err
		}
		open, err := st.ListByBook(ctx, bookID, models.OpenStatuses...)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return apperr.New(apperr.InvalidState, "book %s has %d open transaction(s)", bookID, len(open))
		}
		return st.DeleteBook(ctx, bookID)
	})
}

func (s *Service) ownedBook(ctx context.Context, books store.BookStore, actorID, bookID string) (*models.Book, error) {
	book, err := books.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.OwnerID != actorID {
		return nil, apperr.New(apperr.Forbidden, "only the owner may modify book %s", bookID)
	}
	return book, nil
}
