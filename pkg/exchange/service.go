// Package exchange implements the lifecycle of a borrow request and keeps
// the requested book's status in step with it.
package exchange

import (
	"context"
	"strings"
	"time"

	"bookswap/pkg/apperr"
	"bookswap/pkg/models"
	"bookswap/pkg/store"
)

const maxMessageLength = 1000

type Service struct {
	stores store.Stores
	now    func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for start and end dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(stores store.Stores, opts ...Option) *Service {
	s := &Service{stores: stores, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTransaction opens a borrow request. The book stays available until
// the owner approves it.
func (s *Service) CreateTransaction(ctx context.Context, bookID, borrowerID, message string) (*models.Transaction, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" || borrowerID == "" {
		return nil, apperr.New(apperr.InvalidInput, "bookId and borrower are required")
	}
	if len(message) > maxMessageLength {
		return nil, apperr.New(apperr.InvalidInput, "message must be at most %d characters", maxMessageLength)
	}

	var created *models.Transaction
	err := s.stores.Atomic(ctx, func(st store.Stores) error {
		book, err := st.GetBook(ctx, bookID)
		if err != nil {
			return err
		}
		if _, err := st.GetUser(ctx, borrowerID); err != nil {
			return err
		}
		if book.Status != models.BookAvailable {
			return apperr.New(apperr.InvalidState, "book %s is %s", book.ID, book.Status)
		}
		if book.OwnerID == borrowerID {
			return apperr.New(apperr.Forbidden, "cannot request your own book")
		}

		existing, err := st.FindActiveByBookAndBorrower(ctx, book.ID, borrowerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.New(apperr.Conflict, "an open request for this book already exists (%s)", existing.ID)
		}

		claimed, err := st.ClaimBook(ctx, book.ID, book.Version)
		if err != nil {
			return err
		}
		if !claimed {
			return apperr.New(apperr.Conflict, "book %s was modified concurrently", book.ID)
		}

		tx := &models.Transaction{
			BookID:     book.ID,
			OwnerID:    book.OwnerID,
			BorrowerID: borrowerID,
			Message:    message,
			Status:     models.StatusRequested,
		}
		if err := st.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		created = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// TransitionTransaction moves a transaction to target on behalf of actorID
// and applies the matching book status change in the same unit of work.
func (s *Service) TransitionTransaction(ctx context.Context, transactionID, actorID string, target models.TransactionStatus) (*models.Transaction, error) {
	if !target.Valid() {
		return nil, apperr.New(apperr.InvalidInput, "unknown status %q", target)
	}

	var updated *models.Transaction
	err := s.stores.Atomic(ctx, func(st store.Stores) error {
		tx, err := st.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if !CanTransition(tx.Status, target) {
			return apperr.New(apperr.InvalidTransition, "cannot move transaction from %s to %s", tx.Status, target)
		}
		if !Authorized(target, RelationOf(tx, actorID)) {
			return apperr.New(apperr.Forbidden, "only the %s may mark a transaction %s", allowedActor[target], target)
		}

		from := tx.Status
		now := s.now().UTC()
		tx.Status = target
		switch target {
		case models.StatusActive:
			tx.StartDate = &now
		case models.StatusCompleted:
			tx.EndDate = &now
		}

		ok, err := st.UpdateTransactionStatus(ctx, tx, from)
		if err != nil {
			return err
		}
		if !ok {
			return lostTransition(ctx, st, transactionID, target)
		}

		if err := syncBook(ctx, st, tx.BookID, from, target); err != nil {
			return err
		}
		updated = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// lostTransition re-reads a transaction whose conditional update matched
// nothing and reports why.
func lostTransition(ctx context.Context, st store.Stores, id string, target models.TransactionStatus) error {
	current, err := st.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current.Status, target) {
		return apperr.New(apperr.InvalidTransition, "cannot move transaction from %s to %s", current.Status, target)
	}
	return apperr.New(apperr.Conflict, "transaction %s was modified concurrently", id)
}

func syncBook(ctx context.Context, st store.Stores, bookID string, from, target models.TransactionStatus) error {
	switch target {
	case models.StatusApproved:
		ok, err := st.CompareAndSetBookStatus(ctx, bookID, []models.BookStatus{models.BookAvailable}, models.BookRented)
		if err != nil {
			return err
		}
		if !ok {
			return bookNotReady(ctx, st, bookID)
		}
	case models.StatusActive:
		ok, err := st.CompareAndSetBookStatus(ctx, bookID, []models.BookStatus{models.BookRented, models.BookAvailable}, models.BookRented)
		if err != nil {
			return err
		}
		if !ok {
			return bookNotReady(ctx, st, bookID)
		}
	case models.StatusRejected, models.StatusCancelled, models.StatusCompleted:
		// A request that never held the book leaves it alone; another
		// approved transaction may be holding it.
		if !from.Holds() {
			return nil
		}
		err := st.UpdateBookStatus(ctx, bookID, models.BookAvailable)
		if err != nil && !apperr.Is(err, apperr.NotFound) {
			return err
		}
	}
	return nil
}

func bookNotReady(ctx context.Context, st store.Stores, bookID string) error {
	book, err := st.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	return apperr.New(apperr.InvalidState, "book %s is %s", book.ID, book.Status)
}

// GetTransaction returns a transaction to one of its parties.
func (s *Service) GetTransaction(ctx context.Context, actorID, transactionID string) (*models.Transaction, error) {
	tx, err := s.stores.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if RelationOf(tx, actorID) == RelationNone {
		return nil, apperr.New(apperr.Forbidden, "not a party to transaction %s", transactionID)
	}
	return tx, nil
}

func (s *Service) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	return s.stores.ListByParticipant(ctx, userID)
}
