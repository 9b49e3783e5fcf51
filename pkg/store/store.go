// Package store persists users, books, transactions and ratings with gorm.
//
// Every mutation that races with another writer is expressed as a
// conditional UPDATE and reports whether it matched, so callers can turn a
// lost race into a Conflict instead of overwriting.
package store

import (
	"context"
	"errors"

	"bookswap/pkg/apperr"
	"bookswap/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// invalidTextRepresentation is what postgres raises when a value does not
// parse as the column type, for instance a malformed uuid.
const invalidTextRepresentation = "22P02"

type BookFilter struct {
	Title    string
	Author   string
	Genre    string
	Location string
	Status   models.BookStatus
}

type BookStore interface {
	GetBook(ctx context.Context, id string) (*models.Book, error)
	CreateBook(ctx context.Context, book *models.Book) error
	UpdateBookDetails(ctx context.Context, book *models.Book) error
	UpdateBookStatus(ctx context.Context, id string, status models.BookStatus) error
	// CompareAndSetBookStatus moves the book to status only if its current
	// status is one of from.
	CompareAndSetBookStatus(ctx context.Context, id string, from []models.BookStatus, to models.BookStatus) (bool, error)
	// ClaimBook bumps the book version if it is still available at version.
	ClaimBook(ctx context.Context, id string, version int) (bool, error)
	DeleteBook(ctx context.Context, id string) error
	ListBooksByOwner(ctx context.Context, ownerID string) ([]models.Book, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]models.Book, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUserProfile(ctx context.Context, id, name, mobile string) error
	AppendRating(ctx context.Context, userID string, rating *models.Rating) error
	ListRatings(ctx context.Context, userID string) ([]models.Rating, error)
	// FindRating returns the rating raterID gave userID for transactionID,
	// or nil when there is none.
	FindRating(ctx context.Context, userID, raterID, transactionID string) (*models.Rating, error)
}

type TransactionStore interface {
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	// UpdateTransactionStatus writes the new status and dates only if the
	// stored status still equals from.
	UpdateTransactionStatus(ctx context.Context, tx *models.Transaction, from models.TransactionStatus) (bool, error)
	FindActiveByBookAndBorrower(ctx context.Context, bookID, borrowerID string) (*models.Transaction, error)
	ListByParticipant(ctx context.Context, userID string) ([]models.Transaction, error)
	ListByBook(ctx context.Context, bookID string, statuses ...models.TransactionStatus) ([]models.Transaction, error)
	ListHolding(ctx context.Context) ([]models.Transaction, error)
}

// Stores bundles the three stores with a unit of work. Inside Atomic every
// read and write goes through the same database transaction.
type Stores interface {
	BookStore
	UserStore
	TransactionStore
	Atomic(ctx context.Context, fn func(s Stores) error) error
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Atomic(ctx context.Context, fn func(s Stores) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func newID() string {
	return uuid.New().String()
}

// validID reports whether every id can match a uuid column. A malformed id
// is a miss and never reaches the database.
func validID(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

// translate maps gorm errors onto the apperr kinds.
func translate(err error, format string, args ...any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Wrap(apperr.NotFound, err, format, args...)
	case isInvalidText(err):
		return apperr.Wrap(apperr.NotFound, err, format, args...)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(apperr.Conflict, err, format, args...)
	default:
		return apperr.Wrap(apperr.Internal, err, format, args...)
	}
}

func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}
