package exchange

import (
	"context"

	"bookswap/pkg/models"
	"bookswap/pkg/store"
)

type DriftKind string

const (
	DriftMultipleHolders     DriftKind = "multiple_holders"
	DriftHeldNotRented       DriftKind = "held_not_rented"
	DriftRentedWithoutHolder DriftKind = "rented_without_holder"
)

// Drift describes a book whose status disagrees with its transactions.
type Drift struct {
	BookID  string
	Kind    DriftKind
	Status  models.BookStatus
	Holders []string
	// Want is the status that restores the invariant, empty when the drift
	// cannot be repaired automatically.
	Want models.BookStatus
}

func (d Drift) Repairable() bool {
	return d.Want != ""
}

// Inspect checks one book against the transactions holding it (approved or
// active). An unavailable book without a holder was set by its owner and is
// not drift.
func Inspect(book models.Book, holders []models.Transaction) *Drift {
	ids := make([]string, 0, len(holders))
	for _, h := range holders {
		ids = append(ids, h.ID)
	}

	switch {
	case len(holders) > 1:
		return &Drift{BookID: book.ID, Kind: DriftMultipleHolders, Status: book.Status, Holders: ids}
	case len(holders) == 1 && book.Status != models.BookRented:
		return &Drift{BookID: book.ID, Kind: DriftHeldNotRented, Status: book.Status, Holders: ids, Want: models.BookRented}
	case len(holders) == 0 && book.Status == models.BookRented:
		return &Drift{BookID: book.ID, Kind: DriftRentedWithoutHolder, Status: book.Status, Want: models.BookAvailable}
	}
	return nil
}

// CheckInvariants scans every book and returns the ones that drifted.
func CheckInvariants(ctx context.Context, books store.BookStore, txs store.TransactionStore) ([]Drift, error) {
	all, err := books.ListBooks(ctx, store.BookFilter{})
	if err != nil {
		return nil, err
	}
	holding, err := txs.ListHolding(ctx)
	if err != nil {
		return nil, err
	}

	byBook := make(map[string][]models.Transaction)
	for _, tx := range holding {
		byBook[tx.BookID] = append(byBook[tx.BookID], tx)
	}

	var drifts []Drift
	for _, book := range all {
		if d := Inspect(book, byBook[book.ID]); d != nil {
			drifts = append(drifts, *d)
		}
	}
	return drifts, nil
}

// CheckBook re-evaluates a single book. It returns nil when the book is
// consistent.
func CheckBook(ctx context.Context, books store.BookStore, txs store.TransactionStore, bookID string) (*Drift, error) {
	book, err := books.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	holders, err := txs.ListByBook(ctx, bookID, models.HoldingStatuses...)
	if err != nil {
		return nil, err
	}
	return Inspect(*book, holders), nil
}
