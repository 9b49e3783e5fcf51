package store

import (
	"context"

	"bookswap/pkg/apperr"
	"bookswap/pkg/models"
)

func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	if !validID(id) {
		return nil, apperr.New(apperr.NotFound, "transaction %s not found", id)
	}
	var tx models.Transaction
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&tx).Error; err != nil {
		return nil, translate(err, "transaction %s not found", id)
	}
	return &tx, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = newID()
	}
	return translate(s.db.WithContext(ctx).Create(tx).Error, "failed to create transaction")
}

func (s *Store) UpdateTransactionStatus(ctx context.Context, tx *models.Transaction, from models.TransactionStatus) (bool, error) {
	if !validID(tx.ID) {
		return false, nil
	}
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", tx.ID, from).
		Updates(map[string]any{
			"status":     tx.Status,
			"start_date": tx.StartDate,
			"end_date":   tx.EndDate,
		})
	if res.Error != nil {
		return false, translate(res.Error, "failed to update transaction %s", tx.ID)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) FindActiveByBookAndBorrower(ctx context.Context, bookID, borrowerID string) (*models.Transaction, error) {
	if !validID(bookID, borrowerID) {
		return nil, nil
	}
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("book_id = ? AND borrower_id = ? AND status IN ?", bookID, borrowerID, models.OpenStatuses).
		Limit(1).
		Find(&txs).Error
	if err != nil {
		return nil, translate(err, "failed to look up open transaction")
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

func (s *Store) ListByParticipant(ctx context.Context, userID string) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	if !validID(userID) {
		return txs, nil
	}
	err := s.db.WithContext(ctx).
		Where("owner_id = ? OR borrower_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&txs).Error
	if err != nil {
		return nil, translate(err, "failed to list transactions of user %s", userID)
	}
	return txs, nil
}

func (s *Store) ListByBook(ctx context.Context, bookID string, statuses ...models.TransactionStatus) ([]models.Transaction, error) {
	if !validID(bookID) {
		return []models.Transaction{}, nil
	}
	query := s.db.WithContext(ctx).Where("book_id = ?", bookID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	txs := []models.Transaction{}
	if err := query.Order("created_at DESC").Find(&txs).Error; err != nil {
		return nil, translate(err, "failed to list transactions of book %s", bookID)
	}
	return txs, nil
}

func (s *Store) ListHolding(ctx context.Context) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	err := s.db.WithContext(ctx).
		Where("status IN ?", models.HoldingStatuses).
		Order("book_id, created_at").
		Find(&txs).Error
	if err != nil {
		return nil, translate(err, "failed to list holding transactions")
	}
	return txs, nil
}
