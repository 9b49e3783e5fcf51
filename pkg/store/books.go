package store

import (
	"context"
	"strings"

	"bookswap/pkg/apperr"
	"bookswap/pkg/models"

	"gorm.io/gorm"
)

func (s *Store) GetBook(ctx context.Context, id string) (*models.Book, error) {
	if !validID(id) {
		return nil, apperr.New(apperr.NotFound, "book %s not found", id)
	}
	var book models.Book
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&book).Error; err != nil {
		return nil, translate(err, "book %s not found", id)
	}
	return &book, nil
}

func (s *Store) CreateBook(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = newID()
	}
	if book.Status == "" {
		book.Status = models.BookAvailable
	}
	return translate(s.db.WithContext(ctx).Create(book).Error, "failed to create book")
}

func (s *Store) UpdateBookDetails(ctx context.Context, book *models.Book) error {
	if !validID(book.ID) {
		return apperr.New(apperr.NotFound, "book %s not found", book.ID)
	}
	res := s.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ?", book.ID).
		Updates(map[string]any{
			"title":       book.Title,
			"author":      book.Author,
			"genre":       book.Genre,
			"location":    book.Location,
			"description": book.Description,
			"cover":       book.Cover,
		})
	if res.Error != nil {
		return translate(res.Error, "failed to update book %s", book.ID)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "book %s not found", book.ID)
	}
	return nil
}

func (s *Store) UpdateBookStatus(ctx context.Context, id string, status models.BookStatus) error {
	if !validID(id) {
		return apperr.New(apperr.NotFound, "book %s not found", id)
	}
	res := s.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "version": gorm.Expr("version + 1")})
	if res.Error != nil {
		return translate(res.Error, "failed to update status of book %s", id)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "book %s not found", id)
	}
	return nil
}

func (s *Store) CompareAndSetBookStatus(ctx context.Context, id string, from []models.BookStatus, to models.BookStatus) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	res := s.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{"status": to, "version": gorm.Expr("version + 1")})
	if res.Error != nil {
		return false, translate(res.Error, "failed to update status of book %s", id)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ClaimBook(ctx context.Context, id string, version int) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	res := s.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND version = ? AND status = ?", id, version, models.BookAvailable).
		Update("version", gorm.Expr("version + 1"))
	if res.Error != nil {
		return false, translate(res.Error, "failed to claim book %s", id)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) DeleteBook(ctx context.Context, id string) error {
	if !validID(id) {
		return apperr.New(apperr.NotFound, "book %s not found", id)
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Book{})
	if res.Error != nil {
		return translate(res.Error, "failed to delete book %s", id)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "book %s not found", id)
	}
	return nil
}

func (s *Store) ListBooksByOwner(ctx context.Context, ownerID string) ([]models.Book, error) {
	books := []models.Book{}
	if !validID(ownerID) {
		return books, nil
	}
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&books).Error
	if err != nil {
		return nil, translate(err, "failed to list books of owner %s", ownerID)
	}
	return books, nil
}

func (s *Store) ListBooks(ctx context.Context, filter BookFilter) ([]models.Book, error) {
	query := s.db.WithContext(ctx).Model(&models.Book{})
	if filter.Title != "" {
		query = query.Where("LOWER(title) LIKE ?", likePattern(filter.Title))
	}
	if filter.Author != "" {
		query = query.Where("LOWER(author) LIKE ?", likePattern(filter.Author))
	}
	if filter.Genre != "" {
		query = query.Where("genre = ?", filter.Genre)
	}
	if filter.Location != "" {
		query = query.Where("location = ?", filter.Location)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	books := []models.Book{}
	if err := query.Order("created_at DESC").Find(&books).Error; err != nil {
		return nil, translate(err, "failed to list books")
	}
	return books, nil
}

func likePattern(term string) string {
	return "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
}
