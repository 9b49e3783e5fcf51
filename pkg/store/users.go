package store

import (
	"context"
	"errors"
	"strings"

	"bookswap/pkg/apperr"
	"bookswap/pkg/models"

	"gorm.io/gorm"
)

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, apperr.New(apperr.NotFound, "user %s not found", id)
	}
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Ratings", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, translate(err, "user %s not found", id)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, translate(err, "user with email %s not found", email)
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	user.Email = normalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = models.RoleSeeker
	}
	err := s.db.WithContext(ctx).Omit("Ratings").Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Wrap(apperr.Conflict, err, "email %s already in use", user.Email)
	}
	return translate(err, "failed to create user")
}

func (s *Store) UpdateUserProfile(ctx context.Context, id, name, mobile string) error {
	if !validID(id) {
		return apperr.New(apperr.NotFound, "user %s not found", id)
	}
	updates := map[string]any{}
	if name != "" {
		updates["name"] = name
	}
	if mobile != "" {
		updates["mobile"] = mobile
	}
	if len(updates) == 0 {
		_, err := s.GetUser(ctx, id)
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate(res.Error, "failed to update user %s", id)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "user %s not found", id)
	}
	return nil
}

// AppendRating inserts the rating. The unique index on
// (from_user_id, transaction_id) turns a second rating for the same
// transaction into a Conflict even when two writers race past FindRating.
func (s *Store) AppendRating(ctx context.Context, userID string, rating *models.Rating) error {
	rating.RateeID = userID
	err := s.db.WithContext(ctx).Create(rating).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Wrap(apperr.Conflict, err, "rating already submitted for this transaction")
	}
	return translate(err, "failed to store rating")
}

func (s *Store) ListRatings(ctx context.Context, userID string) ([]models.Rating, error) {
	ratings := []models.Rating{}
	if !validID(userID) {
		return ratings, nil
	}
	err := s.db.WithContext(ctx).
		Where("ratee_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&ratings).Error
	if err != nil {
		return nil, translate(err, "failed to list ratings of user %s", userID)
	}
	return ratings, nil
}

func (s *Store) FindRating(ctx context.Context, userID, raterID, transactionID string) (*models.Rating, error) {
	if !validID(userID, raterID, transactionID) {
		return nil, nil
	}
	var ratings []models.Rating
	err := s.db.WithContext(ctx).
		Where("ratee_id = ? AND from_user_id = ? AND transaction_id = ?", userID, raterID, transactionID).
		Limit(1).
		Find(&ratings).Error
	if err != nil {
		return nil, translate(err, "failed to look up rating")
	}
	if len(ratings) == 0 {
		return nil, nil
	}
	return &ratings[0], nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
