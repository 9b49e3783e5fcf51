// Package rating records feedback one party of a completed exchange leaves
// about the other.
package rating

import (
	"context"
	"strings"
	"time"

	"bookswap/pkg/apperr"
	"bookswap/pkg/models"
	"bookswap/pkg/store"
)

const maxCommentLength = 1000

type Service struct {
	stores store.Stores
	now    func() time.Time
}

func NewService(stores store.Stores) *Service {
	return &Service{stores: stores, now: time.Now}
}

type Submission struct {
	RaterID       string
	RateeID       string
	Score         int
	Comment       string
	TransactionID string
}

// CheckResult is returned by CheckRating. Rating is nil when HasRated is false.
type CheckResult struct {
	HasRated bool           `json:"hasRated"`
	Rating   *models.Rating `json:"rating,omitempty"`
}

// SubmitRating appends a rating to the ratee. When a transaction is given it
// must be completed and the two users must be its opposite parties. A second
// rating by the same rater for the same transaction is a Conflict; the
// storage unique index settles races between concurrent submissions.
func (s *Service) SubmitRating(ctx context.Context, sub Submission) (*models.Rating, error) {
	sub.TransactionID = strings.TrimSpace(sub.TransactionID)
	if sub.RaterID == "" || sub.RateeID == "" {
		return nil, apperr.New(apperr.InvalidInput, "rater and ratee are required")
	}
	if sub.Score < 1 || sub.Score > 5 {
		return nil, apperr.New(apperr.InvalidInput, "score must be between 1 and 5")
	}
	if len(sub.Comment) > maxCommentLength {
		return nil, apperr.New(apperr.InvalidInput, "comment must be at most %d characters", maxCommentLength)
	}

	var created *models.Rating
	err := s.stores.Atomic(ctx, func(st store.Stores) error {
		if _, err := st.GetUser(ctx, sub.RateeID); err != nil {
			return err
		}
		if _, err := st.GetUser(ctx, sub.RaterID); err != nil {
			return err
		}
		if sub.RaterID == sub.RateeID {
			return apperr.New(apperr.Forbidden, "cannot rate yourself")
		}

		r := &models.Rating{
			FromUserID: sub.RaterID,
			Score:      sub.Score,
			Comment:    sub.Comment,
			CreatedAt:  s.now().UTC(),
		}

		if sub.TransactionID != "" {
			if err := checkEligible(ctx, st, sub); err != nil {
				return err
			}
			prior, err := st.FindRating(ctx, sub.RateeID, sub.RaterID, sub.TransactionID)
			if err != nil {
				return err
			}
			if prior != nil {
				return apperr.New(apperr.Conflict, "you have already rated this user for this transaction")
			}
			txID := sub.TransactionID
			r.TransactionID = &txID
		}

		if err := st.AppendRating(ctx, sub.RateeID, r); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func checkEligible(ctx context.Context, st store.Stores, sub Submission) error {
	tx, err := st.GetTransaction(ctx, sub.TransactionID)
	if err != nil {
		return err
	}
	counterparty := tx.Counterparty(sub.RaterID)
	if counterparty == "" {
		return apperr.New(apperr.Forbidden, "not a party to transaction %s", tx.ID)
	}
	if counterparty != sub.RateeID {
		return apperr.New(apperr.Forbidden, "user %s is not the other party of transaction %s", sub.RateeID, tx.ID)
	}
	if tx.Status != models.StatusCompleted {
		return apperr.New(apperr.InvalidState, "transaction %s is %s, ratings open once it is completed", tx.ID, tx.Status)
	}
	return nil
}

// CheckRating reports whether raterID already rated rateeID for transactionID.
func (s *Service) CheckRating(ctx context.Context, raterID, rateeID, transactionID string) (CheckResult, error) {
	transactionID = strings.TrimSpace(transactionID)
	if raterID == "" || rateeID == "" || transactionID == "" {
		return CheckResult{}, apperr.New(apperr.InvalidInput, "rater, ratee and transactionId are required")
	}
	r, err := s.stores.FindRating(ctx, rateeID, raterID, transactionID)
	if err != nil {
		return CheckResult{}, err
	}
	if r == nil {
		return CheckResult{}, nil
	}
	return CheckResult{HasRated: true, Rating: r}, nil
}

func (s *Service) ListRatings(ctx context.Context, userID string) ([]models.Rating, error) {
	if _, err := s.stores.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.stores.ListRatings(ctx, userID)
}
