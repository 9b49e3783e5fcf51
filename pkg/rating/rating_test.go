package rating

import (
	"context"
	"testing"

	"bookswap/pkg/apperr"
	"bookswap/pkg/database"
	"bookswap/pkg/models"
	"bookswap/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *store.Store
	svc      *Service
	owner    *models.User
	borrower *models.User
	other    *models.User
	done     *models.Transaction
	open     *models.Transaction
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	st := store.New(db)

	f := &fixture{store: st, svc: NewService(st)}
	f.owner = &models.User{Name: "U1", Email: "u1@example.com", PasswordHash: "x", Mobile: "1", Role: models.RoleOwner}
	f.borrower = &models.User{Name: "U2", Email: "u2@example.com", PasswordHash: "x", Mobile: "2"}
	f.other = &models.User{Name: "U3", Email: "u3@example.com", PasswordHash: "x", Mobile: "3"}
	for _, u := range []*models.User{f.owner, f.borrower, f.other} {
		require.NoError(t, st.CreateUser(ctx, u))
	}

	f.done = &models.Transaction{BookID: "b1", OwnerID: f.owner.ID, BorrowerID: f.borrower.ID, Status: models.StatusCompleted}
	f.open = &models.Transaction{BookID: "b2", OwnerID: f.owner.ID, BorrowerID: f.borrower.ID, Status: models.StatusActive}
	require.NoError(t, st.CreateTransaction(ctx, f.done))
	require.NoError(t, st.CreateTransaction(ctx, f.open))
	return f
}

func TestSubmitAndCheckRating(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	sub := Submission{RaterID: f.borrower.ID, RateeID: f.owner.ID, Score: 5, Comment: "great", TransactionID: f.done.ID}

	before, err := f.svc.CheckRating(ctx, f.borrower.ID, f.owner.ID, f.done.ID)
	require.NoError(t, err)
	assert.False(t, before.HasRated)
	assert.Nil(t, before.Rating)

	r, err := f.svc.SubmitRating(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, f.owner.ID, r.RateeID)
	require.NotNil(t, r.TransactionID)
	assert.Equal(t, f.done.ID, *r.TransactionID)

	user, err := f.store.GetUser(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Len(t, user.Ratings, 1)

	_, err = f.svc.SubmitRating(ctx, sub)
	assert.True(t, apperr.Is(err, apperr.Conflict), "got %v", err)

	first, err := f.svc.CheckRating(ctx, f.borrower.ID, f.owner.ID, f.done.ID)
	require.NoError(t, err)
	second, err := f.svc.CheckRating(ctx, f.borrower.ID, f.owner.ID, f.done.ID)
	require.NoError(t, err)
	assert.True(t, first.HasRated)
	require.NotNil(t, first.Rating)
	assert.Equal(t, 5, first.Rating.Score)
	assert.Equal(t, "great", first.Rating.Comment)
	assert.Equal(t, first, second)

	// the owner rates back independently
	_, err = f.svc.SubmitRating(ctx, Submission{RaterID: f.owner.ID, RateeID: f.borrower.ID, Score: 4, TransactionID: f.done.ID})
	assert.NoError(t, err)
}

func TestSubmitRatingErrors(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	tests := []struct {
		name string
		sub  Submission
		want apperr.Kind
	}{
		{"score too low", Submission{RaterID: f.borrower.ID, RateeID: f.owner.ID, Score: 0, TransactionID: f.done.ID}, apperr.InvalidInput},
		{"score too high", Submission{RaterID: f.borrower.ID, RateeID: f.owner.ID, Score: 6, TransactionID: f.done.ID}, apperr.InvalidInput},
		{"missing ratee", Submission{RaterID: f.borrower.ID, RateeID: "ghost", Score: 3, TransactionID: f.done.ID}, apperr.NotFound},
		{"missing transaction", Submission{RaterID: f.borrower.ID, RateeID: f.owner.ID, Score: 3, TransactionID: "nope"}, apperr.NotFound},
		{"rater not a party", Submission{RaterID: f.other.ID, RateeID: f.owner.ID, Score: 3, TransactionID: f.done.ID}, apperr.Forbidden},
		{"ratee not the counterparty", Submission{RaterID: f.borrower.ID, RateeID: f.other.ID, Score: 3, TransactionID: f.done.ID}, apperr.Forbidden},
		{"self rating", Submission{RaterID: f.owner.ID, RateeID: f.owner.ID, Score: 3}, apperr.Forbidden},
		{"transaction not completed", Submission{RaterID: f.borrower.ID, RateeID: f.owner.ID, Score: 3, TransactionID: f.open.ID}, apperr.InvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitRating(ctx, tt.sub)
			assert.Equal(t, tt.want, apperr.KindOf(err), "got %v", err)
		})
	}

	ratings, err := f.svc.ListRatings(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Empty(t, ratings)
}

func TestSubmitRatingWithoutTransaction(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	for i := 0; i < 2; i++ {
		_, err := f.svc.SubmitRating(ctx, Submission{RaterID: f.other.ID, RateeID: f.owner.ID, Score: 2})
		require.NoError(t, err)
	}

	ratings, err := f.svc.ListRatings(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Len(t, ratings, 2)
}

// racingStores hides the prior rating from the advisory check so the
// storage constraint has to catch the duplicate.
type racingStores struct{ *store.Store }

func (r racingStores) Atomic(ctx context.Context, fn func(store.Stores) error) error {
	return r.Store.Atomic(ctx, func(st store.Stores) error { return fn(blindTx{st}) })
}

type blindTx struct{ store.Stores }

func (blindTx) FindRating(context.Context, string, string, string) (*models.Rating, error) {
	return nil, nil
}

func TestDuplicateRatingCaughtByStorage(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	svc := NewService(racingStores{f.store})
	sub := Submission{RaterID: f.borrower.ID, RateeID: f.owner.ID, Score: 5, TransactionID: f.done.ID}

	_, err := svc.SubmitRating(ctx, sub)
	require.NoError(t, err)
	_, err = svc.SubmitRating(ctx, sub)
	assert.True(t, apperr.Is(err, apperr.Conflict), "got %v", err)

	ratings, err := f.store.ListRatings(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Len(t, ratings, 1)
}

func TestCheckRatingRequiresTransaction(t *testing.T) {
	f := setupFixture(t)
	_, err := f.svc.CheckRating(context.Background(), f.borrower.ID, f.owner.ID, "")
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}
