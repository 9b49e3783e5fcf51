// Package trust computes the 0-100 reputation score shown on user profiles.
// Nothing is stored; the score is derived from ratings and transaction
// history every time it is read.
package trust

import (
	"context"
	"math"

	"bookswap/pkg/models"
	"bookswap/pkg/store"
)

const (
	ratingWeight       = 50.0
	perCompleted       = 5.0
	maxTransactionPart = 30.0
	perPenalized       = 5.0
	maxPenalty         = 20.0
)

type Input struct {
	Role     models.Role
	Scores   []int
	Statuses []models.TransactionStatus
}

type Components struct {
	RatingScore         int `json:"ratingScore"`
	TransactionScore    int `json:"transactionScore"`
	CancellationPenalty int `json:"cancellationPenalty"`
}

type RawComponents struct {
	RatingScore         float64 `json:"ratingScore"`
	TransactionScore    float64 `json:"transactionScore"`
	CancellationPenalty float64 `json:"cancellationPenalty"`
	Score               float64 `json:"score"`
}

type Result struct {
	UserID         string        `json:"userId,omitempty"`
	Role           models.Role   `json:"role"`
	TrustScore     int           `json:"trustScore"`
	AverageRating  float64       `json:"averageRating"`
	CompletedCount int           `json:"completedTransactions"`
	PenalizedCount int           `json:"cancelledTransactions"`
	Components     Components    `json:"components"`
	Raw            RawComponents `json:"raw"`
}

// PenaltyStatus is the terminal status held against a user in role: owners
// are penalized for rejections, borrowers for cancellations.
func PenaltyStatus(role models.Role) models.TransactionStatus {
	if role == models.RoleOwner {
		return models.StatusRejected
	}
	return models.StatusCancelled
}

// Compute is pure: the same input always yields the same result.
func Compute(in Input) Result {
	role := normalizeRole(in.Role)
	penalty := PenaltyStatus(role)

	var completed, penalized int
	for _, s := range in.Statuses {
		switch s {
		case models.StatusCompleted:
			completed++
		case penalty:
			penalized++
		}
	}

	var avg float64
	if len(in.Scores) > 0 {
		sum := 0
		for _, s := range in.Scores {
			sum += s
		}
		avg = float64(sum) / float64(len(in.Scores))
	}

	ratingPart := avg / 5 * ratingWeight
	txPart := math.Min(float64(completed)*perCompleted, maxTransactionPart)
	penaltyPart := math.Min(float64(penalized)*perPenalized, maxPenalty)
	raw := ratingPart + txPart - penaltyPart

	return Result{
		Role:           role,
		TrustScore:     int(round(clamp(raw, 0, 100))),
		AverageRating:  avg,
		CompletedCount: completed,
		PenalizedCount: penalized,
		Components: Components{
			RatingScore:         int(round(ratingPart)),
			TransactionScore:    int(round(txPart)),
			CancellationPenalty: int(round(penaltyPart)),
		},
		Raw: RawComponents{
			RatingScore:         ratingPart,
			TransactionScore:    txPart,
			CancellationPenalty: penaltyPart,
			Score:               raw,
		},
	}
}

// Anything that is not an explicit owner counts as a seeker.
func normalizeRole(r models.Role) models.Role {
	if r == models.RoleOwner {
		return models.RoleOwner
	}
	return models.RoleSeeker
}

// round breaks ties towards +Inf, so 2.5 becomes 3 and -2.5 becomes -2.
func round(x float64) float64 {
	return math.Floor(x + 0.5)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

type Engine struct {
	users store.UserStore
	txs   store.TransactionStore
}

func NewEngine(users store.UserStore, txs store.TransactionStore) *Engine {
	return &Engine{users: users, txs: txs}
}

// ComputeTrustScore loads the user's ratings and the transactions relevant to
// the role (as owner or as borrower) and scores them. An empty roleOverride
// uses the user's own role.
func (e *Engine) ComputeTrustScore(ctx context.Context, userID string, roleOverride models.Role) (Result, error) {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	role := user.Role
	if roleOverride != "" {
		role = roleOverride
	}
	role = normalizeRole(role)

	txs, err := e.txs.ListByParticipant(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	in := Input{Role: role, Scores: make([]int, 0, len(user.Ratings))}
	for _, r := range user.Ratings {
		in.Scores = append(in.Scores, r.Score)
	}
	for _, tx := range txs {
		if role == models.RoleOwner && tx.OwnerID == userID || role == models.RoleSeeker && tx.BorrowerID == userID {
			in.Statuses = append(in.Statuses, tx.Status)
		}
	}

	res := Compute(in)
	res.UserID = userID
	return res, nil
}
