package exchange

import "bookswap/pkg/models"

// Relation is how an actor relates to a transaction.
type Relation int

const (
	RelationNone Relation = iota
	RelationOwner
	RelationBorrower
)

func (r Relation) String() string {
	switch r {
	case RelationOwner:
		return "owner"
	case RelationBorrower:
		return "borrower"
	}
	return "none"
}

var transitions = map[models.TransactionStatus][]models.TransactionStatus{
	models.StatusRequested: {models.StatusApproved, models.StatusRejected, models.StatusCancelled},
	models.StatusApproved:  {models.StatusActive, models.StatusCancelled, models.StatusRejected},
	models.StatusActive:    {models.StatusCompleted, models.StatusCancelled},
}

// allowedActor says which party may move a transaction into each target status.
var allowedActor = map[models.TransactionStatus]Relation{
	models.StatusApproved:  RelationOwner,
	models.StatusRejected:  RelationOwner,
	models.StatusActive:    RelationOwner,
	models.StatusCompleted: RelationOwner,
	models.StatusCancelled: RelationBorrower,
}

func CanTransition(from, to models.TransactionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func Authorized(target models.TransactionStatus, rel Relation) bool {
	want, ok := allowedActor[target]
	return ok && rel != RelationNone && want == rel
}

func RelationOf(tx *models.Transaction, actorID string) Relation {
	switch actorID {
	case "":
		return RelationNone
	case tx.OwnerID:
		return RelationOwner
	case tx.BorrowerID:
		return RelationBorrower
	}
	return RelationNone
}
