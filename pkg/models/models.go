package models

import (
	"time"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleSeeker Role = "seeker"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleSeeker
}

type BookStatus string

const (
	BookAvailable   BookStatus = "available"
	BookRented      BookStatus = "rented"
	BookUnavailable BookStatus = "unavailable"
)

func (s BookStatus) Valid() bool {
	switch s {
	case BookAvailable, BookRented, BookUnavailable:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusRequested TransactionStatus = "requested"
	StatusApproved  TransactionStatus = "approved"
	StatusRejected  TransactionStatus = "rejected"
	StatusActive    TransactionStatus = "active"
	StatusCompleted TransactionStatus = "completed"
	StatusCancelled TransactionStatus = "cancelled"
)

// OpenStatuses block a second request for the same (book, borrower) pair.
var OpenStatuses = []TransactionStatus{StatusRequested, StatusApproved, StatusActive}

// HoldingStatuses keep the book rented.
var HoldingStatuses = []TransactionStatus{StatusApproved, StatusActive}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusRejected, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s TransactionStatus) Holds() bool {
	return s == StatusApproved || s == StatusActive
}

func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

type User struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"size:120;not null" json:"name"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Mobile       string    `gorm:"size:40;not null" json:"mobile"`
	Role         Role      `gorm:"size:20;not null;default:'seeker'" json:"role"`
	Ratings      []Rating  `gorm:"foreignKey:RateeID" json:"ratings,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Rating is received by RateeID and authored by FromUserID.
type Rating struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RateeID       string    `gorm:"type:uuid;not null;index" json:"rateeId"`
	FromUserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_ratings_rater_transaction" json:"fromUser"`
	TransactionID *string   `gorm:"type:uuid;uniqueIndex:idx_ratings_rater_transaction" json:"transactionId,omitempty"`
	Score         int       `gorm:"not null;check:chk_ratings_score,score >= 1 AND score <= 5" json:"score"`
	Comment       string    `gorm:"size:1000" json:"comment,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Book struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Author      string     `gorm:"not null" json:"author"`
	Genre       string     `gorm:"not null;index" json:"genre"`
	Location    string     `gorm:"not null;index" json:"location"`
	Description string     `json:"description,omitempty"`
	Cover       string     `json:"cover,omitempty"`
	Status      BookStatus `gorm:"size:20;not null;default:'available';index" json:"status"`
	OwnerID     string     `gorm:"type:uuid;not null;index" json:"ownerId"`
	Version     int        `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type Transaction struct {
	ID         string            `gorm:"type:uuid;primaryKey" json:"id"`
	BookID     string            `gorm:"type:uuid;not null;index" json:"bookId"`
	OwnerID    string            `gorm:"type:uuid;not null;index;check:chk_exchange_parties,owner_id <> borrower_id" json:"ownerId"`
	BorrowerID string            `gorm:"type:uuid;not null;index" json:"borrowerId"`
	Message    string            `gorm:"size:1000" json:"message,omitempty"`
	Status     TransactionStatus `gorm:"size:20;not null;default:'requested'" json:"status"`
	StartDate  *time.Time        `json:"startDate,omitempty"`
	EndDate    *time.Time        `json:"endDate,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (Transaction) TableName() string { return "exchange_transactions" }

// Counterparty returns the other party of the transaction, or "" when
// userID is not a party.
func (t *Transaction) Counterparty(userID string) string {
	switch userID {
	case t.OwnerID:
		return t.BorrowerID
	case t.BorrowerID:
		return t.OwnerID
	}
	return ""
}
