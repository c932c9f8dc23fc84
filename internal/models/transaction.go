package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types. The ledger core only ever produces p2p and saving;
// the remaining types exist for seeded and future movements.
const (
	TransactionTypeP2P          = "p2p"
	TransactionTypeSaving       = "saving"
	TransactionTypeDeposit      = "deposit"
	TransactionTypeWithdrawal   = "withdrawal"
	TransactionTypeSubscription = "subscription"
	TransactionTypeGroup        = "group"
)

// Transaction statuses. The ledger core only writes completed; a failed
// movement rolls back instead of being recorded.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusCancelled = "cancelled"
)

// Categories lists the expense classification tags.
var Categories = []string{
	"shopping",
	"video_games",
	"food",
	"bar",
	"transport",
	"entertainment",
	"health",
	"education",
	"utilities",
	"other",
}

// Transaction is an immutable record of a monetary movement. Sender and
// receiver reference accounts (user ids, or a savings objective id for
// saving movements) but carry no lifecycle relationship to them.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	SenderID    *int            `json:"senderId" db:"sender_id"`
	ReceiverID  *int            `json:"receiverId" db:"receiver_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Type        string          `json:"type" db:"type"`
	Status      string          `json:"status" db:"status"`
	Category    *string         `json:"category,omitempty" db:"category"`
	Description *string         `json:"description" db:"description"`
	Message     *string         `json:"message" db:"message"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	ProcessedAt *time.Time      `json:"processedAt" db:"processed_at"`
}

// CategorySpend is a per-category aggregation row for the current month.
type CategorySpend struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}
