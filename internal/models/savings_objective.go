package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SavingsObjective is an account variant: its current amount is a balance
// subject to the same non-negativity invariant as a user balance. The
// target amount is informational only; the ledger never clamps against it.
type SavingsObjective struct {
	ID            int             `json:"id" db:"id"`
	UserID        int             `json:"userId" db:"user_id"`
	Name          string          `json:"name" db:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount" db:"target_amount"`
	CurrentAmount decimal.Decimal `json:"currentAmount" db:"current_amount"`
	TargetDate    *time.Time      `json:"targetDate" db:"target_date"`
	Description   *string         `json:"description" db:"description"`
	IsActive      bool            `json:"isActive" db:"is_active"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     *time.Time      `json:"updatedAt" db:"updated_at"`
}

// ProgressPercentage reports saved progress towards the target, capped at 100.
func (o *SavingsObjective) ProgressPercentage() float64 {
	if o.TargetAmount.IsZero() {
		return 0
	}
	pct, _ := o.CurrentAmount.Div(o.TargetAmount).Mul(decimal.NewFromInt(100)).Float64()
	if pct > 100 {
		return 100
	}
	return pct
}

// IsCompleted reports whether the saved amount has reached the target.
func (o *SavingsObjective) IsCompleted() bool {
	return o.CurrentAmount.GreaterThanOrEqual(o.TargetAmount)
}

// RemainingAmount is the amount still to save, never negative.
func (o *SavingsObjective) RemainingAmount() decimal.Decimal {
	remaining := o.TargetAmount.Sub(o.CurrentAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
