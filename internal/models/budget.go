package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget is a monthly spending envelope. At most one budget per user is
// active at a time; creating a new one deactivates the previous.
type Budget struct {
	ID          int             `json:"id" db:"id"`
	UserID      int             `json:"userId" db:"user_id"`
	TotalAmount decimal.Decimal `json:"totalAmount" db:"total_amount"`
	IsActive    bool            `json:"isActive" db:"is_active"`
	Description *string         `json:"description" db:"description"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   *time.Time      `json:"updatedAt" db:"updated_at"`

	Categories []BudgetCategory `json:"categories,omitempty"`
}

// BudgetCategory allocates part of a budget to one expense category.
type BudgetCategory struct {
	ID              int             `json:"id" db:"id"`
	BudgetID        int             `json:"budgetId" db:"budget_id"`
	Category        string          `json:"category" db:"category"`
	AllocatedAmount decimal.Decimal `json:"allocatedAmount" db:"allocated_amount"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       *time.Time      `json:"updatedAt" db:"updated_at"`
}
