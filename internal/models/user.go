package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents an account holder. Balance is the spendable amount and is
// only ever mutated inside a ledger operation.
type User struct {
	ID          int             `json:"id" db:"id"`
	FullName    string          `json:"fullName" db:"full_name"`
	Email       string          `json:"email" db:"email"`
	PhoneNumber string          `json:"phoneNumber" db:"phone_number"`
	Password    string          `json:"-" db:"password"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	Level       int             `json:"level" db:"level"`
	XP          int             `json:"xp" db:"xp"`
	AvatarURL   *string         `json:"avatarUrl" db:"avatar_url"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   *time.Time      `json:"updatedAt" db:"updated_at"`
}
