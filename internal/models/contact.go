package models

import "time"

// Contact links a user to another user they transact with.
type Contact struct {
	ID            int        `json:"id" db:"id"`
	UserID        int        `json:"userId" db:"user_id"`
	ContactUserID int        `json:"contactUserId" db:"contact_user_id"`
	Nickname      *string    `json:"nickname" db:"nickname"`
	IsFavorite    bool       `json:"isFavorite" db:"is_favorite"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     *time.Time `json:"updatedAt" db:"updated_at"`
}

// ContactView is the list shape returned to clients: the linked user's
// public fields merged with the contact's own attributes.
type ContactView struct {
	ID          int     `json:"id"`
	Email       string  `json:"email"`
	PhoneNumber string  `json:"phoneNumber"`
	FullName    string  `json:"fullName"`
	AvatarURL   *string `json:"avatarUrl"`
	Nickname    *string `json:"nickname"`
	IsFavorite  bool    `json:"isFavorite"`
}
