package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/centz/backend/internal/models"
)

// ContactService manages a user's contact list. Adding a contact for an
// unknown phone number creates a placeholder user so transfers can target
// it immediately.
type ContactService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewContactService(db *sql.DB) *ContactService {
	return &ContactService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// CreateContactRequest is the contact creation payload.
type CreateContactRequest struct {
	PhoneNumber string  `json:"phoneNumber" validate:"required,min=6,max=20"`
	Nickname    *string `json:"nickname" validate:"omitempty,max=100"`
	IsFavorite  bool    `json:"isFavorite"`
}

// UpdateContactRequest is the contact update payload.
type UpdateContactRequest struct {
	Nickname   *string `json:"nickname" validate:"omitempty,max=100"`
	IsFavorite *bool   `json:"isFavorite"`
}

// ListContacts returns the user's contacts with linked user details.
// @Summary List contacts
// @Tags contacts
// @Produce json
// @Success 200 {array} models.ContactView
// @Failure 500 {object} ErrorResponse
// @Router /me/contacts [get]
func (cs *ContactService) ListContacts(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := cs.db.Query(`
		SELECT u.id, u.email, u.phone_number, u.full_name, u.avatar_url, c.nickname, c.is_favorite
		FROM contacts c
		JOIN users u ON u.id = c.contact_user_id
		WHERE c.user_id = $1
		ORDER BY c.created_at DESC`, userID)
	if err != nil {
		log.Printf("[CONTACT] Failed to list contacts for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch contacts", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	contacts := []models.ContactView{}
	for rows.Next() {
		var c models.ContactView
		if err := rows.Scan(&c.ID, &c.Email, &c.PhoneNumber, &c.FullName, &c.AvatarURL, &c.Nickname, &c.IsFavorite); err != nil {
			log.Printf("[CONTACT] Failed to scan contact: %v", err)
			SendErrorResponse(w, "Failed to fetch contacts", http.StatusInternalServerError, nil)
			return
		}
		contacts = append(contacts, c)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contacts)
}

// CreateContact adds a contact, creating a placeholder user when the phone
// number is not yet registered.
// @Summary Add contact
// @Tags contacts
// @Accept json
// @Produce json
// @Param request body CreateContactRequest true "Contact payload"
// @Success 201 {object} models.Contact
// @Failure 400 {object} ErrorResponse "Self contact"
// @Failure 409 {object} ErrorResponse "Contact already exists"
// @Router /me/contacts [post]
func (cs *ContactService) CreateContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var contactUserID int
	err := cs.db.QueryRow(`SELECT id FROM users WHERE phone_number = $1`, req.PhoneNumber).Scan(&contactUserID)
	if err == sql.ErrNoRows {
		// Unknown number: create a placeholder account with a zero balance
		// so transfers can target it before the person signs up.
		fullName := req.PhoneNumber
		if req.Nickname != nil {
			fullName = *req.Nickname
		}
		err = cs.db.QueryRow(`
			INSERT INTO users (full_name, email, phone_number, password, balance, level, xp, created_at)
			VALUES ($1, '', $2, $3, 0, 0, 0, NOW())
			RETURNING id`,
			fullName, req.PhoneNumber, fmt.Sprintf("temp-password-%d", rand.Int63())).Scan(&contactUserID)
	}
	if err != nil {
		log.Printf("[CONTACT] Failed to resolve contact user for %s: %v", req.PhoneNumber, err)
		SendErrorResponse(w, "Failed to create contact", http.StatusInternalServerError, nil)
		return
	}

	if contactUserID == userID {
		SendErrorResponse(w, "Cannot reference to yourself as a contact", http.StatusBadRequest, nil)
		return
	}

	var exists bool
	err = cs.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM contacts WHERE user_id = $1 AND contact_user_id = $2)`,
		userID, contactUserID).Scan(&exists)
	if err != nil {
		log.Printf("[CONTACT] Failed to check existing contact: %v", err)
		SendErrorResponse(w, "Failed to create contact", http.StatusInternalServerError, nil)
		return
	}
	if exists {
		SendErrorResponse(w, "Contact already exists", http.StatusConflict, nil)
		return
	}

	var c models.Contact
	err = cs.db.QueryRow(`
		INSERT INTO contacts (user_id, contact_user_id, nickname, is_favorite, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, user_id, contact_user_id, nickname, is_favorite, created_at, updated_at`,
		userID, contactUserID, req.Nickname, req.IsFavorite).
		Scan(&c.ID, &c.UserID, &c.ContactUserID, &c.Nickname, &c.IsFavorite, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		log.Printf("[CONTACT] Failed to create contact for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create contact", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

// GetContact returns one contact with linked user details.
// @Summary Get contact
// @Tags contacts
// @Produce json
// @Param id path int true "Contact ID"
// @Success 200 {object} models.ContactView
// @Failure 404 {object} ErrorResponse
// @Router /me/contacts/{id} [get]
func (cs *ContactService) GetContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	contactID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid contact id", http.StatusBadRequest, nil)
		return
	}

	var c models.ContactView
	err = cs.db.QueryRow(`
		SELECT u.id, u.email, u.phone_number, u.full_name, u.avatar_url, c.nickname, c.is_favorite
		FROM contacts c
		JOIN users u ON u.id = c.contact_user_id
		WHERE c.id = $1 AND c.user_id = $2`, contactID, userID).
		Scan(&c.ID, &c.Email, &c.PhoneNumber, &c.FullName, &c.AvatarURL, &c.Nickname, &c.IsFavorite)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Contact not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[CONTACT] Failed to fetch contact %d: %v", contactID, err)
		SendErrorResponse(w, "Failed to fetch contact", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// UpdateContact updates a contact's nickname or favorite flag.
// @Summary Update contact
// @Tags contacts
// @Accept json
// @Produce json
// @Param id path int true "Contact ID"
// @Param request body UpdateContactRequest true "Update payload"
// @Success 200 {object} models.Contact
// @Failure 404 {object} ErrorResponse
// @Router /me/contacts/{id} [put]
func (cs *ContactService) UpdateContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	contactID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid contact id", http.StatusBadRequest, nil)
		return
	}

	var req UpdateContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var c models.Contact
	err = cs.db.QueryRow(`
		UPDATE contacts
		SET nickname = COALESCE($1, nickname),
		    is_favorite = COALESCE($2, is_favorite),
		    updated_at = NOW()
		WHERE id = $3 AND user_id = $4
		RETURNING id, user_id, contact_user_id, nickname, is_favorite, created_at, updated_at`,
		req.Nickname, req.IsFavorite, contactID, userID).
		Scan(&c.ID, &c.UserID, &c.ContactUserID, &c.Nickname, &c.IsFavorite, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Contact not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[CONTACT] Failed to update contact %d: %v", contactID, err)
		SendErrorResponse(w, "Failed to update contact", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// DeleteContact removes a contact.
// @Summary Delete contact
// @Tags contacts
// @Produce json
// @Param id path int true "Contact ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /me/contacts/{id} [delete]
func (cs *ContactService) DeleteContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	contactID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid contact id", http.StatusBadRequest, nil)
		return
	}

	result, err := cs.db.Exec(`DELETE FROM contacts WHERE id = $1 AND user_id = $2`, contactID, userID)
	if err != nil {
		log.Printf("[CONTACT] Failed to delete contact %d: %v", contactID, err)
		SendErrorResponse(w, "Failed to delete contact", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Contact not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Contact deleted"})
}
