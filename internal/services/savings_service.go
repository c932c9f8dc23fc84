package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/centz/backend/internal/models"
)

// SavingsService manages savings objectives and the deposit/withdraw
// movements against them. The movements themselves go through the ledger
// core inside a database transaction opened here.
type SavingsService struct {
	db        *sql.DB
	ledger    *LedgerService
	validator *ValidationHelper
}

func NewSavingsService(db *sql.DB, ledger *LedgerService) *SavingsService {
	return &SavingsService{
		db:        db,
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

// CreateObjectiveRequest is the objective creation payload.
type CreateObjectiveRequest struct {
	Name         string          `json:"name" validate:"required,min=1,max=100"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	TargetDate   *time.Time      `json:"targetDate"`
	Description  *string         `json:"description" validate:"omitempty,max=500"`
}

// UpdateObjectiveRequest is the objective update payload.
type UpdateObjectiveRequest struct {
	Name         *string          `json:"name" validate:"omitempty,min=1,max=100"`
	TargetAmount *decimal.Decimal `json:"targetAmount"`
	TargetDate   *time.Time       `json:"targetDate"`
	Description  *string          `json:"description" validate:"omitempty,max=500"`
	IsActive     *bool            `json:"isActive"`
}

// SavingsMovementRequest is the payload for deposits and withdrawals.
type SavingsMovementRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description" validate:"omitempty,max=500"`
	Message     *string         `json:"message" validate:"omitempty,max=500"`
}

// objectiveView decorates an objective with its computed progress fields.
type objectiveView struct {
	models.SavingsObjective
	Completed          bool            `json:"completed"`
	RemainingAmount    decimal.Decimal `json:"remainingAmount"`
	ProgressPercentage float64         `json:"progressPercentage"`
}

func newObjectiveView(o models.SavingsObjective) objectiveView {
	return objectiveView{
		SavingsObjective:   o,
		Completed:          o.IsCompleted(),
		RemainingAmount:    o.RemainingAmount(),
		ProgressPercentage: o.ProgressPercentage(),
	}
}

// ListObjectives returns the user's savings objectives, newest first.
// @Summary List savings objectives
// @Tags savings
// @Produce json
// @Success 200 {array} objectiveView
// @Failure 500 {object} ErrorResponse
// @Router /me/savings-objectives [get]
func (ss *SavingsService) ListObjectives(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := ss.db.Query(`
		SELECT id, user_id, name, target_amount, current_amount, target_date, description, is_active, created_at, updated_at
		FROM savings_objectives
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		log.Printf("[SAVINGS] Failed to list objectives for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch savings objectives", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	views := []objectiveView{}
	for rows.Next() {
		var o models.SavingsObjective
		if err := scanObjective(rows, &o); err != nil {
			log.Printf("[SAVINGS] Failed to scan objective: %v", err)
			SendErrorResponse(w, "Failed to fetch savings objectives", http.StatusInternalServerError, nil)
			return
		}
		views = append(views, newObjectiveView(o))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// CreateObjective creates a new savings objective with a zero balance.
// @Summary Create savings objective
// @Tags savings
// @Accept json
// @Produce json
// @Param request body CreateObjectiveRequest true "Objective payload"
// @Success 201 {object} models.SavingsObjective
// @Failure 400 {object} ErrorResponse
// @Router /me/savings-objectives [post]
func (ss *SavingsService) CreateObjective(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateObjectiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := ss.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !req.TargetAmount.IsPositive() {
		SendErrorResponse(w, "Target amount must be positive", http.StatusBadRequest, nil)
		return
	}

	var o models.SavingsObjective
	err := ss.db.QueryRow(`
		INSERT INTO savings_objectives (user_id, name, target_amount, current_amount, target_date, description, is_active, created_at)
		VALUES ($1, $2, $3, 0, $4, $5, TRUE, NOW())
		RETURNING id, user_id, name, target_amount, current_amount, target_date, description, is_active, created_at, updated_at`,
		userID, req.Name, req.TargetAmount, req.TargetDate, req.Description).
		Scan(&o.ID, &o.UserID, &o.Name, &o.TargetAmount, &o.CurrentAmount,
			&o.TargetDate, &o.Description, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		log.Printf("[SAVINGS] Failed to create objective for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create savings objective", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(o)
}

// GetObjective returns one objective with its saving transactions.
// @Summary Get savings objective
// @Tags savings
// @Produce json
// @Param id path int true "Objective ID"
// @Success 200 {object} objectiveView
// @Failure 404 {object} ErrorResponse
// @Router /me/savings-objectives/{id} [get]
func (ss *SavingsService) GetObjective(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	objectiveID, err := objectiveIDParam(r)
	if err != nil {
		SendErrorResponse(w, "Invalid objective id", http.StatusBadRequest, nil)
		return
	}

	o, err := ss.fetchObjective(objectiveID, userID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Savings objective not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[SAVINGS] Failed to fetch objective %d: %v", objectiveID, err)
		SendErrorResponse(w, "Failed to fetch savings objective", http.StatusInternalServerError, nil)
		return
	}

	// Incoming are deposits into the objective, outgoing are withdrawals.
	incoming, err := ss.fetchSavingTransactions(objectiveID, userID, "receiver_id", "sender_id")
	if err != nil {
		log.Printf("[SAVINGS] Failed to fetch deposits for objective %d: %v", objectiveID, err)
		SendErrorResponse(w, "Failed to fetch savings objective", http.StatusInternalServerError, nil)
		return
	}
	outgoing, err := ss.fetchSavingTransactions(objectiveID, userID, "sender_id", "receiver_id")
	if err != nil {
		log.Printf("[SAVINGS] Failed to fetch withdrawals for objective %d: %v", objectiveID, err)
		SendErrorResponse(w, "Failed to fetch savings objective", http.StatusInternalServerError, nil)
		return
	}

	response := struct {
		objectiveView
		IncomingTransactions []models.Transaction `json:"incomingTransactions"`
		OutgoingTransactions []models.Transaction `json:"outgoingTransactions"`
	}{
		objectiveView:        newObjectiveView(*o),
		IncomingTransactions: incoming,
		OutgoingTransactions: outgoing,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// UpdateObjective updates an objective's metadata. The current amount is
// never touched here; only ledger operations move money.
// @Summary Update savings objective
// @Tags savings
// @Accept json
// @Produce json
// @Param id path int true "Objective ID"
// @Param request body UpdateObjectiveRequest true "Update payload"
// @Success 200 {object} models.SavingsObjective
// @Failure 404 {object} ErrorResponse
// @Router /me/savings-objectives/{id} [put]
func (ss *SavingsService) UpdateObjective(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	objectiveID, err := objectiveIDParam(r)
	if err != nil {
		SendErrorResponse(w, "Invalid objective id", http.StatusBadRequest, nil)
		return
	}

	var req UpdateObjectiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := ss.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.TargetAmount != nil && !req.TargetAmount.IsPositive() {
		SendErrorResponse(w, "Target amount must be positive", http.StatusBadRequest, nil)
		return
	}

	var o models.SavingsObjective
	err = ss.db.QueryRow(`
		UPDATE savings_objectives
		SET name = COALESCE($1, name),
		    target_amount = COALESCE($2, target_amount),
		    target_date = COALESCE($3, target_date),
		    description = COALESCE($4, description),
		    is_active = COALESCE($5, is_active),
		    updated_at = NOW()
		WHERE id = $6 AND user_id = $7
		RETURNING id, user_id, name, target_amount, current_amount, target_date, description, is_active, created_at, updated_at`,
		req.Name, req.TargetAmount, req.TargetDate, req.Description, req.IsActive, objectiveID, userID).
		Scan(&o.ID, &o.UserID, &o.Name, &o.TargetAmount, &o.CurrentAmount,
			&o.TargetDate, &o.Description, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Savings objective not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[SAVINGS] Failed to update objective %d: %v", objectiveID, err)
		SendErrorResponse(w, "Failed to update savings objective", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(o)
}

// DeleteObjective deletes an objective that holds no funds.
// @Summary Delete savings objective
// @Tags savings
// @Produce json
// @Param id path int true "Objective ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse "Objective still holds funds"
// @Failure 404 {object} ErrorResponse
// @Router /me/savings-objectives/{id} [delete]
func (ss *SavingsService) DeleteObjective(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	objectiveID, err := objectiveIDParam(r)
	if err != nil {
		SendErrorResponse(w, "Invalid objective id", http.StatusBadRequest, nil)
		return
	}

	o, err := ss.fetchObjective(objectiveID, userID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Savings objective not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[SAVINGS] Failed to fetch objective %d: %v", objectiveID, err)
		SendErrorResponse(w, "Failed to delete savings objective", http.StatusInternalServerError, nil)
		return
	}

	if o.CurrentAmount.IsPositive() {
		SendErrorResponse(w,
			"Cannot delete a savings objective that still has funds. Please withdraw all funds before deleting this objective.",
			http.StatusBadRequest, nil)
		return
	}

	if _, err := ss.db.Exec(`DELETE FROM savings_objectives WHERE id = $1 AND user_id = $2`, objectiveID, userID); err != nil {
		log.Printf("[SAVINGS] Failed to delete objective %d: %v", objectiveID, err)
		SendErrorResponse(w, "Failed to delete savings objective", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Savings objective deleted"})
}

// AddToSavings deposits from the user's balance into the objective.
// @Summary Deposit into savings objective
// @Tags savings
// @Accept json
// @Produce json
// @Param id path int true "Objective ID"
// @Param request body SavingsMovementRequest true "Deposit payload"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse "Validation failure or insufficient funds"
// @Failure 404 {object} ErrorResponse "Objective not found"
// @Router /me/savings-objectives/{id}/add [post]
func (ss *SavingsService) AddToSavings(w http.ResponseWriter, r *http.Request) {
	ss.executeMovement(w, r, ss.ledger.DepositToObjectiveTx)
}

// RemoveFromSavings withdraws from the objective back into the balance.
// @Summary Withdraw from savings objective
// @Tags savings
// @Accept json
// @Produce json
// @Param id path int true "Objective ID"
// @Param request body SavingsMovementRequest true "Withdrawal payload"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse "Validation failure or insufficient savings"
// @Failure 404 {object} ErrorResponse "Objective not found"
// @Router /me/savings-objectives/{id}/remove [post]
func (ss *SavingsService) RemoveFromSavings(w http.ResponseWriter, r *http.Request) {
	ss.executeMovement(w, r, ss.ledger.WithdrawFromObjectiveTx)
}

type savingsMovement func(tx *sql.Tx, userID, objectiveID int, amount decimal.Decimal, description, message *string) (*models.Transaction, error)

func (ss *SavingsService) executeMovement(w http.ResponseWriter, r *http.Request, movement savingsMovement) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	objectiveID, err := objectiveIDParam(r)
	if err != nil {
		SendErrorResponse(w, "Invalid objective id", http.StatusBadRequest, nil)
		return
	}

	var req SavingsMovementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := ss.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := ss.db.Begin()
	if err != nil {
		log.Printf("[SAVINGS] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Transaction failed, please try again.", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	record, err := movement(tx, userID, objectiveID, req.Amount, req.Description, req.Message)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[SAVINGS] Failed to commit movement %s: %v", record.ID, err)
		SendErrorResponse(w, "Transaction failed, please try again.", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

func (ss *SavingsService) fetchObjective(objectiveID, userID int) (*models.SavingsObjective, error) {
	var o models.SavingsObjective
	err := ss.db.QueryRow(`
		SELECT id, user_id, name, target_amount, current_amount, target_date, description, is_active, created_at, updated_at
		FROM savings_objectives
		WHERE id = $1 AND user_id = $2`, objectiveID, userID).
		Scan(&o.ID, &o.UserID, &o.Name, &o.TargetAmount, &o.CurrentAmount,
			&o.TargetDate, &o.Description, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (ss *SavingsService) fetchSavingTransactions(objectiveID, userID int, objectiveColumn, userColumn string) ([]models.Transaction, error) {
	// Column names are our own identifiers, never user input. Matching
	// both sides keeps out saving rows of another user whose objective id
	// happens to collide with a user id.
	rows, err := ss.db.Query(`
		SELECT id, sender_id, receiver_id, amount, type, status, category, description, message, created_at, processed_at
		FROM transactions
		WHERE `+objectiveColumn+` = $1 AND `+userColumn+` = $2 AND type = 'saving'
		ORDER BY created_at DESC`, objectiveID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanObjective(rows *sql.Rows, o *models.SavingsObjective) error {
	return rows.Scan(&o.ID, &o.UserID, &o.Name, &o.TargetAmount, &o.CurrentAmount,
		&o.TargetDate, &o.Description, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
}

func objectiveIDParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}
