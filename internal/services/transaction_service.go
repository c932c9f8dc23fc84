package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/centz/backend/internal/models"
)

// TransactionService exposes the transaction endpoints. Monetary movements
// are delegated to the ledger core; this layer validates input, opens the
// enclosing database transaction and maps ledger errors to status codes.
type TransactionService struct {
	db        *sql.DB
	ledger    *LedgerService
	validator *ValidationHelper
}

func NewTransactionService(db *sql.DB, ledger *LedgerService) *TransactionService {
	return &TransactionService{
		db:        db,
		ledger:    ledger,
		validator: NewValidationHelper(),
	}
}

// CreateTransferRequest is the P2P transfer payload.
type CreateTransferRequest struct {
	ReceiverID  int             `json:"receiverId" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description" validate:"omitempty,max=500"`
	Message     *string         `json:"message" validate:"omitempty,max=500"`
}

// CreateTransaction executes a P2P transfer from the authenticated user.
// @Summary Send money to another user
// @Description Atomically move funds from the authenticated user to a receiver
// @Tags transactions
// @Accept json
// @Produce json
// @Param request body CreateTransferRequest true "Transfer payload"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse "Validation failure or insufficient funds"
// @Failure 404 {object} ErrorResponse "Receiver not found"
// @Failure 500 {object} ErrorResponse
// @Router /me/transactions [post]
func (ts *TransactionService) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := ts.db.Begin()
	if err != nil {
		log.Printf("[TRANSACTION] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Transaction failed, please try again.", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	record, err := ts.ledger.TransferPeerToPeerTx(tx, userID, req.ReceiverID, req.Amount, req.Description, req.Message)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[TRANSACTION] Failed to commit transfer %s: %v", record.ID, err)
		SendErrorResponse(w, "Transaction failed, please try again.", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

// ListTransactions returns the authenticated user's transactions.
// @Summary List transactions
// @Tags transactions
// @Produce json
// @Success 200 {array} models.Transaction
// @Failure 500 {object} ErrorResponse
// @Router /me/transactions [get]
func (ts *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	// Objective ids live in a different sequence than user ids, so for
	// saving rows participation goes through objective ownership instead
	// of the raw sender/receiver columns.
	rows, err := ts.db.Query(`
		SELECT id, sender_id, receiver_id, amount, type, status, category, description, message, created_at, processed_at
		FROM transactions
		WHERE (type <> 'saving' AND (sender_id = $1 OR receiver_id = $1))
		   OR (type = 'saving' AND EXISTS (
			SELECT 1 FROM savings_objectives so
			WHERE so.user_id = $1 AND so.id IN (transactions.sender_id, transactions.receiver_id)))
		ORDER BY created_at DESC`, userID)
	if err != nil {
		log.Printf("[TRANSACTION] Failed to list transactions for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions, err := scanTransactions(rows)
	if err != nil {
		log.Printf("[TRANSACTION] Failed to scan transactions for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// GetTransaction returns a single transaction the user participated in.
// @Summary Get transaction by ID
// @Tags transactions
// @Produce json
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Router /me/transactions/{txId} [get]
func (ts *TransactionService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	txID := chi.URLParam(r, "txId")

	var t models.Transaction
	err := ts.db.QueryRow(`
		SELECT id, sender_id, receiver_id, amount, type, status, category, description, message, created_at, processed_at
		FROM transactions
		WHERE id = $1
		  AND ((type <> 'saving' AND (sender_id = $2 OR receiver_id = $2))
		   OR (type = 'saving' AND EXISTS (
			SELECT 1 FROM savings_objectives so
			WHERE so.user_id = $2 AND so.id IN (transactions.sender_id, transactions.receiver_id))))`, txID, userID).
		Scan(&t.ID, &t.SenderID, &t.ReceiverID, &t.Amount, &t.Type, &t.Status,
			&t.Category, &t.Description, &t.Message, &t.CreatedAt, &t.ProcessedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[TRANSACTION] Failed to fetch transaction %s: %v", txID, err)
		SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(t)
}

// GetCategories lists the expense classification tags.
// @Summary List transaction categories
// @Tags transactions
// @Produce json
// @Success 200 {array} string
// @Router /me/transactions/categories [get]
func (ts *TransactionService) GetCategories(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.Categories)
}

// GetTransactionsByCategory aggregates the user's current-month spending
// per category. Read-side aggregation only; correctness of balances never
// depends on this query.
// @Summary Current-month spending by category
// @Tags transactions
// @Produce json
// @Success 200 {array} models.CategorySpend
// @Failure 500 {object} ErrorResponse
// @Router /me/transactions/by-category [get]
func (ts *TransactionService) GetTransactionsByCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := ts.db.Query(`
		SELECT category, COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE sender_id = $1
		  AND status = 'completed'
		  AND category IS NOT NULL
		  AND created_at >= date_trunc('month', NOW())
		GROUP BY category
		ORDER BY category`, userID)
	if err != nil {
		log.Printf("[TRANSACTION] Failed to aggregate categories for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch category totals", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	totals := []models.CategorySpend{}
	for rows.Next() {
		var cs models.CategorySpend
		if err := rows.Scan(&cs.Category, &cs.Total); err != nil {
			log.Printf("[TRANSACTION] Failed to scan category total: %v", err)
			SendErrorResponse(w, "Failed to fetch category totals", http.StatusInternalServerError, nil)
			return
		}
		totals = append(totals, cs)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(totals)
}

func scanTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.SenderID, &t.ReceiverID, &t.Amount, &t.Type, &t.Status,
			&t.Category, &t.Description, &t.Message, &t.CreatedAt, &t.ProcessedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// writeLedgerError maps ledger error kinds to HTTP status codes. Callers
// must not have committed: by the time an error reaches here the deferred
// rollback undoes any partial mutation.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInsufficientSavings):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrObjectiveNotFound):
		SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	default:
		log.Printf("[LEDGER] Storage failure: %v", err)
		SendErrorResponse(w, "Transaction failed, please try again.", http.StatusInternalServerError, nil)
	}
}
