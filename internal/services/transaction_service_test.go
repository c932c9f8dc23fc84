package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/centz/backend/internal/models"
)

// authRequest builds a request carrying the user id the auth middleware
// would normally attach.
func authRequest(method, target string, body []byte, userID int) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewBuffer(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	return r.WithContext(context.WithValue(r.Context(), "userID", userID))
}

func TestTransactionService_CreateTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, NewLedgerService(db))

	t.Run("successful transfer", func(t *testing.T) {
		amount := decimal.RequireFromString("25.50")

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT balance FROM users").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("100.00"))
		mock.ExpectQuery("SELECT balance FROM users").
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("0.00"))
		mock.ExpectExec("UPDATE users").
			WithArgs(amount.Neg(), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE users").
			WithArgs(amount, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(map[string]interface{}{
			"receiverId": 2,
			"amount":     "25.50",
			"message":    "Merci pour le déjeuner !",
		})
		w := httptest.NewRecorder()

		service.CreateTransaction(w, authRequest("POST", "/me/transactions", body, 1))

		assert.Equal(t, http.StatusCreated, w.Code)
		var record models.Transaction
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
		assert.Equal(t, models.TransactionStatusCompleted, record.Status)
		assert.Equal(t, 1, *record.SenderID)
		assert.Equal(t, 2, *record.ReceiverID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT balance FROM users").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("10.00"))
		mock.ExpectQuery("SELECT balance FROM users").
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("0.00"))
		mock.ExpectRollback()

		body, _ := json.Marshal(map[string]interface{}{"receiverId": 2, "amount": "25.50"})
		w := httptest.NewRecorder()

		service.CreateTransaction(w, authRequest("POST", "/me/transactions", body, 1))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("receiver not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT balance FROM users").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("100.00"))
		mock.ExpectQuery("SELECT balance FROM users").
			WithArgs(99).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))
		mock.ExpectRollback()

		body, _ := json.Marshal(map[string]interface{}{"receiverId": 99, "amount": "10"})
		w := httptest.NewRecorder()

		service.CreateTransaction(w, authRequest("POST", "/me/transactions", body, 1))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self transfer", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		body, _ := json.Marshal(map[string]interface{}{"receiverId": 1, "amount": "10"})
		w := httptest.NewRecorder()

		service.CreateTransaction(w, authRequest("POST", "/me/transactions", body, 1))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid request body", func(t *testing.T) {
		w := httptest.NewRecorder()

		service.CreateTransaction(w, authRequest("POST", "/me/transactions", []byte("invalid"), 1))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing auth context", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/me/transactions", nil)
		w := httptest.NewRecorder()

		service.CreateTransaction(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTransactionService_ListTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, NewLedgerService(db))

	t.Run("returns transactions in both directions", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT id, sender_id, receiver_id, amount, type, status, category, description, message, created_at, processed_at FROM transactions").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "sender_id", "receiver_id", "amount", "type", "status",
				"category", "description", "message", "created_at", "processed_at"}).
				AddRow("tx-1", 1, 2, "25.50", "p2p", "completed", nil, nil, "Merci !", now, now).
				AddRow("tx-2", 3, 1, "12.00", "p2p", "completed", "food", nil, nil, now, now))

		w := httptest.NewRecorder()
		service.ListTransactions(w, authRequest("GET", "/me/transactions", nil, 1))

		assert.Equal(t, http.StatusOK, w.Code)
		var transactions []models.Transaction
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &transactions))
		assert.Len(t, transactions, 2)
		assert.Equal(t, "tx-1", transactions[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("saving rows are scoped through objective ownership", func(t *testing.T) {
		// Objective ids and user ids come from different sequences; a
		// saving record of someone else's objective must not surface just
		// because that objective id collides with this user's id.
		mock.ExpectQuery(`type = 'saving' AND EXISTS \( SELECT 1 FROM savings_objectives so WHERE so\.user_id = \$1`).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "sender_id", "receiver_id", "amount", "type", "status",
				"category", "description", "message", "created_at", "processed_at"}))

		w := httptest.NewRecorder()
		service.ListTransactions(w, authRequest("GET", "/me/transactions", nil, 1))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty history returns empty array", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, sender_id, receiver_id, amount, type, status, category, description, message, created_at, processed_at FROM transactions").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "sender_id", "receiver_id", "amount", "type", "status",
				"category", "description", "message", "created_at", "processed_at"}))

		w := httptest.NewRecorder()
		service.ListTransactions(w, authRequest("GET", "/me/transactions", nil, 1))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionService_GetTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, NewLedgerService(db))

	router := chi.NewRouter()
	router.Get("/me/transactions/{txId}", service.GetTransaction)

	t.Run("participant can fetch", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT id, sender_id, receiver_id, amount, type, status, category, description, message, created_at, processed_at FROM transactions").
			WithArgs("tx-1", 1).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "sender_id", "receiver_id", "amount", "type", "status",
				"category", "description", "message", "created_at", "processed_at"}).
				AddRow("tx-1", 1, 2, "25.50", "p2p", "completed", nil, nil, nil, now, now))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("GET", "/me/transactions/tx-1", nil, 1))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("saving record of another user's objective is not found", func(t *testing.T) {
		mock.ExpectQuery(`type = 'saving' AND EXISTS \( SELECT 1 FROM savings_objectives so WHERE so\.user_id = \$2`).
			WithArgs("tx-9", 1).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "sender_id", "receiver_id", "amount", "type", "status",
				"category", "description", "message", "created_at", "processed_at"}))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("GET", "/me/transactions/tx-9", nil, 1))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non participant gets not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, sender_id, receiver_id, amount, type, status, category, description, message, created_at, processed_at FROM transactions").
			WithArgs("tx-1", 3).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "sender_id", "receiver_id", "amount", "type", "status",
				"category", "description", "message", "created_at", "processed_at"}))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("GET", "/me/transactions/tx-1", nil, 3))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionService_GetCategories(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, NewLedgerService(db))

	w := httptest.NewRecorder()
	service.GetCategories(w, authRequest("GET", "/me/transactions/categories", nil, 1))

	assert.Equal(t, http.StatusOK, w.Code)
	var categories []string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &categories))
	assert.Contains(t, categories, "food")
	assert.Contains(t, categories, "other")
	assert.Len(t, categories, len(models.Categories))
}

func TestTransactionService_GetTransactionsByCategory(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db, NewLedgerService(db))

	mock.ExpectQuery("SELECT category, COALESCE").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"category", "total"}).
			AddRow("food", "80.50").
			AddRow("transport", "12.00"))

	w := httptest.NewRecorder()
	service.GetTransactionsByCategory(w, authRequest("GET", "/me/transactions/by-category", nil, 1))

	assert.Equal(t, http.StatusOK, w.Code)
	var totals []models.CategorySpend
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &totals))
	assert.Len(t, totals, 2)
	assert.Equal(t, "food", totals[0].Category)
	assert.True(t, totals[0].Total.Equal(decimal.RequireFromString("80.50")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
