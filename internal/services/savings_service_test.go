package services

import (
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

var objectiveColumns = []string{
	"id", "user_id", "name", "target_amount", "current_amount",
	"target_date", "description", "is_active", "created_at", "updated_at"}

func savingsTestRouter(service *SavingsService) chi.Router {
	r := chi.NewRouter()
	r.Get("/me/savings-objectives", service.ListObjectives)
	r.Post("/me/savings-objectives", service.CreateObjective)
	r.Get("/me/savings-objectives/{id}", service.GetObjective)
	r.Put("/me/savings-objectives/{id}", service.UpdateObjective)
	r.Delete("/me/savings-objectives/{id}", service.DeleteObjective)
	r.Post("/me/savings-objectives/{id}/add", service.AddToSavings)
	r.Post("/me/savings-objectives/{id}/remove", service.RemoveFromSavings)
	return r
}

func TestSavingsService_ListObjectives(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSavingsService(db, NewLedgerService(db))
	router := savingsTestRouter(service)

	now := time.Now()
	mock.ExpectQuery("SELECT id, user_id, name, target_amount, current_amount, target_date, description, is_active, created_at, updated_at FROM savings_objectives").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(objectiveColumns).
			AddRow(9, 1, "Vacances", "500.00", "125.00", nil, nil, true, now, nil).
			AddRow(10, 1, "Nouveau vélo", "300.00", "300.00", nil, nil, true, now, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/me/savings-objectives", nil, 1))

	assert.Equal(t, http.StatusOK, w.Code)
	var views []map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	assert.Len(t, views, 2)
	assert.Equal(t, false, views[0]["completed"])
	assert.Equal(t, 25.0, views[0]["progressPercentage"])
	assert.Equal(t, true, views[1]["completed"])
	assert.Equal(t, 100.0, views[1]["progressPercentage"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavingsService_CreateObjective(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSavingsService(db, NewLedgerService(db))
	router := savingsTestRouter(service)

	t.Run("created with zero current amount", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("INSERT INTO savings_objectives").
			WithArgs(1, "Vacances", decimal.RequireFromString("500"), nil, nil).
			WillReturnRows(sqlmock.NewRows(objectiveColumns).
				AddRow(9, 1, "Vacances", "500.00", "0.00", nil, nil, true, now, nil))

		body, _ := json.Marshal(map[string]interface{}{"name": "Vacances", "targetAmount": "500"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("POST", "/me/savings-objectives", body, 1))

		assert.Equal(t, http.StatusCreated, w.Code)
		var o models.SavingsObjective
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &o))
		assert.True(t, o.CurrentAmount.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive target rejected", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{"name": "Vacances", "targetAmount": "0"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("POST", "/me/savings-objectives", body, 1))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing name rejected", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{"targetAmount": "500"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("POST", "/me/savings-objectives", body, 1))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSavingsService_GetObjective(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSavingsService(db, NewLedgerService(db))
	router := savingsTestRouter(service)

	t.Run("includes saving transactions", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT id, user_id, name, target_amount, current_amount, target_date, description, is_active, created_at, updated_at FROM savings_objectives").
			WithArgs(9, 1).
			WillReturnRows(sqlmock.NewRows(objectiveColumns).
				AddRow(9, 1, "Vacances", "500.00", "125.00", nil, nil, true, now, nil))

		txColumns := []string{"id", "sender_id", "receiver_id", "amount", "type", "status",
			"category", "description", "message", "created_at", "processed_at"}
		mock.ExpectQuery("WHERE receiver_id = \\$1 AND sender_id = \\$2 AND type = 'saving'").
			WithArgs(9, 1).
			WillReturnRows(sqlmock.NewRows(txColumns).
				AddRow("tx-1", 1, 9, "125.00", "saving", "completed", nil, nil, nil, now, now))
		mock.ExpectQuery("WHERE sender_id = \\$1 AND receiver_id = \\$2 AND type = 'saving'").
			WithArgs(9, 1).
			WillReturnRows(sqlmock.NewRows(txColumns))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("GET", "/me/savings-objectives/9", nil, 1))

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			objectiveView
			IncomingTransactions []models.Transaction `json:"incomingTransactions"`
			OutgoingTransactions []models.Transaction `json:"outgoingTransactions"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Len(t, response.IncomingTransactions, 1)
		assert.Len(t, response.OutgoingTransactions, 0)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other user's objective is not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, user_id, name, target_amount, current_amount, target_date, description, is_active, created_at, updated_at FROM savings_objectives").
			WithArgs(9, 2).
			WillReturnRows(sqlmock.NewRows(objectiveColumns))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("GET", "/me/savings-objectives/9", nil, 2))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSavingsService_DeleteObjective(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSavingsService(db, NewLedgerService(db))
	router := savingsTestRouter(service)

	t.Run("blocked while funds remain", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT id, user_id, name, target_amount, current_amount, target_date, description, is_active, created_at, updated_at FROM savings_objectives").
			WithArgs(9, 1).
			WillReturnRows(sqlmock.NewRows(objectiveColumns).
				AddRow(9, 1, "Vacances", "500.00", "125.00", nil, nil, true, now, nil))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("DELETE", "/me/savings-objectives/9", nil, 1))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "still has funds")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty objective deleted", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT id, user_id, name, target_amount, current_amount, target_date, description, is_active, created_at, updated_at FROM savings_objectives").
			WithArgs(9, 1).
			WillReturnRows(sqlmock.NewRows(objectiveColumns).
				AddRow(9, 1, "Vacances", "500.00", "0.00", nil, nil, true, now, nil))
		mock.ExpectExec("DELETE FROM savings_objectives").
			WithArgs(9, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("DELETE", "/me/savings-objectives/9", nil, 1))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSavingsService_AddToSavings(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSavingsService(db, NewLedgerService(db))
	router := savingsTestRouter(service)

	t.Run("successful deposit", func(t *testing.T) {
		amount := decimal.NewFromInt(40)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT balance FROM users").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("100.00"))
		mock.ExpectQuery("SELECT current_amount FROM savings_objectives").
			WithArgs(9, 1).
			WillReturnRows(sqlmock.NewRows([]string{"current_amount"}).AddRow("0.00"))
		mock.ExpectExec("UPDATE users").
			WithArgs(amount.Neg(), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE savings_objectives").
			WithArgs(amount, 9).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(map[string]interface{}{"amount": "40"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("POST", "/me/savings-objectives/9/add", body, 1))

		assert.Equal(t, http.StatusCreated, w.Code)
		var record models.Transaction
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
		assert.Equal(t, models.TransactionTypeSaving, record.Type)
		assert.Equal(t, 1, *record.SenderID)
		assert.Equal(t, 9, *record.ReceiverID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT balance FROM users").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("10.00"))
		mock.ExpectQuery("SELECT current_amount FROM savings_objectives").
			WithArgs(9, 1).
			WillReturnRows(sqlmock.NewRows([]string{"current_amount"}).AddRow("0.00"))
		mock.ExpectRollback()

		body, _ := json.Marshal(map[string]interface{}{"amount": "40"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("POST", "/me/savings-objectives/9/add", body, 1))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSavingsService_RemoveFromSavings(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSavingsService(db, NewLedgerService(db))
	router := savingsTestRouter(service)

	t.Run("successful withdrawal", func(t *testing.T) {
		amount := decimal.NewFromInt(40)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT balance FROM users").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("60.00"))
		mock.ExpectQuery("SELECT current_amount FROM savings_objectives").
			WithArgs(9, 1).
			WillReturnRows(sqlmock.NewRows([]string{"current_amount"}).AddRow("50.00"))
		mock.ExpectExec("UPDATE savings_objectives").
			WithArgs(amount.Neg(), 9).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE users").
			WithArgs(amount, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(map[string]interface{}{"amount": "40"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("POST", "/me/savings-objectives/9/remove", body, 1))

		assert.Equal(t, http.StatusCreated, w.Code)
		var record models.Transaction
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
		assert.Equal(t, 9, *record.SenderID)
		assert.Equal(t, 1, *record.ReceiverID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient savings", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT balance FROM users").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("60.00"))
		mock.ExpectQuery("SELECT current_amount FROM savings_objectives").
			WithArgs(9, 1).
			WillReturnRows(sqlmock.NewRows([]string{"current_amount"}).AddRow("40.00"))
		mock.ExpectRollback()

		body, _ := json.Marshal(map[string]interface{}{"amount": "50"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, authRequest("POST", "/me/savings-objectives/9/remove", body, 1))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
