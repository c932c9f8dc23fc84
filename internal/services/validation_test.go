package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid transfer request", func(t *testing.T) {
		req := CreateTransferRequest{ReceiverID: 2}

		err := vh.ValidateStruct(&req)
		assert.NoError(t, err)
	})

	t.Run("missing receiver", func(t *testing.T) {
		req := CreateTransferRequest{}

		err := vh.ValidateStruct(&req)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "ReceiverID", validationErrors[0].Field())
	})

	t.Run("invalid registration", func(t *testing.T) {
		req := RegisterRequest{
			Email:       "not-an-email",
			Password:    "short",
			FullName:    "J",
			PhoneNumber: "123",
		}

		err := vh.ValidateStruct(&req)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 4)
	})

	t.Run("unknown budget category", func(t *testing.T) {
		alloc := BudgetCategoryAllocation{Category: "crypto"}

		err := vh.ValidateStruct(&alloc)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Equal(t, "oneof", validationErrors[0].Tag())
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		vh := NewValidationHelper()
		invalid := RegisterRequest{
			Email:       "not-an-email",
			Password:    "short",
			FullName:    "Jean Dupont",
			PhoneNumber: "+33612345678",
		}

		validationErr := vh.ValidateStruct(&invalid)
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "Email")
		assert.Contains(t, response.Details, "Password")
	})
}

func TestDecodeJSON(t *testing.T) {
	t.Run("unknown fields rejected", func(t *testing.T) {
		r := authRequest("POST", "/me/transactions", []byte(`{"receiverId": 2, "bogus": true}`), 1)
		w := httptest.NewRecorder()

		var req CreateTransferRequest
		assert.Error(t, decodeJSON(w, r, &req))
	})

	t.Run("trailing object rejected", func(t *testing.T) {
		r := authRequest("POST", "/me/transactions", []byte(`{"receiverId": 2}{"receiverId": 3}`), 1)
		w := httptest.NewRecorder()

		var req CreateTransferRequest
		assert.Error(t, decodeJSON(w, r, &req))
	})

	t.Run("single object accepted", func(t *testing.T) {
		r := authRequest("POST", "/me/transactions", []byte(`{"receiverId": 2, "amount": "10.50"}`), 1)
		w := httptest.NewRecorder()

		var req CreateTransferRequest
		assert.NoError(t, decodeJSON(w, r, &req))
		assert.Equal(t, 2, req.ReceiverID)
	})
}
