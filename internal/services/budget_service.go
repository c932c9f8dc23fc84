package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/centz/backend/internal/models"
)

// BudgetService manages monthly budgets and their category allocations.
// All of its monthly statistics come from plain SQL aggregation over the
// transaction log; it never touches balances.
type BudgetService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewBudgetService(db *sql.DB) *BudgetService {
	return &BudgetService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// CreateBudgetRequest is the budget creation payload.
type CreateBudgetRequest struct {
	TotalAmount decimal.Decimal           `json:"totalAmount"`
	Description *string                   `json:"description" validate:"omitempty,max=500"`
	Categories  []BudgetCategoryAllocation `json:"categories" validate:"omitempty,dive"`
}

// BudgetCategoryAllocation allocates part of the budget to one category.
type BudgetCategoryAllocation struct {
	Category        string          `json:"category" validate:"required,oneof=shopping video_games food bar transport entertainment health education utilities other"`
	AllocatedAmount decimal.Decimal `json:"allocatedAmount"`
}

// UpdateBudgetRequest is the budget update payload.
type UpdateBudgetRequest struct {
	TotalAmount *decimal.Decimal `json:"totalAmount"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
	IsActive    *bool            `json:"isActive"`
}

// UpdateCategoryRequest updates one category allocation.
type UpdateCategoryRequest struct {
	AllocatedAmount decimal.Decimal `json:"allocatedAmount"`
}

type budgetCategoryStats struct {
	models.BudgetCategory
	SpentAmount           decimal.Decimal `json:"spentAmount"`
	RemainingAmount       decimal.Decimal `json:"remainingAmount"`
	UtilizationPercentage float64         `json:"utilizationPercentage"`
	IsExceeded            bool            `json:"isExceeded"`
}

type budgetStats struct {
	models.Budget
	TotalSpent            decimal.Decimal       `json:"totalSpent"`
	RemainingAmount       decimal.Decimal       `json:"remainingAmount"`
	UtilizationPercentage float64               `json:"utilizationPercentage"`
	IsExceeded            bool                  `json:"isExceeded"`
	Categories            []budgetCategoryStats `json:"categories"`
}

// GetBudget returns the user's active budget with current-month statistics.
// @Summary Get active budget with month stats
// @Tags budget
// @Produce json
// @Success 200 {object} budgetStats
// @Failure 404 {object} ErrorResponse "No active budget"
// @Router /me/budget [get]
func (bs *BudgetService) GetBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var b models.Budget
	err := bs.db.QueryRow(`
		SELECT id, user_id, total_amount, is_active, description, created_at, updated_at
		FROM budgets
		WHERE user_id = $1 AND is_active = TRUE`, userID).
		Scan(&b.ID, &b.UserID, &b.TotalAmount, &b.IsActive, &b.Description, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "No active budget", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[BUDGET] Failed to fetch budget for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch budget", http.StatusInternalServerError, nil)
		return
	}

	totalSpent, err := bs.currentMonthSpent(userID, nil)
	if err != nil {
		log.Printf("[BUDGET] Failed to aggregate spend for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch budget", http.StatusInternalServerError, nil)
		return
	}

	categories, err := bs.fetchCategories(b.ID)
	if err != nil {
		log.Printf("[BUDGET] Failed to fetch categories for budget %d: %v", b.ID, err)
		SendErrorResponse(w, "Failed to fetch budget", http.StatusInternalServerError, nil)
		return
	}

	categoryStats := []budgetCategoryStats{}
	for _, c := range categories {
		spent, err := bs.currentMonthSpent(userID, &c.Category)
		if err != nil {
			log.Printf("[BUDGET] Failed to aggregate category %s for user %d: %v", c.Category, userID, err)
			SendErrorResponse(w, "Failed to fetch budget", http.StatusInternalServerError, nil)
			return
		}
		categoryStats = append(categoryStats, budgetCategoryStats{
			BudgetCategory:        c,
			SpentAmount:           spent,
			RemainingAmount:       remaining(c.AllocatedAmount, spent),
			UtilizationPercentage: utilization(c.AllocatedAmount, spent),
			IsExceeded:            spent.GreaterThan(c.AllocatedAmount),
		})
	}

	response := budgetStats{
		Budget:                b,
		TotalSpent:            totalSpent,
		RemainingAmount:       remaining(b.TotalAmount, totalSpent),
		UtilizationPercentage: utilization(b.TotalAmount, totalSpent),
		IsExceeded:            totalSpent.GreaterThan(b.TotalAmount),
		Categories:            categoryStats,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// CreateBudget creates a budget and deactivates the previous active one.
// @Summary Create budget
// @Tags budget
// @Accept json
// @Produce json
// @Param request body CreateBudgetRequest true "Budget payload"
// @Success 201 {object} models.Budget
// @Failure 400 {object} ErrorResponse
// @Router /me/budget [post]
func (bs *BudgetService) CreateBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := bs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !req.TotalAmount.IsPositive() {
		SendErrorResponse(w, "Total amount must be positive", http.StatusBadRequest, nil)
		return
	}

	totalAllocated := decimal.Zero
	for _, c := range req.Categories {
		if !c.AllocatedAmount.IsPositive() {
			SendErrorResponse(w, "Allocated amounts must be positive", http.StatusBadRequest, nil)
			return
		}
		totalAllocated = totalAllocated.Add(c.AllocatedAmount)
	}
	if totalAllocated.GreaterThan(req.TotalAmount) {
		SendErrorResponse(w, "Total allocated amount cannot exceed the total budget amount", http.StatusBadRequest, nil)
		return
	}

	tx, err := bs.db.Begin()
	if err != nil {
		log.Printf("[BUDGET] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to create budget", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE budgets SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND is_active = TRUE`, userID); err != nil {
		log.Printf("[BUDGET] Failed to deactivate previous budget for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create budget", http.StatusInternalServerError, nil)
		return
	}

	var b models.Budget
	err = tx.QueryRow(`
		INSERT INTO budgets (user_id, total_amount, is_active, description, created_at)
		VALUES ($1, $2, TRUE, $3, NOW())
		RETURNING id, user_id, total_amount, is_active, description, created_at, updated_at`,
		userID, req.TotalAmount, req.Description).
		Scan(&b.ID, &b.UserID, &b.TotalAmount, &b.IsActive, &b.Description, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		log.Printf("[BUDGET] Failed to create budget for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create budget", http.StatusInternalServerError, nil)
		return
	}

	for _, c := range req.Categories {
		var bc models.BudgetCategory
		err := tx.QueryRow(`
			INSERT INTO budget_categories (budget_id, category, allocated_amount, created_at)
			VALUES ($1, $2, $3, NOW())
			RETURNING id, budget_id, category, allocated_amount, created_at, updated_at`,
			b.ID, c.Category, c.AllocatedAmount).
			Scan(&bc.ID, &bc.BudgetID, &bc.Category, &bc.AllocatedAmount, &bc.CreatedAt, &bc.UpdatedAt)
		if err != nil {
			log.Printf("[BUDGET] Failed to create category %s for budget %d: %v", c.Category, b.ID, err)
			SendErrorResponse(w, "Failed to create budget", http.StatusInternalServerError, nil)
			return
		}
		b.Categories = append(b.Categories, bc)
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[BUDGET] Failed to commit budget for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create budget", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(b)
}

// UpdateBudget updates the user's budget.
// @Summary Update budget
// @Tags budget
// @Accept json
// @Produce json
// @Param id path int true "Budget ID"
// @Param request body UpdateBudgetRequest true "Update payload"
// @Success 200 {object} models.Budget
// @Failure 404 {object} ErrorResponse
// @Router /me/budget/{id} [put]
func (bs *BudgetService) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	budgetID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid budget id", http.StatusBadRequest, nil)
		return
	}

	var req UpdateBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := bs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.TotalAmount != nil && !req.TotalAmount.IsPositive() {
		SendErrorResponse(w, "Total amount must be positive", http.StatusBadRequest, nil)
		return
	}

	var b models.Budget
	err = bs.db.QueryRow(`
		UPDATE budgets
		SET total_amount = COALESCE($1, total_amount),
		    description = COALESCE($2, description),
		    is_active = COALESCE($3, is_active),
		    updated_at = NOW()
		WHERE id = $4 AND user_id = $5
		RETURNING id, user_id, total_amount, is_active, description, created_at, updated_at`,
		req.TotalAmount, req.Description, req.IsActive, budgetID, userID).
		Scan(&b.ID, &b.UserID, &b.TotalAmount, &b.IsActive, &b.Description, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Budget not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[BUDGET] Failed to update budget %d: %v", budgetID, err)
		SendErrorResponse(w, "Failed to update budget", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b)
}

// UpdateCategory changes one category allocation of the active budget.
// @Summary Update budget category allocation
// @Tags budget
// @Accept json
// @Produce json
// @Param categoryId path int true "Category ID"
// @Param request body UpdateCategoryRequest true "Allocation payload"
// @Success 200 {object} models.BudgetCategory
// @Failure 404 {object} ErrorResponse
// @Router /me/budget/categories/{categoryId} [put]
func (bs *BudgetService) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	categoryID, err := strconv.Atoi(chi.URLParam(r, "categoryId"))
	if err != nil {
		SendErrorResponse(w, "Invalid category id", http.StatusBadRequest, nil)
		return
	}

	var req UpdateCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if !req.AllocatedAmount.IsPositive() {
		SendErrorResponse(w, "Allocated amount must be positive", http.StatusBadRequest, nil)
		return
	}

	var bc models.BudgetCategory
	err = bs.db.QueryRow(`
		UPDATE budget_categories
		SET allocated_amount = $1, updated_at = NOW()
		WHERE id = $2 AND budget_id IN (
			SELECT id FROM budgets WHERE user_id = $3 AND is_active = TRUE
		)
		RETURNING id, budget_id, category, allocated_amount, created_at, updated_at`,
		req.AllocatedAmount, categoryID, userID).
		Scan(&bc.ID, &bc.BudgetID, &bc.Category, &bc.AllocatedAmount, &bc.CreatedAt, &bc.UpdatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Budget category not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[BUDGET] Failed to update category %d: %v", categoryID, err)
		SendErrorResponse(w, "Failed to update budget category", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bc)
}

// DeleteBudget removes the user's budget and its category allocations.
// @Summary Delete budget
// @Tags budget
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /me/budget [delete]
func (bs *BudgetService) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	result, err := bs.db.Exec(`DELETE FROM budgets WHERE user_id = $1`, userID)
	if err != nil {
		log.Printf("[BUDGET] Failed to delete budget for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to delete budget", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Budget not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Budget deleted successfully"})
}

// currentMonthSpent sums the user's completed outgoing expense movements
// for the current month, optionally restricted to one category. Saving
// movements are excluded: money moved into an objective is not spend.
func (bs *BudgetService) currentMonthSpent(userID int, category *string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE sender_id = $1
		  AND status = 'completed'
		  AND type <> 'saving'
		  AND created_at >= date_trunc('month', NOW())`
	args := []any{userID}

	if category != nil {
		query += ` AND category = $2`
		args = append(args, *category)
	}

	var total decimal.Decimal
	if err := bs.db.QueryRow(query, args...).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (bs *BudgetService) fetchCategories(budgetID int) ([]models.BudgetCategory, error) {
	rows, err := bs.db.Query(`
		SELECT id, budget_id, category, allocated_amount, created_at, updated_at
		FROM budget_categories
		WHERE budget_id = $1
		ORDER BY id`, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.BudgetCategory{}
	for rows.Next() {
		var bc models.BudgetCategory
		if err := rows.Scan(&bc.ID, &bc.BudgetID, &bc.Category, &bc.AllocatedAmount, &bc.CreatedAt, &bc.UpdatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, bc)
	}
	return categories, rows.Err()
}

func remaining(allocated, spent decimal.Decimal) decimal.Decimal {
	r := allocated.Sub(spent)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func utilization(allocated, spent decimal.Decimal) float64 {
	if allocated.IsZero() {
		return 0
	}
	pct, _ := spent.Div(allocated).Mul(decimal.NewFromInt(100)).Float64()
	if pct > 100 {
		return 100
	}
	return pct
}
