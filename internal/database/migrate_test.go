package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func findCreateTable(t *testing.T, table string) string {
	t.Helper()
	for _, stmt := range migrations {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			return stmt
		}
	}
	t.Fatalf("no migration creates table %s", table)
	return ""
}

// Every column the services read or write must exist in the DDL; sqlmock
// tests only exercise the services' own column lists, so this is the one
// place the two are cross-checked.
func TestMigrations_ColumnsMatchServices(t *testing.T) {
	serviceColumns := map[string][]string{
		"users": {"full_name", "email", "phone_number", "password",
			"balance", "level", "xp", "avatar_url", "created_at", "updated_at"},
		"savings_objectives": {"user_id", "name", "target_amount", "current_amount",
			"target_date", "description", "is_active", "created_at", "updated_at"},
		"transactions": {"sender_id", "receiver_id", "amount", "type", "status",
			"category", "description", "message", "created_at", "processed_at"},
		"contacts": {"user_id", "contact_user_id", "nickname", "is_favorite",
			"created_at", "updated_at"},
		"budgets": {"user_id", "total_amount", "is_active", "description",
			"created_at", "updated_at"},
		"budget_categories": {"budget_id", "category", "allocated_amount",
			"created_at", "updated_at"},
	}

	for table, columns := range serviceColumns {
		t.Run(table, func(t *testing.T) {
			ddl := findCreateTable(t, table)
			for _, column := range columns {
				assert.Contains(t, ddl, column)
			}
		})
	}
}

func TestMigrations_BudgetsHaveNoNameColumn(t *testing.T) {
	// Budgets are anonymous monthly envelopes; only objectives are named.
	// The budget service never supplies a name, so a NOT NULL name column
	// would break CreateBudget.
	ddl := findCreateTable(t, "budgets")
	assert.NotContains(t, ddl, "name")
}
