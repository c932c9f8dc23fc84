package database

import (
	"database/sql"
	"fmt"
	"log"
)

// migrations are applied in order on startup. Each statement is
// idempotent so repeated runs are safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		full_name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		phone_number VARCHAR(20) NOT NULL,
		password VARCHAR(255) NOT NULL,
		balance NUMERIC(14,2) NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 0,
		xp INTEGER NOT NULL DEFAULT 0,
		avatar_url VARCHAR(512),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_phone_number ON users (phone_number)`,

	// Email uniqueness excludes placeholder accounts created for
	// not-yet-registered contacts, which share an empty email.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (email) WHERE email <> ''`,

	`CREATE TABLE IF NOT EXISTS savings_objectives (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		target_amount NUMERIC(14,2) NOT NULL,
		current_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		target_date TIMESTAMPTZ,
		description TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS idx_savings_objectives_user_id ON savings_objectives (user_id)`,

	// sender_id and receiver_id intentionally carry no foreign keys: for
	// savings movements one side refers to a savings objective, and
	// completed records must outlive any referenced row.
	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		sender_id INTEGER,
		receiver_id INTEGER,
		amount NUMERIC(14,2) NOT NULL,
		type VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		category VARCHAR(30),
		description TEXT,
		message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS idx_transactions_sender_id ON transactions (sender_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_receiver_id ON transactions (receiver_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions (created_at)`,

	`CREATE TABLE IF NOT EXISTS contacts (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		contact_user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		nickname VARCHAR(100),
		is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ,
		UNIQUE (user_id, contact_user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS budgets (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		total_amount NUMERIC(14,2) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS idx_budgets_user_id ON budgets (user_id)`,

	`CREATE TABLE IF NOT EXISTS budget_categories (
		id SERIAL PRIMARY KEY,
		budget_id INTEGER NOT NULL REFERENCES budgets (id) ON DELETE CASCADE,
		category VARCHAR(30) NOT NULL,
		allocated_amount NUMERIC(14,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ,
		UNIQUE (budget_id, category)
	)`,
}

// RunMigrations applies the schema. Safe to call on every startup.
func RunMigrations(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	log.Printf("[DB] Applied %d migrations", len(migrations))
	return nil
}
