package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/centz/backend/internal/models"
)

// Ledger error kinds. Handlers map these to HTTP status codes; anything
// else is treated as a storage failure and rolled back by the caller.
var (
	ErrInvalidAmount       = errors.New("amount must be a positive amount with at most two decimal places")
	ErrSameAccount         = errors.New("sender and receiver must be different accounts")
	ErrAccountNotFound     = errors.New("account not found")
	ErrObjectiveNotFound   = errors.New("savings objective not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientSavings = errors.New("insufficient savings")
)

// LedgerService executes monetary movements between two accounts as a
// single all-or-nothing unit. Every operation runs inside a caller-supplied
// *sql.Tx: a failure at any point leaves the caller free to roll the whole
// unit of work back, so no partial movement is ever observable.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// TransferPeerToPeer runs a P2P transfer in its own database transaction.
func (s *LedgerService) TransferPeerToPeer(senderID, receiverID int, amount decimal.Decimal, description, message *string) (*models.Transaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback()

	record, err := s.TransferPeerToPeerTx(tx, senderID, receiverID, amount, description, message)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transfer: %w", err)
	}
	return record, nil
}

// TransferPeerToPeerTx moves amount from one user balance to another inside
// the given transaction. The two user rows are locked in ascending id order
// regardless of direction, so concurrent transfers between the same pair
// cannot form a cross-wait cycle.
func (s *LedgerService) TransferPeerToPeerTx(tx *sql.Tx, senderID, receiverID int, amount decimal.Decimal, description, message *string) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, ErrSameAccount
	}

	firstLock, secondLock := senderID, receiverID
	if receiverID < senderID {
		firstLock, secondLock = receiverID, senderID
	}

	firstBalance, err := s.lockUserBalance(tx, firstLock)
	if err != nil {
		return nil, err
	}
	secondBalance, err := s.lockUserBalance(tx, secondLock)
	if err != nil {
		return nil, err
	}

	senderBalance := firstBalance
	if firstLock != senderID {
		senderBalance = secondBalance
	}

	if senderBalance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	if err := s.adjustUserBalance(tx, senderID, amount.Neg()); err != nil {
		return nil, err
	}
	if err := s.adjustUserBalance(tx, receiverID, amount); err != nil {
		return nil, err
	}

	return s.insertTransaction(tx, senderID, receiverID, amount, models.TransactionTypeP2P, description, message)
}

// DepositToObjective runs a savings deposit in its own database transaction.
func (s *LedgerService) DepositToObjective(userID, objectiveID int, amount decimal.Decimal, description, message *string) (*models.Transaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin deposit: %w", err)
	}
	defer tx.Rollback()

	record, err := s.DepositToObjectiveTx(tx, userID, objectiveID, amount, description, message)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deposit: %w", err)
	}
	return record, nil
}

// DepositToObjectiveTx moves amount from the user's balance into one of
// their savings objectives. Ownership violations surface as
// ErrObjectiveNotFound so other users' objectives are never revealed.
// The objective may exceed its target; no clamping.
func (s *LedgerService) DepositToObjectiveTx(tx *sql.Tx, userID, objectiveID int, amount decimal.Decimal, description, message *string) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	// User row first, objective row second. Both savings operations use
	// this order, which keeps the cross-table lock order total.
	balance, err := s.lockUserBalance(tx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.lockObjectiveAmount(tx, objectiveID, userID); err != nil {
		return nil, err
	}

	if balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	if err := s.adjustUserBalance(tx, userID, amount.Neg()); err != nil {
		return nil, err
	}
	if err := s.adjustObjectiveAmount(tx, objectiveID, amount); err != nil {
		return nil, err
	}

	return s.insertTransaction(tx, userID, objectiveID, amount, models.TransactionTypeSaving, description, message)
}

// WithdrawFromObjective runs a savings withdrawal in its own database transaction.
func (s *LedgerService) WithdrawFromObjective(userID, objectiveID int, amount decimal.Decimal, description, message *string) (*models.Transaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin withdrawal: %w", err)
	}
	defer tx.Rollback()

	record, err := s.WithdrawFromObjectiveTx(tx, userID, objectiveID, amount, description, message)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit withdrawal: %w", err)
	}
	return record, nil
}

// WithdrawFromObjectiveTx moves amount out of a savings objective back into
// the owner's balance. An underfunded objective fails with
// ErrInsufficientSavings, distinct from ErrInsufficientFunds since the
// remediation differs. The record's sender is the objective: the sender is
// always the side the money left.
func (s *LedgerService) WithdrawFromObjectiveTx(tx *sql.Tx, userID, objectiveID int, amount decimal.Decimal, description, message *string) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	if _, err := s.lockUserBalance(tx, userID); err != nil {
		return nil, err
	}
	current, err := s.lockObjectiveAmount(tx, objectiveID, userID)
	if err != nil {
		return nil, err
	}

	if current.LessThan(amount) {
		return nil, ErrInsufficientSavings
	}

	if err := s.adjustObjectiveAmount(tx, objectiveID, amount.Neg()); err != nil {
		return nil, err
	}
	if err := s.adjustUserBalance(tx, userID, amount); err != nil {
		return nil, err
	}

	return s.insertTransaction(tx, objectiveID, userID, amount, models.TransactionTypeSaving, description, message)
}

// lockUserBalance reads a user's balance under an exclusive row lock. A
// concurrent ledger operation on the same user blocks here until this unit
// of work commits or rolls back.
func (s *LedgerService) lockUserBalance(tx *sql.Tx, userID int) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(`
		SELECT balance FROM users
		WHERE id = $1
		FOR UPDATE`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("lock user %d: %w", userID, err)
	}
	return balance, nil
}

// lockObjectiveAmount reads an objective's current amount under an
// exclusive row lock, scoped to its owner.
func (s *LedgerService) lockObjectiveAmount(tx *sql.Tx, objectiveID, userID int) (decimal.Decimal, error) {
	var current decimal.Decimal
	err := tx.QueryRow(`
		SELECT current_amount FROM savings_objectives
		WHERE id = $1 AND user_id = $2
		FOR UPDATE`, objectiveID, userID).Scan(&current)
	if err == sql.ErrNoRows {
		return decimal.Zero, ErrObjectiveNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("lock objective %d: %w", objectiveID, err)
	}
	return current, nil
}

func (s *LedgerService) adjustUserBalance(tx *sql.Tx, userID int, delta decimal.Decimal) error {
	result, err := tx.Exec(`
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2`, delta, userID)
	if err != nil {
		return fmt.Errorf("adjust balance of user %d: %w", userID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust balance of user %d: %w", userID, err)
	}
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *LedgerService) adjustObjectiveAmount(tx *sql.Tx, objectiveID int, delta decimal.Decimal) error {
	result, err := tx.Exec(`
		UPDATE savings_objectives
		SET current_amount = current_amount + $1, updated_at = NOW()
		WHERE id = $2`, delta, objectiveID)
	if err != nil {
		return fmt.Errorf("adjust objective %d: %w", objectiveID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust objective %d: %w", objectiveID, err)
	}
	if rows == 0 {
		return ErrObjectiveNotFound
	}
	return nil
}

// insertTransaction appends the immutable record for a completed movement.
// Records are created exactly once and never updated or deleted.
func (s *LedgerService) insertTransaction(tx *sql.Tx, senderID, receiverID int, amount decimal.Decimal, txType string, description, message *string) (*models.Transaction, error) {
	now := time.Now().UTC()
	record := &models.Transaction{
		ID:          uuid.NewString(),
		SenderID:    &senderID,
		ReceiverID:  &receiverID,
		Amount:      amount,
		Type:        txType,
		Status:      models.TransactionStatusCompleted,
		Description: description,
		Message:     message,
		CreatedAt:   now,
		ProcessedAt: &now,
	}

	_, err := tx.Exec(`
		INSERT INTO transactions (id, sender_id, receiver_id, amount, type, status, description, message, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.SenderID, record.ReceiverID, record.Amount, record.Type,
		record.Status, record.Description, record.Message, record.CreatedAt, record.ProcessedAt)
	if err != nil {
		return nil, fmt.Errorf("insert transaction record: %w", err)
	}
	return record, nil
}

// validateAmount rejects non-positive amounts and sub-cent precision
// before any lock is acquired.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.Exponent() < -2 {
		return ErrInvalidAmount
	}
	return nil
}
