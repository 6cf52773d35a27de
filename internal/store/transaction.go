package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/allowance/internal/model"
)

type TransactionStore struct {
	db DBTX
}

func NewTransactionStore(db DBTX) *TransactionStore {
	return &TransactionStore{db: db}
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	err := scanner.Scan(&t.ID, &t.Type, &t.Amount, &t.VideoGames, &t.GeneralSpending, &t.Charity, &t.Savings, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const transactionCols = `id, type, amount, video_games, general_spending, charity, savings, created_at`

// Append records a transaction. ID in t is ignored.
func (s *TransactionStore) Append(ctx context.Context, t model.Transaction) (*model.Transaction, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (type, amount, video_games, general_spending, charity, savings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(t.Type), t.Amount.String(), t.VideoGames.String(), t.GeneralSpending.String(),
		t.Charity.String(), t.Savings.String(), t.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionCols+` FROM transactions WHERE id = ?`, id)
	created, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return created, nil
}

// List returns every transaction, oldest first.
func (s *TransactionStore) List(ctx context.Context) ([]model.Transaction, error) {
	return s.list(ctx, `SELECT `+transactionCols+` FROM transactions ORDER BY created_at ASC, id ASC`)
}

// ListDeposits returns deposit transactions, newest first.
func (s *TransactionStore) ListDeposits(ctx context.Context) ([]model.Transaction, error) {
	return s.list(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE type = ? ORDER BY created_at DESC, id DESC`,
		string(model.TransactionDeposit),
	)
}

func (s *TransactionStore) list(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

// DeleteAll removes every transaction and returns how many were removed.
func (s *TransactionStore) DeleteAll(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	return result.RowsAffected()
}
