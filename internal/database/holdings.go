package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/holdings-service/internal/models"
)

const insertHoldingQuery = `
	INSERT INTO holdings (symbol, quantity, ltp, avg_price, close)
	VALUES ($1, $2, $3, $4, $5)
`

// GetAllHoldings retrieves every stored holding in insertion order.
// Rows that do not carry a symbol are not holdings and are skipped.
func (db *DB) GetAllHoldings(ctx context.Context) ([]models.Holding, error) {
	query := `
		SELECT symbol, quantity, ltp, avg_price, close
		FROM holdings
		ORDER BY id
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := []models.Holding{}
	for rows.Next() {
		var symbol sql.NullString
		var quantity sql.NullInt64
		var ltp, avgPrice, closePrice decimal.NullDecimal

		if err := rows.Scan(&symbol, &quantity, &ltp, &avgPrice, &closePrice); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}

		var qty *int64
		if quantity.Valid {
			q := quantity.Int64
			qty = &q
		}

		h, err := models.NewHolding(symbol.String, qty, ltp, avgPrice, closePrice)
		if err != nil {
			continue
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}

	return holdings, nil
}

// ReplaceAllHoldings atomically replaces the stored holdings with the given set
func (db *DB) ReplaceAllHoldings(ctx context.Context, holdings []models.Holding) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings`); err != nil {
		return fmt.Errorf("failed to delete existing holdings: %w", err)
	}

	for _, h := range holdings {
		if _, err := tx.ExecContext(ctx, insertHoldingQuery,
			h.Symbol, h.Quantity, h.LastTradedPrice, h.AveragePrice, h.PreviousClose,
		); err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AppendHoldings inserts holdings without touching the existing ones
func (db *DB) AppendHoldings(ctx context.Context, holdings []models.Holding) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, h := range holdings {
		if _, err := tx.ExecContext(ctx, insertHoldingQuery,
			h.Symbol, h.Quantity, h.LastTradedPrice, h.AveragePrice, h.PreviousClose,
		); err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteAllHoldings removes every stored holding
func (db *DB) DeleteAllHoldings(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM holdings`); err != nil {
		return fmt.Errorf("failed to delete holdings: %w", err)
	}
	return nil
}

// CountHoldings returns the number of stored holdings
func (db *DB) CountHoldings(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM holdings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count holdings: %w", err)
	}
	return count, nil
}
