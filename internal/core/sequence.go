package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SequenceGenerator issues collision-free, monotonically increasing invoice
// numbers per series. NextTx must run inside the caller's transaction so a
// rolled-back create does not burn a number without its invoice.
type SequenceGenerator interface {
	NextTx(ctx context.Context, tx pgx.Tx, series string) (string, error)
}

type pgSequenceGenerator struct {
	pool *pgxpool.Pool
}

func NewSequenceGenerator(pool *pgxpool.Pool) SequenceGenerator {
	return &pgSequenceGenerator{pool: pool}
}

// NextTx increments the (series, year) counter with an upsert so concurrent
// issuers serialize on the sequence row, and formats e.g. "SI-2026-00042".
func (g *pgSequenceGenerator) NextTx(ctx context.Context, tx pgx.Tx, series string) (string, error) {
	year := time.Now().Year()

	var lastNumber int64
	err := tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (series, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (series, year)
		DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number
	`, series, year).Scan(&lastNumber)
	if err != nil {
		return "", fmt.Errorf("advance sequence %s-%d: %w", series, year, err)
	}

	return fmt.Sprintf("%s-%d-%05d", series, year, lastNumber), nil
}
