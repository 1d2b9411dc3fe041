package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Collaborator contracts consumed by the engine. The lifecycle depends only
// on these interfaces; the pg-backed implementations below are the default
// wiring against this repo's schema.

// CounterpartyDirectory looks up customer/supplier master records.
type CounterpartyDirectory interface {
	GetCounterparty(ctx context.Context, id int) (*Counterparty, error)
}

// ItemCatalog looks up item master records.
type ItemCatalog interface {
	GetItem(ctx context.Context, id int) (*Item, error)
}

// ClaimAccountDirectory looks up GL accounts eligible for discount claims.
type ClaimAccountDirectory interface {
	GetClaimAccount(ctx context.Context, id int) (*ClaimAccount, error)
}

type pgCounterpartyDirectory struct {
	pool *pgxpool.Pool
}

func NewCounterpartyDirectory(pool *pgxpool.Pool) CounterpartyDirectory {
	return &pgCounterpartyDirectory{pool: pool}
}

func (d *pgCounterpartyDirectory) GetCounterparty(ctx context.Context, id int) (*Counterparty, error) {
	var c Counterparty
	err := d.pool.QueryRow(ctx, `
		SELECT id, role, code, name, is_active, credit_limit, payment_terms_days, created_at
		FROM counterparties
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Role, &c.Code, &c.Name, &c.IsActive, &c.CreditLimit, &c.PaymentTermsDays, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr(ErrCounterpartyNotFound, "id %d", id)
		}
		return nil, fmt.Errorf("fetch counterparty %d: %w", id, err)
	}
	return &c, nil
}

type pgItemCatalog struct {
	pool *pgxpool.Pool
}

func NewItemCatalog(pool *pgxpool.Pool) ItemCatalog {
	return &pgItemCatalog{pool: pool}
}

func (c *pgItemCatalog) GetItem(ctx context.Context, id int) (*Item, error) {
	var it Item
	err := c.pool.QueryRow(ctx, `
		SELECT id, code, name, is_active, cost_price, sale_price,
		       gst_rate, withholding_rate, on_hand, min_stock, max_stock, created_at
		FROM items
		WHERE id = $1
	`, id).Scan(&it.ID, &it.Code, &it.Name, &it.IsActive, &it.CostPrice, &it.SalePrice,
		&it.Tax.GSTRate, &it.Tax.WithholdingRate, &it.OnHand, &it.MinStock, &it.MaxStock, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr(ErrItemNotFound, "id %d", id)
		}
		return nil, fmt.Errorf("fetch item %d: %w", id, err)
	}
	return &it, nil
}

type pgClaimAccountDirectory struct {
	pool *pgxpool.Pool
}

func NewClaimAccountDirectory(pool *pgxpool.Pool) ClaimAccountDirectory {
	return &pgClaimAccountDirectory{pool: pool}
}

func (d *pgClaimAccountDirectory) GetClaimAccount(ctx context.Context, id int) (*ClaimAccount, error) {
	var a ClaimAccount
	err := d.pool.QueryRow(ctx, `
		SELECT id, code, name, is_active, can_receive_claims
		FROM gl_accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Code, &a.Name, &a.IsActive, &a.CanReceiveClaims)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundErr(ErrClaimAccountNotFound, "id %d", id)
		}
		return nil, fmt.Errorf("fetch claim account %d: %w", id, err)
	}
	return &a, nil
}
