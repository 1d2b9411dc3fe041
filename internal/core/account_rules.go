package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Rule types resolved from the account_rules table. Each maps an invoice
// posting role to a configured GL account.
const (
	RuleSales           = "SALES"
	RuleSalesReturns    = "SALES_RETURNS"
	RulePurchases       = "PURCHASES"
	RulePurchaseReturns = "PURCHASE_RETURNS"
	RuleGSTOutput       = "GST_OUTPUT"
	RuleGSTInput        = "GST_INPUT"
)

// AccountResolver maps a posting rule type to a GL account ID. It replaces
// hardcoded account constants in the lifecycle.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, ruleType string) (int, error)
}

type pgAccountResolver struct {
	pool *pgxpool.Pool
}

func NewAccountResolver(pool *pgxpool.Pool) AccountResolver {
	return &pgAccountResolver{pool: pool}
}

// ResolveAccount returns the configured account for ruleType, highest
// priority first.
func (r *pgAccountResolver) ResolveAccount(ctx context.Context, ruleType string) (int, error) {
	var accountID int
	err := r.pool.QueryRow(ctx, `
		SELECT account_id
		FROM account_rules
		WHERE rule_type = $1
		ORDER BY priority DESC
		LIMIT 1
	`, ruleType).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("no account rule found for rule_type %q, seed account_rules or run migrations", ruleType)
		}
		return 0, fmt.Errorf("resolve account rule %q: %w", ruleType, err)
	}
	return accountID, nil
}

// postingRules returns the revenue/expense and tax rule types for a
// direction, resolved once at confirm time.
func postingRules(d InvoiceDirection) (tradeRule, taxRule string) {
	switch d {
	case DirectionSale:
		return RuleSales, RuleGSTOutput
	case DirectionReturnSale:
		return RuleSalesReturns, RuleGSTOutput
	case DirectionPurchase:
		return RulePurchases, RuleGSTInput
	default:
		return RulePurchaseReturns, RuleGSTInput
	}
}
