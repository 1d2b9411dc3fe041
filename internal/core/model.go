package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceDirection is the tagged variant for the four invoice kinds. All
// direction-specific behavior (counterparty role, stock sign, number series,
// posting accounts) hangs off this type so the lifecycle never branches on
// raw strings.
type InvoiceDirection string

const (
	DirectionSale           InvoiceDirection = "sale"
	DirectionPurchase       InvoiceDirection = "purchase"
	DirectionReturnSale     InvoiceDirection = "return_sale"
	DirectionReturnPurchase InvoiceDirection = "return_purchase"
)

func (d InvoiceDirection) Valid() bool {
	switch d {
	case DirectionSale, DirectionPurchase, DirectionReturnSale, DirectionReturnPurchase:
		return true
	}
	return false
}

// IsReturn reports whether the invoice reverses a prior invoice of the base
// direction.
func (d InvoiceDirection) IsReturn() bool {
	return d == DirectionReturnSale || d == DirectionReturnPurchase
}

// BaseDirection returns the direction a return invoice must reference.
func (d InvoiceDirection) BaseDirection() InvoiceDirection {
	switch d {
	case DirectionReturnSale:
		return DirectionSale
	case DirectionReturnPurchase:
		return DirectionPurchase
	}
	return d
}

// CounterpartyRole returns the role the invoice's counterparty must hold.
func (d InvoiceDirection) CounterpartyRole() Role {
	switch d {
	case DirectionSale, DirectionReturnSale:
		return RoleCustomer
	default:
		return RoleSupplier
	}
}

// MovementDirection returns the stock sign a confirm applies: sales and
// purchase returns move goods out, purchases and sales returns move goods in.
func (d InvoiceDirection) MovementDirection() MovementDirection {
	switch d {
	case DirectionSale, DirectionReturnPurchase:
		return MovementOut
	default:
		return MovementIn
	}
}

// Series is the invoice-number series prefix for this direction.
func (d InvoiceDirection) Series() string {
	switch d {
	case DirectionSale:
		return "SI"
	case DirectionPurchase:
		return "PI"
	case DirectionReturnSale:
		return "SR"
	default:
		return "PR"
	}
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSupplier Role = "supplier"
)

type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "draft"
	StatusConfirmed InvoiceStatus = "confirmed"
	StatusCancelled InvoiceStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

type MovementDirection string

const (
	MovementIn  MovementDirection = "in"
	MovementOut MovementDirection = "out"
)

// Opposite returns the reversing direction for a movement.
func (m MovementDirection) Opposite() MovementDirection {
	if m == MovementIn {
		return MovementOut
	}
	return MovementIn
}

// AccountKind distinguishes subledger entries (customer/supplier balances)
// from general-ledger entries.
type AccountKind string

const (
	AccountCustomer AccountKind = "customer"
	AccountSupplier AccountKind = "supplier"
	AccountGL       AccountKind = "gl"
)

// AccountRef identifies one posting account: a counterparty subledger row or
// a GL account row, depending on Kind.
type AccountRef struct {
	Kind AccountKind
	ID   int
}

type TransactionType string

const (
	Debit  TransactionType = "debit"
	Credit TransactionType = "credit"
)

// ReferenceTypeInvoice tags stock movements and ledger entries originating
// from an invoice confirm or cancel.
const ReferenceTypeInvoice = "INVOICE"

// TaxProfile is an item's tax configuration. Withholding reduces counterparty
// settlement only; it never enters the invoice total.
type TaxProfile struct {
	GSTRate         decimal.Decimal
	WithholdingRate decimal.Decimal
}

// Item is a catalog record. OnHand is mutated exclusively through the
// StockLedger, never written directly by callers.
type Item struct {
	ID        int
	Code      string
	Name      string
	IsActive  bool
	CostPrice decimal.Decimal
	SalePrice decimal.Decimal
	Tax       TaxProfile
	OnHand    decimal.Decimal
	MinStock  decimal.Decimal
	MaxStock  decimal.Decimal
	CreatedAt time.Time
}

// Counterparty is a customer or supplier master record.
type Counterparty struct {
	ID               int
	Role             Role
	Code             string
	Name             string
	IsActive         bool
	CreditLimit      decimal.Decimal
	PaymentTermsDays int
	CreatedAt        time.Time
}

// ClaimAccount is a GL account that may absorb tier-2 discount cost.
type ClaimAccount struct {
	ID               int
	Code             string
	Name             string
	IsActive         bool
	CanReceiveClaims bool
}

// Batch describes a stock batch on an invoice line. Expiry must be strictly
// after manufacturing when both are present.
type Batch struct {
	Number         string
	ManufacturedOn *time.Time
	ExpiresOn      *time.Time
}

// LineInput is the raw caller input for one invoice line. A nil UnitPrice
// means "use the catalog price for the invoice direction". LegacyDiscountPct
// is reinterpreted as tier 1 when both tier fields are unset.
type LineInput struct {
	ItemID            int
	Quantity          decimal.Decimal
	UnitPrice         *decimal.Decimal
	Discount1Pct      *decimal.Decimal
	Discount2Pct      *decimal.Decimal
	LegacyDiscountPct *decimal.Decimal
	ClaimAccountID    *int
	Batch             *Batch
}

// ProcessedLine is a fully computed invoice line:
//
//	LineTotal = (Subtotal - Discount1Amount - Discount2Amount) + TaxAmount
//
// WithholdingAmount is informational and excluded from LineTotal.
type ProcessedLine struct {
	ItemID            int
	ItemCode          string
	ItemName          string
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
	Subtotal          decimal.Decimal
	Discount1Pct      decimal.Decimal
	Discount1Amount   decimal.Decimal
	Discount2Pct      decimal.Decimal
	Discount2Amount   decimal.Decimal
	ClaimAccountID    *int
	TaxableAmount     decimal.Decimal
	TaxAmount         decimal.Decimal
	WithholdingAmount decimal.Decimal
	LineTotal         decimal.Decimal
	Batch             *Batch
}

// InvoiceLine is a persisted ProcessedLine.
type InvoiceLine struct {
	ID         int
	InvoiceID  int
	LineNumber int
	ProcessedLine
}

// Totals are the invoice-level sums. They are always the deterministic
// function of the lines and are recomputed on any draft change.
type Totals struct {
	Subtotal       decimal.Decimal
	Discount1Total decimal.Decimal
	Discount2Total decimal.Decimal
	TaxTotal       decimal.Decimal
	GrandTotal     decimal.Decimal
}

// DiscountTotal is the combined discount across both tiers.
func (t Totals) DiscountTotal() decimal.Decimal {
	return t.Discount1Total.Add(t.Discount2Total)
}

// Invoice is the document header plus lines and totals.
//
// Status runs draft → confirmed → cancelled; PaymentStatus runs
// pending → partial → paid independently once confirmed.
type Invoice struct {
	ID                int
	Number            string
	Direction         InvoiceDirection
	CounterpartyID    int
	CounterpartyCode  string
	CounterpartyName  string
	OriginalInvoiceID *int
	Status            InvoiceStatus
	PaymentStatus     PaymentStatus
	Lines             []InvoiceLine
	Totals            Totals
	PaidAmount        decimal.Decimal
	Notes             string
	CreatedAt         time.Time
	CreatedBy         string
	ConfirmedAt       *time.Time
	ConfirmedBy       *string
	CancelledAt       *time.Time
	CancelledBy       *string
	CancelReason      *string
	PaidAt            *time.Time
	PaidBy            *string
}

// StockMovement is one immutable row of the movement log. Quantity is always
// positive; Direction carries the sign. A reversal appends an opposite row
// under the same reference with IsReversal set.
type StockMovement struct {
	ID            int
	ItemID        int
	ItemCode      string
	Direction     MovementDirection
	Quantity      decimal.Decimal
	ReferenceType string
	ReferenceID   int
	IsReversal    bool
	Batch         *Batch
	MovedAt       time.Time
	Actor         string
}

// SignedQuantity is the movement's contribution to on-hand stock.
func (m StockMovement) SignedQuantity() decimal.Decimal {
	if m.Direction == MovementOut {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// LedgerEntry is one side of a double-entry pair. BaseAmount = Amount ×
// ExchangeRate; balances sum debits positive, credits negative.
type LedgerEntry struct {
	ID              int
	AccountKind     AccountKind
	AccountID       int
	Type            TransactionType
	Amount          decimal.Decimal
	Currency        string
	ExchangeRate    decimal.Decimal
	BaseAmount      decimal.Decimal
	ReferenceType   string
	ReferenceID     int
	IsReversal      bool
	TransactionDate time.Time
	Description     string
	Actor           string
	CreatedAt       time.Time
}

// SignedBaseAmount is the entry's contribution to its account balance.
func (e LedgerEntry) SignedBaseAmount() decimal.Decimal {
	if e.Type == Credit {
		return e.BaseAmount.Neg()
	}
	return e.BaseAmount
}
