package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures so callers can branch without
// matching on message text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindValidation: missing or out-of-range input. Never retried.
	KindValidation
	// KindNotFound: a referenced record does not exist.
	KindNotFound
	// KindStateConflict: the operation is not legal in the record's current
	// state. Indicates caller logic error or a stale client.
	KindStateConflict
	// KindResource: a business resource is exhausted (stock). The caller may
	// re-check and retry deliberately.
	KindResource
	// KindConsistency: a multi-step operation aborted and was fully rolled
	// back. Safe to retry from scratch.
	KindConsistency
)

// Sentinel errors for programmatic handling via errors.Is.
var (
	ErrInvalidDiscount     = errors.New("discount percent must be between 0 and 100")
	ErrClaimAccountInvalid = errors.New("account cannot receive discount claims")

	ErrClaimAccountNotFound = errors.New("claim account not found")
	ErrClaimAccountInactive = errors.New("claim account is inactive")

	ErrItemNotFound = errors.New("item not found")
	ErrItemInactive = errors.New("item is inactive")

	ErrCounterpartyNotFound     = errors.New("counterparty not found")
	ErrCounterpartyInactive     = errors.New("counterparty is inactive")
	ErrCounterpartyRoleMismatch = errors.New("counterparty role does not match invoice direction")

	ErrInvoiceNotFound = errors.New("invoice not found")

	ErrEmptyInvoice            = errors.New("invoice must have at least one line")
	ErrInvalidQuantity         = errors.New("quantity must be positive")
	ErrInvalidUnitPrice        = errors.New("unit price cannot be negative")
	ErrInvalidBatchDates       = errors.New("batch expiry must be after manufacturing date")
	ErrInvalidDirection        = errors.New("unknown invoice direction")
	ErrOriginalInvoiceRequired = errors.New("return invoice must reference an original invoice")
	ErrOriginalInvoiceInvalid  = errors.New("original invoice must be a confirmed invoice of the base direction")
	ErrFutureTransactionDate   = errors.New("ledger entries cannot be future-dated")
	ErrInvalidAmount           = errors.New("amount must be positive")

	ErrInvalidStateTransition       = errors.New("invalid invoice state transition")
	ErrCannotModifyConfirmedInvoice = errors.New("only draft invoices can be modified")
	ErrCannotCancelPaidInvoice      = errors.New("paid invoices cannot be cancelled")
	ErrAlreadyReversed              = errors.New("effects for this reference are already reversed")

	ErrInsufficientStock = errors.New("insufficient stock")
)

// DomainError attaches an ErrorKind and optional details to a sentinel error.
type DomainError struct {
	Kind    ErrorKind
	Err     error
	Details string
}

func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from an error chain. Wrapped storage errors
// without a DomainError report KindUnknown.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

func validationErr(sentinel error, format string, args ...any) error {
	return &DomainError{Kind: KindValidation, Err: sentinel, Details: fmt.Sprintf(format, args...)}
}

func notFoundErr(sentinel error, format string, args ...any) error {
	return &DomainError{Kind: KindNotFound, Err: sentinel, Details: fmt.Sprintf(format, args...)}
}

func stateConflictErr(sentinel error, format string, args ...any) error {
	return &DomainError{Kind: KindStateConflict, Err: sentinel, Details: fmt.Sprintf(format, args...)}
}

func resourceErr(sentinel error, format string, args ...any) error {
	return &DomainError{Kind: KindResource, Err: sentinel, Details: fmt.Sprintf(format, args...)}
}
