package service

import "errors"

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotInCart  = errors.New("product not in cart")
	ErrAddFailed         = errors.New("failed to add product")
	ErrRemoveFailed      = errors.New("failed to remove product")
	ErrUpdateFailed      = errors.New("failed to update product amount")

	errStaleSnapshot = errors.New("cart changed since snapshot")
)

type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureBusinessRule
	FailureNotFound
	FailureTechnical
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureBusinessRule:
		return "business_rule_violation"
	case FailureNotFound:
		return "not_found_violation"
	default:
		return "technical_failure"
	}
}

// Classify maps an error returned by a cart operation onto its failure kind.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrInsufficientStock):
		return FailureBusinessRule
	case errors.Is(err, ErrProductNotInCart):
		return FailureNotFound
	default:
		return FailureTechnical
	}
}
