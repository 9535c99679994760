package models

import "fmt"

// DomainErrorKind classifies failures the API maps to client-facing
// error codes. Anything else is treated as an internal error.
type DomainErrorKind string

const (
	ErrKindInvalidRecipe     DomainErrorKind = "INVALID_RECIPE"
	ErrKindCyclicRecipe      DomainErrorKind = "CYCLIC_RECIPE"
	ErrKindInsufficientStock DomainErrorKind = "INSUFFICIENT_STOCK"
	ErrKindDanglingReference DomainErrorKind = "DANGLING_REFERENCE"
	ErrKindImmutableRecord   DomainErrorKind = "IMMUTABLE_RECORD"
	ErrKindInvalidTransition DomainErrorKind = "INVALID_TRANSITION"
)

type DomainError struct {
	Kind    DomainErrorKind
	Message string
	// ProductId is set when the error concerns a specific product
	// (e.g. the product whose stock ran out, or the cycle entry point).
	ProductId int
}

func (e *DomainError) Error() string {
	if e.ProductId != 0 {
		return fmt.Sprintf("%s: %s (product %d)", e.Kind, e.Message, e.ProductId)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewDomainError(kind DomainErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

func NewProductError(kind DomainErrorKind, productId int, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message, ProductId: productId}
}

// IsDomainError unwraps err into a DomainError of the given kind.
func IsDomainError(err error, kind DomainErrorKind) bool {
	de, ok := err.(*DomainError)
	return ok && de.Kind == kind
}

func AsDomainError(err error) (*DomainError, bool) {
	de, ok := err.(*DomainError)
	return de, ok
}
