// Package apperror provides the typed error taxonomy for the core ledger.
// All business-rule and structural violations are raised through this package
// so that callers (UI/CLI layers) can branch on error kind without parsing
// message text. The core never formats user-facing strings — messages here
// are diagnostic context only.
package apperror

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValidationError reports bad or missing input: non-positive quantity,
// unknown enum value, malformed reference, structurally invalid edge.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Detail)
	}
	return "validation: " + e.Detail
}

// NewValidation builds a ValidationError without a field reference.
func NewValidation(detail string) *ValidationError {
	return &ValidationError{Detail: detail}
}

// NewFieldValidation builds a ValidationError for a named input field.
func NewFieldValidation(field, detail string) *ValidationError {
	return &ValidationError{Field: field, Detail: detail}
}

// NotFoundError reports a dangling reference: the id does not resolve to a
// live entity of the expected type.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func NewNotFound(entity string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// CircularReferenceError reports that inserting (or copying) a sub-assembly
// edge would create a cycle in the composition graph.
type CircularReferenceError struct {
	ParentID    uuid.UUID
	ComponentID uuid.UUID
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("assembly %s is reachable from component %s: edge would create a cycle",
		e.ParentID, e.ComponentID)
}

// DuplicateEdgeError reports that the (parent, component) pair already has an
// edge. Compositions are unique per pair; quantity changes go through update.
type DuplicateEdgeError struct {
	ParentID    uuid.UUID
	ComponentID uuid.UUID
}

func (e *DuplicateEdgeError) Error() string {
	return fmt.Sprintf("composition from parent %s to component %s already exists",
		e.ParentID, e.ComponentID)
}

// InvalidAssignmentError reports that the supplied lot assignments do not sum
// exactly to the composition's required quantity. Partial assignment is
// rejected outright, never stored.
type InvalidAssignmentError struct {
	CompositionID uuid.UUID
	Required      decimal.Decimal
	Assigned      decimal.Decimal
}

func (e *InvalidAssignmentError) Error() string {
	return fmt.Sprintf("assignment for composition %s must total %s exactly, got %s",
		e.CompositionID, e.Required, e.Assigned)
}

// ProductMismatchError reports that an assigned lot's product family does not
// match the generic requirement it is supposed to fulfil.
type ProductMismatchError struct {
	LotID          uuid.UUID
	RequiredFamily string
	LotFamily      string
}

func (e *ProductMismatchError) Error() string {
	return fmt.Sprintf("lot %s belongs to family %q, generic requirement needs family %q",
		e.LotID, e.LotFamily, e.RequiredFamily)
}

// PersistenceError wraps an underlying storage failure with the operation
// that was executing. The wrapped error stays reachable via errors.Unwrap.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// WrapPersistence attaches operation context to a storage failure.
// Returns nil when err is nil so call sites can wrap unconditionally.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// Kind predicates — callers branch on these instead of comparing messages.

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsCircularReference(err error) bool {
	var target *CircularReferenceError
	return errors.As(err, &target)
}

func IsDuplicateEdge(err error) bool {
	var target *DuplicateEdgeError
	return errors.As(err, &target)
}

func IsInvalidAssignment(err error) bool {
	var target *InvalidAssignmentError
	return errors.As(err, &target)
}

func IsProductMismatch(err error) bool {
	var target *ProductMismatchError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
