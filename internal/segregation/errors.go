package segregation

import (
	"errors"
	"fmt"

	"bloodbank-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindInvalidState
	KindConflict
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindConflict:
		return "conflict"
	default:
		return "server_error"
	}
}

// Status is the HTTP status a failure of this kind maps to.
func (k Kind) Status() int {
	switch k {
	case KindNotFound:
		return fiber.StatusNotFound
	case KindForbidden:
		return fiber.StatusForbidden
	case KindInvalidState:
		return fiber.StatusBadRequest
	case KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

const (
	CodeCollectionNotFound = "collection_not_found"
	CodeForbidden          = "forbidden"
	CodeNotPassed          = "collection_not_tested_or_not_passed"
	CodeInvalidAmount      = "invalid_collected_amount"
	CodeAlreadySegregated  = "already_segregated_for_component"
	CodeBloodGroupUnknown  = "blood_group_unknown"
	CodeServerError        = "server_error"
)

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by stores when a segregation row already exists
// for the (collection, component) pair.
var ErrDuplicate = errors.New("duplicate segregation")

// Error is a segregation failure with its taxonomy kind and wire code.
type Error struct {
	Kind       Kind
	Code       string
	Components []models.Component
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

func serverError(err error) *Error {
	return &Error{Kind: KindServer, Code: CodeServerError, Err: err}
}

// KindOf returns the kind of err, KindServer for anything unclassified.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindServer
}
