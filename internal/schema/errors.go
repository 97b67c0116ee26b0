package schema

import (
	"errors"
	"fmt"
)

// Error kinds. Every validation failure reported by the engine unwraps to
// exactly one of these.
var (
	ErrStructuralCsv        = errors.New("structural csv error")
	ErrIdentifierFormat     = errors.New("identifier format error")
	ErrURLFormat            = errors.New("url format error")
	ErrEmptyValues          = errors.New("empty values error")
	ErrRequiredFieldMissing = errors.New("required field missing")
	ErrRecipientFormat      = errors.New("recipient format error")
	ErrCountMismatch        = errors.New("count mismatch")
	ErrCsvParse             = errors.New("csv parse error")
)

// Error is the first violation found by a validation pass.
//
// Field and Index locate the violation when it is attributable to a field or a
// combination; Index is -1 otherwise.
type Error struct {
	Kind  error
	Field string
	Index int
	Msg   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Field != "" {
		msg += fmt.Sprintf(" [field=%s]", e.Field)
	}
	if e.Index >= 0 {
		msg += fmt.Sprintf(" [row=%d]", e.Index+1)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind that is not tied to a field or row.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Index: -1, Msg: fmt.Sprintf(format, args...)}
}

// FieldErrorf builds an *Error attributed to a field and, when index >= 0, to
// one combination.
func FieldErrorf(kind error, field string, index int, format string, args ...any) error {
	return &Error{Kind: kind, Field: field, Index: index, Msg: fmt.Sprintf(format, args...)}
}
