// Package validation carries field-level input errors from the domain
// packages to the HTTP and WebSocket layers.
//
// Domain packages declare their sentinels with New so that both
// errors.Is(err, pkg.ErrSomething) and errors.Is(err, validation.ErrInvalid)
// hold. The API layer maps ErrInvalid to 400 and renders every FieldError
// it can extract into the envelope's errors array.
package validation

import (
	"errors"
	"net/mail"
	"strings"
)

// ErrInvalid matches every validation failure.
var ErrInvalid = errors.New("validation failed")

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New returns a FieldError suitable for use as a package sentinel.
func New(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unwrap makes every FieldError match ErrInvalid.
func (e *FieldError) Unwrap() error { return ErrInvalid }

// Errors accumulates several field failures.
type Errors []*FieldError

// Add appends a failure for field.
func (v *Errors) Add(field, message string) {
	*v = append(*v, New(field, message))
}

// AddErr appends err when it is a FieldError, or wraps its text otherwise.
func (v *Errors) AddErr(err error) {
	if err == nil {
		return
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		*v = append(*v, fe)
		return
	}
	*v = append(*v, New("", err.Error()))
}

// Err returns nil when empty.
func (v Errors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v Errors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes each field error to errors.Is and errors.As.
func (v Errors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}

// Fields extracts every FieldError carried by err.
func Fields(err error) []FieldError {
	var many Errors
	if errors.As(err, &many) {
		out := make([]FieldError, len(many))
		for i, e := range many {
			out[i] = *e
		}
		return out
	}
	var one *FieldError
	if errors.As(err, &one) {
		return []FieldError{*one}
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address and checks that it is a
// bare addr-spec.
func NormalizeEmail(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > 254 {
		return "", false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(s[strings.LastIndex(s, "@")+1:], ".") {
		return "", false
	}
	return s, true
}
