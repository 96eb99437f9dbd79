package pricelist

import (
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
)

var ErrInvalidURL = &apperr.Error{Code: apperr.CodeValidation, Message: "invalid price list url"}

// FetchError is returned when the document could not be downloaded.
// StatusCode is zero for transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is returned for documents that are not a valid price list.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse price list: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("parse price list: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(field, format string, args ...any) *ParseError {
	return &ParseError{Field: field, Err: fmt.Errorf(format, args...)}
}
