package documents

import "errors"

var (
	ErrNotFound     = errors.New("document not found")
	ErrForbidden    = errors.New("document belongs to another user")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidKind  = errors.New("invalid ai kind")
	ErrNotPDF       = errors.New("only PDF files are allowed")
	ErrTooLarge     = errors.New("file too large")
	ErrEmptyValue   = errors.New("ai field value must not be empty")
)
