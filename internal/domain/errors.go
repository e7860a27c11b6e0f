package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving the pipeline matches exactly one of these
// through errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrParse      = errors.New("malformed input")
	ErrStorage    = errors.New("storage failure")
	ErrNoData     = errors.New("no data")
)

// Validation builds a plain ValidationError message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// SchemaError reports a required column missing from an uploaded file.
type SchemaError struct {
	Dataset string
	Column  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("Missing required column '%s' in %s CSV.", e.Column, e.Dataset)
}

func (e *SchemaError) Is(target error) bool { return target == ErrValidation }

type ParseError struct {
	Dataset string
	Line    int // 0 when unknown
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("error reading %s CSV at line %d: %v", e.Dataset, e.Line, e.Err)
	}
	return fmt.Sprintf("error reading %s CSV: %v", e.Dataset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// StorageError wraps any failure of the document store.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NoDataError is returned when an export is requested on an empty dataset.
type NoDataError struct {
	Dataset string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data found in %s", e.Dataset)
}

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }
