// Package apperror holds the error taxonomy shared by the store, the
// services and the HTTP layer, and maps errors to short user-facing messages.
package apperror

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotConfigured is returned by every gateway call when no record store was configured.
	ErrNotConfigured = errors.New("record store is not configured")

	// ErrCutoffActive is returned when batch entry is attempted inside the month-end cutoff window.
	ErrCutoffActive = errors.New("batch entry is closed during the month-end cutoff window")

	// ErrAccountNotRegistered is returned when a username has no account.
	ErrAccountNotRegistered = errors.New("account is not registered")

	// ErrWrongSecret is returned when the supplied secret does not match.
	ErrWrongSecret = errors.New("wrong password")

	// ErrDeviceLocked is returned when the account is bound to another device.
	ErrDeviceLocked = errors.New("account is locked to another device")

	// ErrDeviceAlreadyBound is returned by BindDevice when a token is already set.
	ErrDeviceAlreadyBound = errors.New("account already has a bound device")

	// ErrUnknownTable is returned for a table name outside the five known tables.
	ErrUnknownTable = errors.New("unknown table")

	// ErrNothingToResume is returned when no failed import exists for a table.
	ErrNothingToResume = errors.New("no failed import to resume")

	// ErrEmptyImport is returned when an uploaded file has no data rows.
	ErrEmptyImport = errors.New("import file has no data rows")

	// ErrUnreadableWorkbook is returned when an uploaded file is not a readable XLSX workbook.
	ErrUnreadableWorkbook = errors.New("uploaded file is not a readable workbook")
)

// StoreError wraps a remote store failure with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store wraps err as a StoreError; nil stays nil.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// ImportError reports the chunk at which a bulk import stopped. Rows of
// earlier chunks remain in the table.
type ImportError struct {
	Table  string
	Chunk  int
	Offset int
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import into %s failed at chunk %d (row offset %d): %v", e.Table, e.Chunk, e.Offset, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// IsAuthFailure reports whether err is one of the login failures.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAccountNotRegistered) ||
		errors.Is(err, ErrWrongSecret) ||
		errors.Is(err, ErrDeviceLocked)
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownTable) ||
		errors.Is(err, ErrNothingToResume) ||
		errors.Is(err, ErrEmptyImport) ||
		errors.Is(err, ErrUnreadableWorkbook) ||
		errors.Is(err, ErrDeviceAlreadyBound)
}

// Message returns the short human-readable text shown to the user.
func Message(err error) string {
	var importErr *ImportError
	var storeErr *StoreError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccountNotRegistered):
		return "Account is not registered in the database."
	case errors.Is(err, ErrWrongSecret):
		return "Wrong password."
	case errors.Is(err, ErrDeviceLocked):
		return "This account is locked to another device. Ask an administrator to reset it."
	case errors.Is(err, ErrCutoffActive):
		return "Transaction entry is closed for monthly reconciliation (day 28 20:00 until day 2 10:00)."
	case errors.Is(err, ErrUnreadableWorkbook):
		return "The uploaded file is not a readable .xlsx workbook."
	case errors.Is(err, ErrNotConfigured):
		return "The server database is not configured."
	case errors.As(err, &importErr):
		return fmt.Sprintf("Upload stopped at row %d of %s: %v", importErr.Offset, importErr.Table, importErr.Err)
	case errors.As(err, &storeErr):
		return fmt.Sprintf("Database request failed (%s). Please try again.", storeErr.Op)
	}
	return err.Error()
}

var validationMessages = map[string]string{
	"required":    "is required",
	"max":         "is too long",
	"min":         "is too short",
	"devicetoken": "must look like DEV-XXXXX",
	"readingday":  "must be a valid reading day code",
}

// ValidationMessages converts validator errors into field → message pairs.
func ValidationMessages(err error) []map[string]string {
	errList := make([]map[string]string, 0)

	var validationErr validator.ValidationErrors
	if errors.As(err, &validationErr) {
		for _, e := range validationErr {
			msg := fmt.Sprintf("%s is invalid", e.Field())
			if m, ok := validationMessages[e.Tag()]; ok {
				msg = m
			}
			errList = append(errList, map[string]string{e.Field(): msg})
		}
	}
	return errList
}
