// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrPriceFetch    = errors.New("price fetch failed")
	ErrPersistence   = errors.New("persistence failed")
	ErrNotification  = errors.New("notification failed")
	ErrConfigInvalid = errors.New("invalid configuration")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Is makes every ValidationError match ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// PriceFetchError represents a failure to obtain a price for a symbol.
type PriceFetchError struct {
	Symbol string
	Err    error
}

func (e *PriceFetchError) Error() string {
	return fmt.Sprintf("price fetch error [%s]: %v", e.Symbol, e.Err)
}

func (e *PriceFetchError) Unwrap() error {
	return e.Err
}

// Is makes every PriceFetchError match ErrPriceFetch.
func (e *PriceFetchError) Is(target error) bool {
	return target == ErrPriceFetch
}

// NewPriceFetchError creates a new PriceFetchError.
func NewPriceFetchError(symbol string, err error) *PriceFetchError {
	return &PriceFetchError{
		Symbol: symbol,
		Err:    err,
	}
}

// PersistenceError represents a failed durable write or read of the alert store.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("persistence error [%s] %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("persistence error [%s]: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is makes every PersistenceError match ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NewPersistenceError creates a new PersistenceError.
func NewPersistenceError(op, path string, err error) *PersistenceError {
	return &PersistenceError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// NotificationError represents a delivery failure on one channel.
type NotificationError struct {
	Channel string
	Symbol  string
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification error [%s] %s: %v", e.Channel, e.Symbol, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// Is makes every NotificationError match ErrNotification.
func (e *NotificationError) Is(target error) bool {
	return target == ErrNotification
}

// NewNotificationError creates a new NotificationError.
func NewNotificationError(channel, symbol string, err error) *NotificationError {
	return &NotificationError{
		Channel: channel,
		Symbol:  symbol,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
