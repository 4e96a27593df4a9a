package core

import (
	"errors"
	"fmt"
)

// Typed errors returned by the store layer. The HTTP layer maps these to
// status codes; nothing below it knows about HTTP.

type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

type PermissionDeniedError struct {
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	return e.Reason
}

type InvalidStateError struct {
	Current string
	Reason  string
}

func (e *InvalidStateError) Error() string {
	if e.Current == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s (current status: %s)", e.Reason, e.Current)
}

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

func NotFound(entity string) error {
	return &NotFoundError{Entity: entity}
}

func PermissionDenied(format string, args ...interface{}) error {
	return &PermissionDeniedError{Reason: fmt.Sprintf(format, args...)}
}

func InvalidState(current, format string, args ...interface{}) error {
	return &InvalidStateError{Current: current, Reason: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsPermissionDenied(err error) bool {
	var e *PermissionDeniedError
	return errors.As(err, &e)
}

func IsInvalidState(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}
