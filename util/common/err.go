// Package common carries shared error helpers and the error taxonomy used
// across the scan pipeline.
package common

import (
	"errors"
	"fmt"

	"octvision/logger"
)

// Pipeline error categories. Callers classify failures with errors.Is:
// validation and authorization are handled at the web boundary, decode,
// inference and persistence failures are fatal to the current request, and
// report, saliency and explanation failures are best-effort.
var (
	ErrValidation    = errors.New("validation error")
	ErrDecode        = errors.New("decode error")
	ErrInference     = errors.New("inference error")
	ErrPersistence   = errors.New("persistence error")
	ErrReport        = errors.New("report generation error")
	ErrService       = errors.New("service error")
	ErrAuthorization = errors.New("authorization error")
)

// WrapError attaches a category sentinel to a concrete cause so both can be
// tested with errors.Is.
func WrapError(category error, cause error) error {
	if cause == nil {
		return category
	}
	return fmt.Errorf("%w: %w", category, cause)
}

// WrapErrorf attaches a category sentinel to a formatted message.
func WrapErrorf(category error, format string, a ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{category}, a...)...)
}

func NewErrorf(format string, a ...any) error {
	msg := fmt.Sprintf(format, a...)
	return errors.New(msg)
}

func NewError(a ...any) error {
	msg := fmt.Sprintln(a...)
	return errors.New(msg)
}

// Combine merges non-nil errors into one.
func Combine(errs ...error) error {
	var msg string
	for _, err := range errs {
		if err != nil {
			if msg != "" {
				msg += ", "
			}
			msg += err.Error()
		}
	}
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}

func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}
