package rewrite

import (
	"errors"
	"fmt"
)

// CompileError represents a failure while resolving or rewriting a verb
// argument. Every CompileError carries the offending fragment's original
// surface form for diagnosability.
type CompileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Fragment is the original surface form of the offending fragment.
	Fragment string

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// ErrCodeInvalidInterpolation indicates an interpolated value or
	// shape is not usable at its syntactic position.
	ErrCodeInvalidInterpolation ErrorCode = "INVALID_INTERPOLATION"

	// ErrCodeUnsupportedExpression indicates a fragment matches no known
	// rewrite rule.
	ErrCodeUnsupportedExpression ErrorCode = "UNSUPPORTED_EXPRESSION"

	// ErrCodeNonBooleanPredicate indicates a filter fragment does not
	// type as boolean.
	ErrCodeNonBooleanPredicate ErrorCode = "NON_BOOLEAN_PREDICATE"

	// ErrCodeMixedSliceSign indicates slice indices mix positive and
	// negative values.
	ErrCodeMixedSliceSign ErrorCode = "MIXED_SLICE_SIGN"

	// ErrCodeInvalidOption indicates an unrecognized configuration
	// option or value.
	ErrCodeInvalidOption ErrorCode = "INVALID_OPTION"
)

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Fragment != "" {
		return fmt.Sprintf("%s: %s in %q", e.Code, e.Message, e.Fragment)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a CompileError for the given code and fragment surface
// form.
func Errorf(code ErrorCode, fragment, format string, args ...any) *CompileError {
	return &CompileError{
		Code:     code,
		Fragment: fragment,
		Message:  fmt.Sprintf(format, args...),
	}
}

// IsInvalidInterpolation reports whether err is an interpolation error.
// Uses errors.As to handle wrapped errors.
func IsInvalidInterpolation(err error) bool { return hasCode(err, ErrCodeInvalidInterpolation) }

// IsUnsupportedExpression reports whether err is an unsupported
// expression error.
func IsUnsupportedExpression(err error) bool { return hasCode(err, ErrCodeUnsupportedExpression) }

// IsNonBooleanPredicate reports whether err is a predicate typing error.
func IsNonBooleanPredicate(err error) bool { return hasCode(err, ErrCodeNonBooleanPredicate) }

// IsMixedSliceSign reports whether err is a mixed-sign slice error.
func IsMixedSliceSign(err error) bool { return hasCode(err, ErrCodeMixedSliceSign) }

// IsInvalidOption reports whether err is a configuration error.
func IsInvalidOption(err error) bool { return hasCode(err, ErrCodeInvalidOption) }

func hasCode(err error, code ErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
