package vk

import (
	"errors"
	"fmt"
)

// ErrorType represents the kinds of failures a VK API call can produce
type ErrorType string

const (
	ErrorTypeNetwork ErrorType = "network"
	ErrorTypeAuth    ErrorType = "auth"
	ErrorTypeAPI     ErrorType = "api"
	ErrorTypeParsing ErrorType = "parsing"
	ErrorTypeBudget  ErrorType = "budget"
)

// expiredTokenCode is the VK error code for an expired access token.
// Operator action is required, so it is never retried.
const expiredTokenCode = 5

// Error represents a VK API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("vk %s error (code %d): %s", e.Type, e.Code, e.Message)
}

// IsTransient reports whether an error is worth a single retry. Network
// faults, non-auth API envelopes and malformed bodies qualify; an expired
// credential or an exhausted budget does not.
func IsTransient(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case ErrorTypeNetwork, ErrorTypeAPI, ErrorTypeParsing:
			return true
		default:
			return false
		}
	}
	return false
}

// IsAuthError reports whether an error is the globally fatal
// expired-credential case.
func IsAuthError(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type == ErrorTypeAuth
	}
	return false
}

// IsBudgetExhausted reports whether a call was refused because the run's
// request budget is spent.
func IsBudgetExhausted(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type == ErrorTypeBudget
	}
	return false
}
