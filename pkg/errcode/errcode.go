package errcode

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies domain failures for callers and for the API layer.
type Code string

const (
	CodeInvalidPolicy       Code = "invalid_policy"
	CodeInvalidTransition   Code = "invalid_transition"
	CodePolicyViolation     Code = "policy_violation"
	CodeCooldownActive      Code = "cooldown_active"
	CodeInvalidSchedule     Code = "invalid_schedule"
	CodeUnauthorized        Code = "unauthorized"
	CodeStaleRole           Code = "stale_role"
	CodeTerminalState       Code = "terminal_state"
	CodeNotFound            Code = "not_found"
	CodeAllocationExceeded  Code = "allocation_exceeded"
	CodeWalletAlreadyLinked Code = "wallet_already_linked"
	CodeDispatchFailure     Code = "dispatch_failure"
	CodeUnexpected          Code = "unexpected"
)

// Error is a small wrapper that carries a code and message while preserving
// the original cause via Unwrap.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.cause.Error())
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match two errcode errors on code alone.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the domain code from an error chain, CodeUnexpected when
// none is present.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnexpected
}

func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps a domain code to the status the JSON API responds with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized, CodeStaleRole:
		return http.StatusForbidden
	case CodeInvalidPolicy, CodeInvalidSchedule:
		return http.StatusBadRequest
	case CodeInvalidTransition, CodePolicyViolation, CodeTerminalState,
		CodeAllocationExceeded, CodeWalletAlreadyLinked, CodeCooldownActive:
		return http.StatusConflict
	case CodeDispatchFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
