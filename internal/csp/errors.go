package csp

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a cloud service provider failure. Every error a
// driver returns carries exactly one kind so callers can decide on retry
// policy without inspecting provider-specific details.
type ErrorKind int

const (
	KindUnknownServer ErrorKind = iota
	KindConnection
	KindResourceProvisioning
	KindAuthentication
	KindAuthorization
	KindUserProvisioning
	KindDomainName
	KindOperationInProgress
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindResourceProvisioning:
		return "resource_provisioning"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindUserProvisioning:
		return "user_provisioning"
	case KindDomainName:
		return "domain_name"
	case KindOperationInProgress:
		return "operation_in_progress"
	default:
		return "unknown_server"
	}
}

// Error is the typed failure every driver operation returns. Op names the
// driver operation that failed.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("csp %s: %s error: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same operation later could
// plausibly succeed without operator intervention.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindConnection, KindUnknownServer, KindOperationInProgress:
		return true
	default:
		return false
	}
}

// NewError builds a typed CSP error.
func NewError(kind ErrorKind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// IsTransient reports whether err is (or wraps) a transient CSP error.
// Errors that are not typed CSP errors are treated as permanent.
func IsTransient(err error) bool {
	var cspErr *Error
	if errors.As(err, &cspErr) {
		return cspErr.Transient()
	}
	return false
}

// KindOf returns the kind of the CSP error wrapped in err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var cspErr *Error
	if errors.As(err, &cspErr) {
		return cspErr.Kind, true
	}
	return 0, false
}
