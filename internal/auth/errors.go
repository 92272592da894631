package auth

import (
	"context"
	"errors"
)

// Error codes reported by the identity provider.
const (
	CodeInvalidCredential    = "auth/invalid-credential"
	CodeInvalidEmail         = "auth/invalid-email"
	CodeNetworkRequestFailed = "auth/network-request-failed"
	CodeEmailInUse           = "auth/email-already-in-use"
	CodeWeakPassword         = "auth/weak-password"
	CodeOperationNotAllowed  = "auth/operation-not-allowed"
	CodeInternal             = "auth/internal-error"
)

// Error is an identity provider failure carrying a stable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

var messages = map[string]string{
	CodeInvalidCredential:    "Incorrect email or password.",
	CodeInvalidEmail:         "Enter a valid email address.",
	CodeNetworkRequestFailed: "Could not reach the sign-in service. Check your connection and try again.",
	CodeEmailInUse:           "An account with this email already exists.",
	CodeWeakPassword:         "Password should be at least 6 characters.",
}

// Message returns text suitable for showing to the user. Known codes get a
// friendly message; anything else passes its raw message through.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		if msg, ok := messages[ae.Code]; ok {
			return msg
		}
	}
	return err.Error()
}

// Code returns the provider code of err, or "" if err is not an *Error.
func Code(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// backendError wraps a failure of the account store.
func backendError(ctx context.Context, err error) *Error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Code: CodeNetworkRequestFailed, Message: "network request failed", Err: err}
	}
	return &Error{Code: CodeInternal, Message: err.Error(), Err: err}
}
