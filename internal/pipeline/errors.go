package pipeline

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error code surfaced to callers.
type Code string

const (
	CodeInvalidScheme      Code = "invalid_scheme"
	CodeDNSFailed          Code = "dns_failed"
	CodeSSRFBlocked        Code = "ssrf_blocked"
	CodeRedirectBlocked    Code = "redirect_blocked"
	CodeInvalidContentType Code = "invalid_content_type"
	CodeFileTooLarge       Code = "file_too_large"
	CodePayloadTooLarge    Code = "payload_too_large"
	CodeDownloadFailed     Code = "download_failed"
)

// Error carries a stable code plus a human-readable message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code to an underlying error.
func WrapError(code Code, err error) *Error {
	if err == nil {
		return &Error{Code: code}
	}
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// CodeOf extracts the machine code from err, defaulting to download_failed
// for untyped errors reaching the pipeline boundary.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeDownloadFailed
}

// IsSecurity reports whether the code represents a blocked request that
// warrants loud logging and must never be retried.
func IsSecurity(code Code) bool {
	return code == CodeSSRFBlocked || code == CodeRedirectBlocked
}
