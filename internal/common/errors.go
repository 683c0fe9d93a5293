// Package common defines shared constants and sentinel errors used across
// client and server layers of GophTube. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors raised before any side effect.
	ErrValidation    = errors.New("validation error")
	ErrAlreadyExists = errors.New("already exists")

	// Session credential lifecycle.
	ErrInvalidCredential = errors.New("invalid credential")
	ErrReuseDetected     = errors.New("refresh credential reuse detected")
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrIssuanceFailed    = errors.New("credential issuance failed")

	// Upload-and-bind.
	ErrMissingInput = errors.New("missing input")
	ErrUploadFailed = errors.New("upload failed")
	ErrBindFailed   = errors.New("bind failed")
)
