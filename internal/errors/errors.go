// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

// Package errors defines the sentinel errors shared across the control-plane
// server. Components wrap these with fmt.Errorf("%w: ...") so that callers can
// classify failures with errors.Is at the dispatch boundary.
package errors

import (
	"errors"
)

// Protocol-level errors.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrMethodNotFound = errors.New("method not found")
	ErrInvalidParams  = errors.New("invalid parameters")
	ErrMissingParams  = errors.New("missing required parameters")
	ErrNotImplemented = errors.New("not implemented")
	ErrTimeout        = errors.New("request timed out")
)

// Catalog errors.
var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrResourceNotFound = errors.New("resource not found")
	ErrNotConfigured    = errors.New("backend not configured")
)

// ErrValidation marks a handler failure caused by bad tool arguments.
// Tool backends wrap it so the dispatcher can answer with a validation error
// instead of a generic internal one.
var ErrValidation = errors.New("validation failed")

// Authentication and authorization errors.
var (
	ErrUnauthenticated  = errors.New("authentication failed")
	ErrPermissionDenied = errors.New("permission denied")
)
