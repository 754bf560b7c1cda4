package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// Sign-in code failures. Each wraps a category sentinel above.
var (
	ErrCodeNotFound = fmt.Errorf("code not found; request a new one: %w", ErrBadRequest)
	ErrCodeExpired  = fmt.Errorf("code expired; request a new one: %w", ErrBadRequest)
	ErrCodeInvalid  = fmt.Errorf("invalid code: %w", ErrUnauthorized)
)

var (
	// ErrCodeStore means the pending code could not be persisted, so nothing was sent.
	ErrCodeStore = errors.New("code store failed")
	// ErrDeliveryFailed means the code was stored but the email could not be sent.
	ErrDeliveryFailed = errors.New("email send failed")
	// ErrNoMessages means a completion payload has no usable message list.
	ErrNoMessages = fmt.Errorf("invalid request: 'messages' missing or not a list: %w", ErrBadRequest)
)
