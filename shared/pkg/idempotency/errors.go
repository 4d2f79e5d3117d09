package idempotency

import "errors"

var (
	// ErrKeyRequired indicates a mutating request arrived without an
	// Idempotency-Key header while the middleware requires one
	ErrKeyRequired = errors.New("idempotency key is required for this operation")

	// ErrKeyInvalid indicates the key contains characters outside [a-zA-Z0-9_-]
	ErrKeyInvalid = errors.New("invalid idempotency key format")

	// ErrKeyTooLong indicates the key exceeds the configured maximum length
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length")

	// ErrMessageAlreadyProcessed indicates a consumer-side marker already
	// exists for the message
	ErrMessageAlreadyProcessed = errors.New("message has already been processed")
)
