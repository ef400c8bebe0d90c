package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrBadRequest      = errors.New("bad request")
	ErrTooManyRequests = errors.New("too many requests")

	// Delivery provider failures. Throttled and timed-out calls are retried
	// by the dispatcher; rejected calls are not.
	ErrProviderThrottled = errors.New("provider throttled")
	ErrProviderTimeout   = errors.New("provider timeout")
	ErrProviderRejected  = errors.New("provider rejected request")
)
