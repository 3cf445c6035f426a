package webhook

import "errors"

var (
	// ErrMissingSignature indicates the signature header was absent or malformed.
	ErrMissingSignature = errors.New("missing or malformed signature header")
	// ErrBadSignature indicates the signature did not match the payload.
	ErrBadSignature = errors.New("webhook signature verification failed")
)
