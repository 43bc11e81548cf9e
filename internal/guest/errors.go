package guest

import "errors"

// Validation failures surfaced to the transport layer.
var (
	ErrUnknownPersona = errors.New("guest: unknown persona id")
	ErrEmptyMessage   = errors.New("guest: empty message")
	ErrInvalidRole    = errors.New("guest: invalid role")
)
