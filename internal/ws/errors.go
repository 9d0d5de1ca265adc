package ws

import "errors"

var (
	ErrInvalidOrigin      = errors.New("origin not allowed")
	ErrTooManyConnections = errors.New("too many connections from this address")
	ErrServerOverloaded   = errors.New("connection limit reached")
	ErrRateLimited        = errors.New("message rate limit exceeded")
	ErrMessageTooLarge    = errors.New("message exceeds size limit")
	ErrConnectionUnknown  = errors.New("connection not tracked")
)
