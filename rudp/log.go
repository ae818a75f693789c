package rudp

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger attaches a structured logger. Every log line is tagged
// with the client's instance id so multiple clients in one process
// don't interleave ambiguously.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

func newDefaultLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newInstanceID() uuid.UUID {
	return uuid.New()
}
