package utils

import (
	"io"

	"github.com/rs/zerolog/log"
)

// Close closes c and hands any error to each handler.
func Close(c io.Closer, errorHandlers ...func(error)) {
	if err := c.Close(); err != nil {
		for _, f := range errorHandlers {
			f(err)
		}
	}
}

// WarnOnError returns a Close handler that logs the error at warn level.
func WarnOnError(what string) func(error) {
	return func(err error) {
		log.Warn().Err(err).Msgf("error closing %s", what)
	}
}
