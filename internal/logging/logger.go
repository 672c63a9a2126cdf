package logging

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds a console logger at the given level, fanning out to any extra writers, and installs
// it as the global zerolog logger.
func NewLogger(level zerolog.Level, extra ...io.Writer) *zerolog.Logger {
	var out io.Writer = zerolog.NewConsoleWriter()
	if len(extra) > 0 {
		out = zerolog.MultiLevelWriter(append([]io.Writer{out}, extra...)...)
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return &logger
}
