package registry

import (
	"github.com/rs/zerolog"
)

// ReloadLogger is a subscriber for ReloadEvents that logs them.
type ReloadLogger struct {
	logger *zerolog.Logger
}

func NewReloadLogger(logger *zerolog.Logger) *ReloadLogger {
	return &ReloadLogger{
		logger: logger,
	}
}

func (l *ReloadLogger) Name() string {
	return "ReloadLogger"
}

func (l *ReloadLogger) ConsumeEvent(event ReloadEvent) error {
	l.logger.Info().Msgf("Reloaded installers: %d active", event.Count)
	return nil
}
