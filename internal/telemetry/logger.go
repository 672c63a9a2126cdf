package telemetry

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/log"
)

// LevelWriter emits each zerolog line as an OpenTelemetry log record carrying the line's severity.
type LevelWriter struct {
	logger log.Logger
}

var _ zerolog.LevelWriter = (*LevelWriter)(nil)

func NewOtelLogWriter(logger log.Logger) io.Writer {
	return &LevelWriter{logger: logger}
}

func (w *LevelWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

func (w *LevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	var rec log.Record
	rec.SetTimestamp(time.Now())
	rec.SetSeverity(severity(level))
	rec.SetSeverityText(level.String())
	rec.SetBody(log.StringValue(string(bytes.TrimRight(p, "\n"))))

	w.logger.Emit(context.Background(), rec)
	return len(p), nil
}

func severity(level zerolog.Level) log.Severity {
	switch level {
	case zerolog.TraceLevel:
		return log.SeverityTrace
	case zerolog.DebugLevel:
		return log.SeverityDebug
	case zerolog.InfoLevel:
		return log.SeverityInfo
	case zerolog.WarnLevel:
		return log.SeverityWarn
	case zerolog.ErrorLevel:
		return log.SeverityError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return log.SeverityFatal
	default:
		return log.SeverityUndefined
	}
}
