package sinks

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/pipeline-reporter/internal/progress"
	"github.com/JakeFAU/pipeline-reporter/internal/textfmt"
)

// LogSink writes one structured log line per event. Failures are logged at
// warn level, everything else at debug.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the handler interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Handle implements progress.Handler.
func (s *LogSink) Handle(evt progress.Event) {
	level := zapcore.DebugLevel
	if evt.Stage.IsFailure() {
		level = zapcore.WarnLevel
	}
	ce := s.logger.Check(level, "progress event")
	if ce == nil {
		return
	}
	fields := []zap.Field{
		zap.String("stage", string(evt.Stage)),
		zap.String("run_id", evt.RunID),
		zap.Time("ts", evt.TS),
	}
	if evt.Stage.IsDestination() {
		fields = append(fields, zap.Int("destination", evt.Destination))
	}
	if evt.Payload != nil {
		fields = append(fields, zap.Int64("bytes", textfmt.Size(evt.Payload)))
	}
	if len(evt.Info) > 0 {
		fields = append(fields, zap.Any("info", evt.Info))
	}
	if evt.Err != nil {
		fields = append(fields, zap.Error(evt.Err))
	}
	ce.Write(fields...)
}
