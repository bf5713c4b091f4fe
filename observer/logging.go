package observer

import (
	"context"
	"log/slog"
	"time"

	"github.com/dcshock/planpipe/pipeline"
)

// Logging is a pipeline.Observer that writes every hook to a slog.Logger.
type Logging struct {
	logger *slog.Logger
}

// NewLogging returns a Logging observer. A nil logger uses slog.Default().
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger}
}

func (l *Logging) BeforeStage(run pipeline.Run) {
	l.logger.Info("stage started",
		"stage", run.Stage.String(),
		"label", run.Stage.Label(),
		"variant", run.Variant,
		"run_id", run.ID,
	)
}

func (l *Logging) OnLog(run pipeline.Run, entry pipeline.LogEntry) {
	l.logger.Log(context.Background(), SlogLevel(entry.Level), entry.Message,
		"stage", run.Stage.String(),
		"run_id", run.ID,
		"entry_id", entry.ID,
	)
}

func (l *Logging) AfterStage(run pipeline.Run, d time.Duration) {
	l.logger.Info("stage complete", "stage", run.Stage.String(), "run_id", run.ID, "duration", d)
}

func (l *Logging) OnReset() {
	l.logger.Info("pipeline reset")
}

// SlogLevel maps a solver log level onto a slog level.
func SlogLevel(level pipeline.Level) slog.Level {
	switch level {
	case pipeline.LevelWarn:
		return slog.LevelWarn
	case pipeline.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var _ pipeline.Observer = (*Logging)(nil)
