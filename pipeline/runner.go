package pipeline

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// DelayRange bounds the random pause between two streamed log lines. The pause
// is drawn uniformly from [Min, Max).
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// DefaultDelay is the pacing of the reference solver simulation.
var DefaultDelay = DelayRange{Min: 200 * time.Millisecond, Max: 800 * time.Millisecond}

// IsZero reports whether both bounds are unset.
func (d DelayRange) IsZero() bool { return d.Min == 0 && d.Max == 0 }

func (d DelayRange) pick() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(rand.Int64N(int64(d.Max-d.Min)))
}

// Runner executes simulated solver runs. Each run streams its variant's script
// one line at a time with a random pause after every line, then reports
// completion. The zero value is usable: no scripts (every run completes
// immediately) and no pauses.
type Runner struct {
	Scripts ScriptProvider
	Delay   DelayRange
	Now     func() time.Time // optional; defaults to time.Now
	Logger  *slog.Logger     // optional; defaults to discarding
}

// Start runs run asynchronously and returns a function that cancels it. onEvent
// receives every log entry in script order with non-decreasing timestamps;
// onComplete is called once after the last entry. Neither is called after ctx
// is done or the returned cancel func has been called, except for a delivery
// already in progress; callers that need a hard guarantee must gate delivery
// on run.Generation, as Orchestrator does.
func (r *Runner) Start(ctx context.Context, run Run, onEvent func(LogEntry), onComplete func()) context.CancelFunc {
	return r.start(ctx, run, nil, onEvent, onComplete)
}

// start is Start with a gate: when gate is non-nil the run does not begin until
// gate is closed, and exits without delivering anything if it is cancelled
// first. Orchestrator takes the cancel func under its lock and opens the gate
// after BeforeStage.
func (r *Runner) start(ctx context.Context, run Run, gate <-chan struct{}, onEvent func(LogEntry), onComplete func()) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		if gate != nil {
			select {
			case <-ctx.Done():
				return
			case <-gate:
			}
		}
		r.execute(ctx, run, onEvent, onComplete)
	}()
	return cancel
}

func (r *Runner) execute(ctx context.Context, run Run, onEvent func(LogEntry), onComplete func()) {
	var script []string
	if r.Scripts != nil {
		script = r.Scripts.Get(run.Stage, run.Variant)
	}
	logger := r.logger().With("stage", run.Stage.String(), "run_id", run.ID)
	if len(script) == 0 {
		logger.Debug("empty script, completing immediately", "variant", run.Variant)
	}

	var last time.Time
	for i, raw := range script {
		if ctx.Err() != nil {
			logger.Debug("run cancelled", "emitted", i, "total", len(script))
			return
		}
		level, msg := ParseMessage(raw)
		ts := r.now()
		if ts.Before(last) {
			ts = last
		}
		last = ts
		if onEvent != nil {
			onEvent(LogEntry{ID: uuid.NewString(), Time: ts, Level: level, Message: msg})
		}
		if !sleepCtx(ctx, r.Delay.pick()) {
			logger.Debug("run cancelled", "emitted", i+1, "total", len(script))
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	if onComplete != nil {
		onComplete()
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// duration elapsed with ctx still live.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
