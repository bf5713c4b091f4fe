package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SyncPolicy controls which downstream stages are flagged as needing a sync when
// a stage completes.
type SyncPolicy int

const (
	// SyncSingleHop flags only the direct successor, and only if it is Complete.
	SyncSingleHop SyncPolicy = iota
	// SyncCascade flags every Complete stage downstream of the completed one.
	SyncCascade
)

func (p SyncPolicy) String() string {
	switch p {
	case SyncSingleHop:
		return "single-hop"
	case SyncCascade:
		return "cascade"
	default:
		return "unknown"
	}
}

// ParseSyncPolicy parses "single-hop" (or "") and "cascade".
func ParseSyncPolicy(name string) (SyncPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "single-hop", "single_hop", "singlehop":
		return SyncSingleHop, nil
	case "cascade":
		return SyncCascade, nil
	default:
		return 0, fmt.Errorf("unknown sync policy %q (use \"single-hop\" or \"cascade\")", name)
	}
}

// SnapshotActivityLimit is the number of activity events included in a Snapshot.
const SnapshotActivityLimit = 5

// Options configures an Orchestrator. The zero value gives a pipeline whose
// stages all start Complete, with no scripts and no outputs.
type Options struct {
	Scripts ScriptProvider
	Outputs OutputStore

	// Observer receives run hooks. Use MultiObserver to attach several.
	Observer Observer
	Logger   *slog.Logger

	// StartIdle makes every stage start (and reset to) Idle. By default stages
	// start Complete, as if seeded with sample results, so any stage can be run
	// on first load.
	StartIdle bool

	// Variants is the initially selected variant per stage.
	Variants map[Stage]string

	// Delay bounds the pause between streamed log lines. Zero means DefaultDelay.
	Delay DelayRange

	SyncPolicy        SyncPolicy
	ActivityRetention int

	// RunAllPause is waited between two stages of RunAll.
	RunAllPause time.Duration

	// Clock overrides time.Now for log and activity timestamps.
	Clock func() time.Time
}

type stageState struct {
	status    Status
	logs      []LogEntry
	variant   string
	needsSync bool
	gen       uint64
	active    *activeRun // active-task guard; nil when no run is outstanding
}

// activeRun is the completion signal of one run. cancel is the func returned by
// the runner and is the only way the run is stopped. done is closed exactly
// once: by complete after the AfterStage hook, or by Reset. completed is set
// under the orchestrator lock before either.
type activeRun struct {
	run       Run
	cancel    context.CancelFunc
	done      chan struct{}
	completed bool
}

// Orchestrator owns the pipeline state: per-stage status, log buffers, selected
// variants, sync flags, active-run guards and the activity history. All state
// changes go through its methods and each change is applied under one lock, so
// observers never see a half-applied transition. Safe for concurrent use.
type Orchestrator struct {
	mu     sync.Mutex
	stages [numStages]stageState

	initial     Status
	policy      SyncPolicy
	runAllPause time.Duration

	runningAll    bool
	runAllGen     uint64
	lastCompleted Stage
	hasCompleted  bool

	activity *ActivityRecorder
	runner   *Runner
	outputs  OutputStore
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// New returns an orchestrator in its initial state.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		initial:     Complete,
		policy:      opts.SyncPolicy,
		runAllPause: opts.RunAllPause,
		activity:    NewActivityRecorder(opts.ActivityRetention),
		outputs:     opts.Outputs,
		observer:    opts.Observer,
		logger:      opts.Logger,
		now:         opts.Clock,
	}
	if opts.StartIdle {
		o.initial = Idle
	}
	if o.observer == nil {
		o.observer = Hooks{}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.now == nil {
		o.now = time.Now
	}
	delay := opts.Delay
	if delay.IsZero() {
		delay = DefaultDelay
	}
	o.runner = &Runner{Scripts: opts.Scripts, Delay: delay, Now: o.now, Logger: o.logger}
	for _, s := range Order() {
		o.stages[s] = stageState{status: o.initial, variant: opts.Variants[s]}
	}
	return o
}

// CanRun reports whether stage's dependency is Complete. DP can always run.
// The stage's own status does not matter.
func (o *Orchestrator) CanRun(stage Stage) bool {
	if !stage.Valid() {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.canRunLocked(stage)
}

func (o *Orchestrator) canRunLocked(stage Stage) bool {
	dep, ok := DependencyOf(stage)
	if !ok {
		return true
	}
	return o.stages[dep].status == Complete
}

// CheckRunnable returns why RunStage(stage) would be a no-op right now, or nil
// if it would start a run.
func (o *Orchestrator) CheckRunnable(stage Stage) error {
	if !stage.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStage, int(stage))
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.canRunLocked(stage) {
		dep, _ := DependencyOf(stage)
		return fmt.Errorf("%s: %w (%s is %s)", stage, ErrDependencyNotSatisfied, dep, o.stages[dep].status)
	}
	if o.stages[stage].active != nil {
		return fmt.Errorf("%s: %w", stage, ErrStageBusy)
	}
	return nil
}

// RunStage starts a run of stage with its selected variant and returns true. If
// the stage's dependency is not Complete, or a run of the stage is already
// active, it does nothing and returns false.
//
// The run clears the stage's log buffer, marks it Running and streams the
// variant's script into the buffer. When the script is exhausted the stage
// becomes Complete and downstream sync flags are recomputed.
func (o *Orchestrator) RunStage(stage Stage) bool {
	_, err := o.start(stage)
	return err == nil
}

// start begins a run of stage. When the stage is busy it returns the active run
// together with ErrStageBusy so RunAll can wait on it.
func (o *Orchestrator) start(stage Stage) (*activeRun, error) {
	if !stage.Valid() {
		return nil, ErrUnknownStage
	}
	o.mu.Lock()
	if !o.canRunLocked(stage) {
		o.mu.Unlock()
		o.logger.Debug("run ignored: dependency not complete", "stage", stage.String())
		return nil, ErrDependencyNotSatisfied
	}
	st := &o.stages[stage]
	if st.active != nil {
		ar := st.active
		o.mu.Unlock()
		o.logger.Debug("run ignored: stage busy", "stage", stage.String())
		return ar, ErrStageBusy
	}

	st.gen++
	run := Run{
		ID:         uuid.NewString(),
		Stage:      stage,
		Variant:    st.variant,
		Generation: st.gen,
		StartedAt:  o.now(),
	}
	gate := make(chan struct{})
	ar := &activeRun{run: run, done: make(chan struct{})}
	ar.cancel = o.runner.start(context.Background(), run, gate,
		func(e LogEntry) { o.appendLog(run, e) },
		func() { o.complete(run) },
	)
	st.active = ar
	st.logs = nil
	st.status = Running
	o.activity.Record(ActivityEvent{ID: uuid.NewString(), Stage: stage, Type: ActivityStart, Time: run.StartedAt})
	o.mu.Unlock()

	o.logger.Info("stage started", "stage", stage.String(), "variant", run.Variant, "run_id", run.ID, "generation", run.Generation)
	if o.IsCurrent(run) {
		o.observer.BeforeStage(run)
	}
	// The runner delivers nothing until the gate opens, so OnLog never precedes
	// BeforeStage. A Reset since unlock has already cancelled the run.
	close(gate)
	return ar, nil
}

// isCurrentLocked reports whether run is still the outstanding run of its stage.
func (o *Orchestrator) isCurrentLocked(run Run) bool {
	st := &o.stages[run.Stage]
	return st.active != nil && st.gen == run.Generation
}

// IsCurrent reports whether run has not been superseded by Reset or by a newer
// run of its stage. A completed run stays current until then. Observers can use
// it to discard a hook that raced with Reset.
func (o *Orchestrator) IsCurrent(run Run) bool {
	if !run.Stage.Valid() {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stages[run.Stage].gen == run.Generation
}

func (o *Orchestrator) appendLog(run Run, e LogEntry) {
	o.mu.Lock()
	if !o.isCurrentLocked(run) {
		o.mu.Unlock()
		o.logger.Debug("stale log entry dropped", "stage", run.Stage.String(), "run_id", run.ID)
		return
	}
	st := &o.stages[run.Stage]
	st.logs = append(st.logs, e)
	o.mu.Unlock()
	if o.IsCurrent(run) {
		o.observer.OnLog(run, e)
	}
}

func (o *Orchestrator) complete(run Run) {
	o.mu.Lock()
	if !o.isCurrentLocked(run) {
		o.mu.Unlock()
		o.logger.Debug("stale completion dropped", "stage", run.Stage.String(), "run_id", run.ID)
		return
	}
	st := &o.stages[run.Stage]
	ar := st.active
	now := o.now()
	st.status = Complete
	st.needsSync = false
	st.active = nil
	o.activity.Record(ActivityEvent{ID: uuid.NewString(), Stage: run.Stage, Type: ActivityComplete, Time: now})
	o.lastCompleted = run.Stage
	o.hasCompleted = true
	flagged := o.invalidateLocked(run.Stage)
	ar.completed = true
	o.mu.Unlock()

	ar.cancel()
	duration := now.Sub(run.StartedAt)
	o.logger.Info("stage complete", "stage", run.Stage.String(), "run_id", run.ID, "duration", duration, "needs_sync", stageList(flagged))
	if o.IsCurrent(run) {
		o.observer.AfterStage(run, duration)
	}
	// The guard is already cleared; done is closed last so RunAll moves on only
	// after observers have seen the completion.
	close(ar.done)
}

// invalidateLocked sets NeedsSync on the downstream stages of completed that
// the sync policy covers and that are currently Complete. Returns the stages
// it flagged.
func (o *Orchestrator) invalidateLocked(completed Stage) []Stage {
	targets := Downstream(completed)
	if o.policy == SyncSingleHop && len(targets) > 1 {
		targets = targets[:1]
	}
	var flagged []Stage
	for _, d := range targets {
		if o.stages[d].status == Complete {
			o.stages[d].needsSync = true
			flagged = append(flagged, d)
		}
	}
	return flagged
}

// RunAll runs every stage in order, waiting for each run to complete before
// starting the next. It returns true when all stages completed. It returns
// false without running anything if another RunAll is in progress, and aborts
// (returning false) when the next stage cannot run, when the awaited run is
// cancelled by Reset, or when ctx is done. Cancelling ctx stops the sequencer
// only; a stage run already in flight continues.
//
// If a stage already has an active run (started manually), RunAll waits for
// that run instead of starting another.
func (o *Orchestrator) RunAll(ctx context.Context) bool {
	o.mu.Lock()
	if o.runningAll {
		o.mu.Unlock()
		o.logger.Debug("run-all ignored: already in progress")
		return false
	}
	o.runningAll = true
	o.runAllGen++
	gen := o.runAllGen
	o.mu.Unlock()
	defer o.finishRunAll(gen)

	o.logger.Info("run-all started")
	for i, stage := range Order() {
		if i > 0 && !sleepCtx(ctx, o.runAllPause) {
			o.logger.Info("run-all aborted: context done", "next", stage.String())
			return false
		}
		if !o.runAllCurrent(gen) {
			o.logger.Info("run-all aborted: reset", "next", stage.String())
			return false
		}
		ar, err := o.start(stage)
		if err != nil && !IsStageBusy(err) {
			o.logger.Info("run-all aborted", "stage", stage.String(), "reason", err)
			return false
		}
		select {
		case <-ctx.Done():
			o.logger.Info("run-all aborted: context done", "stage", stage.String())
			return false
		case <-ar.done:
		}
		if !ar.completed {
			o.logger.Info("run-all aborted: run superseded", "stage", stage.String())
			return false
		}
	}
	o.logger.Info("run-all complete")
	return true
}

func (o *Orchestrator) runAllCurrent(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runningAll && o.runAllGen == gen
}

func (o *Orchestrator) finishRunAll(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runAllGen == gen {
		o.runningAll = false
	}
}

// Wait blocks until stage has no active run. It returns nil if there was none or
// it completed, ErrRunSuperseded if Reset cancelled it, or ctx's error.
func (o *Orchestrator) Wait(ctx context.Context, stage Stage) error {
	if !stage.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStage, int(stage))
	}
	o.mu.Lock()
	ar := o.stages[stage].active
	o.mu.Unlock()
	if ar == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ar.done:
	}
	if !ar.completed {
		return fmt.Errorf("%s: %w", stage, ErrRunSuperseded)
	}
	return nil
}

// SetSelectedVariant changes the variant used by the next run of stage. It
// returns ErrStageBusy while a run of stage is active.
func (o *Orchestrator) SetSelectedVariant(stage Stage, variant string) error {
	if !stage.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStage, int(stage))
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stages[stage].active != nil {
		return fmt.Errorf("%s: %w", stage, ErrStageBusy)
	}
	o.stages[stage].variant = variant
	return nil
}

// Reset cancels every active run and restores the initial state: initial
// status on every stage, empty log buffers, no sync flags, no activity and no
// run-all in progress. Selected variants are kept. Callbacks still pending from
// cancelled runs are ignored.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	var cancels []context.CancelFunc
	for i := range o.stages {
		st := &o.stages[i]
		if st.active != nil {
			cancels = append(cancels, st.active.cancel)
			close(st.active.done)
			st.active = nil
		}
		st.gen++
		st.status = o.initial
		st.logs = nil
		st.needsSync = false
	}
	o.activity.Reset()
	o.hasCompleted = false
	o.runningAll = false
	o.runAllGen++
	o.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	o.logger.Info("pipeline reset", "cancelled_runs", len(cancels), "initial_status", o.initial.String())
	o.observer.OnReset()
}

// Status returns the current status of stage.
func (o *Orchestrator) Status(stage Stage) Status {
	if !stage.Valid() {
		return Idle
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stages[stage].status
}

// Logs returns a copy of stage's log buffer.
func (o *Orchestrator) Logs(stage Stage) []LogEntry {
	if !stage.Valid() {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]LogEntry(nil), o.stages[stage].logs...)
}

// NeedsSync reports whether stage completed before its dependency's latest run.
// Always false for DP.
func (o *Orchestrator) NeedsSync(stage Stage) bool {
	if !stage.Valid() {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stages[stage].needsSync
}

// SelectedVariant returns the variant the next run of stage will use.
func (o *Orchestrator) SelectedVariant(stage Stage) string {
	if !stage.Valid() {
		return ""
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stages[stage].variant
}

// IsActive reports whether stage's active-run guard is set.
func (o *Orchestrator) IsActive(stage Stage) bool {
	if !stage.Valid() {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stages[stage].active != nil
}

// IsRunningAll reports whether a RunAll is in progress.
func (o *Orchestrator) IsRunningAll() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runningAll
}

// LastCompleted returns the stage whose run completed most recently since the
// last Reset.
func (o *Orchestrator) LastCompleted() (Stage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastCompleted, o.hasCompleted
}

// RecentActivity returns up to n activity events, most recent first.
func (o *Orchestrator) RecentActivity(n int) []ActivityEvent {
	return o.activity.Recent(n)
}

// Output returns stage's result payload from the output store.
func (o *Orchestrator) Output(stage Stage) (any, bool) {
	if o.outputs == nil {
		return nil, false
	}
	return o.outputs.Get(stage)
}

// KPIs returns stage's KPI summary from the output store.
func (o *Orchestrator) KPIs(stage Stage) []KPI {
	if o.outputs == nil {
		return nil
	}
	return o.outputs.KPIs(stage)
}

// StageSnapshot is the observable state of one stage.
type StageSnapshot struct {
	Stage     Stage      `json:"stage" yaml:"stage"`
	Status    Status     `json:"status" yaml:"status"`
	Variant   string     `json:"variant" yaml:"variant"`
	NeedsSync bool       `json:"needs_sync" yaml:"needs_sync"`
	Active    bool       `json:"active" yaml:"active"`
	Logs      []LogEntry `json:"logs" yaml:"logs"`
}

// Snapshot is a consistent read-only copy of the whole pipeline state.
type Snapshot struct {
	Stages        []StageSnapshot `json:"stages" yaml:"stages"`
	RunningAll    bool            `json:"running_all" yaml:"running_all"`
	LastCompleted *Stage          `json:"last_completed,omitempty" yaml:"last_completed,omitempty"`
	Activity      []ActivityEvent `json:"activity" yaml:"activity"`
}

// Snapshot returns the current state of every stage, taken under one lock.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	snap := Snapshot{
		Stages:     make([]StageSnapshot, 0, numStages),
		RunningAll: o.runningAll,
	}
	for _, s := range Order() {
		st := &o.stages[s]
		snap.Stages = append(snap.Stages, StageSnapshot{
			Stage:     s,
			Status:    st.status,
			Variant:   st.variant,
			NeedsSync: st.needsSync,
			Active:    st.active != nil,
			Logs:      append([]LogEntry(nil), st.logs...),
		})
	}
	if o.hasCompleted {
		last := o.lastCompleted
		snap.LastCompleted = &last
	}
	// Activity is recorded under o.mu, so reading it here keeps the snapshot consistent.
	snap.Activity = o.activity.Recent(SnapshotActivityLimit)
	o.mu.Unlock()
	return snap
}

func stageList(stages []Stage) string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.String()
	}
	return strings.Join(names, ",")
}
