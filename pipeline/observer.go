package pipeline

import "time"

// Run identifies one execution of a stage. Generation increases by one every
// time RunStage starts that stage; it is what lets the orchestrator ignore
// callbacks from runs that Reset has cancelled.
type Run struct {
	ID         string
	Stage      Stage
	Variant    string
	Generation uint64
	StartedAt  time.Time
}

// Observer provides hooks around stage runs so callers can log, stream or persist
// progress. BeforeStage is called once a run has started (status is Running),
// OnLog for every log entry appended to the stage buffer, AfterStage when the run
// has completed, and OnReset after Reset has restored the initial state.
//
// BeforeStage is called by the goroutine that started the run, the other run
// hooks by the run's goroutine, always after the orchestrator lock is released.
// Hooks for one run are called in order; different stages may overlap.
//
// The orchestrator drops a hook whose run Reset has already superseded, but the
// check and the call are not atomic: a Reset racing with a hook can still let
// that hook arrive after OnReset. Observers that must not see it can discard
// hooks for which Orchestrator.IsCurrent(run) is false.
type Observer interface {
	BeforeStage(run Run)
	OnLog(run Run, entry LogEntry)
	AfterStage(run Run, duration time.Duration)
	OnReset()
}

// Hooks is an Observer built from optional funcs. Nil funcs are skipped.
type Hooks struct {
	Before func(run Run)
	Log    func(run Run, entry LogEntry)
	After  func(run Run, duration time.Duration)
	Reset  func()
}

func (h Hooks) BeforeStage(run Run) {
	if h.Before != nil {
		h.Before(run)
	}
}

func (h Hooks) OnLog(run Run, entry LogEntry) {
	if h.Log != nil {
		h.Log(run, entry)
	}
}

func (h Hooks) AfterStage(run Run, d time.Duration) {
	if h.After != nil {
		h.After(run, d)
	}
}

func (h Hooks) OnReset() {
	if h.Reset != nil {
		h.Reset()
	}
}

// MultiObserver fans every hook out to each non-nil observer in order.
func MultiObserver(observers ...Observer) Observer {
	list := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) BeforeStage(run Run) {
	for _, o := range m {
		o.BeforeStage(run)
	}
}

func (m multiObserver) OnLog(run Run, entry LogEntry) {
	for _, o := range m {
		o.OnLog(run, entry)
	}
}

func (m multiObserver) AfterStage(run Run, d time.Duration) {
	for _, o := range m {
		o.AfterStage(run, d)
	}
}

func (m multiObserver) OnReset() {
	for _, o := range m {
		o.OnReset()
	}
}
