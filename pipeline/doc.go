// Package pipeline coordinates the four-stage planning pipeline: Demand Planning
// (DP) → Master Planning (MP) → Factory Planning (FP) → Transport Planning (TP).
// Each stage is a long-running solver; here a run is simulated by streaming the
// selected variant's canned log script at random intervals.
//
// An Orchestrator owns all pipeline state. RunStage starts a run if the stage's
// dependency is Complete and no run of the stage is active; otherwise it is a
// no-op, so repeated requests (e.g. button spam) are harmless. RunAll runs every
// stage in order and waits on each run's completion signal before starting the
// next, like a sequence of pipelines joined with &&.
//
//	o := pipeline.New(pipeline.Options{Scripts: scripts, Variants: defaults})
//	o.RunStage(pipeline.DP)
//	_ = o.Wait(ctx, pipeline.DP)
//	ok := o.RunAll(ctx)
//
// # Sync flags
//
// When a stage completes, the stage directly after it is flagged NeedsSync if it
// is already Complete: its output was computed from older upstream results. The
// flag clears when that stage completes again. With SyncCascade every Complete
// stage downstream is flagged instead of only the next one.
//
// # Observing runs
//
// Pass an Observer in Options to receive BeforeStage, OnLog, AfterStage and
// OnReset hooks (see package observer for logging and streaming observers), or
// poll Snapshot for a consistent copy of the state.
//
// # Reset and cancellation
//
// Every run carries a generation number. Reset bumps the generation of every
// stage and cancels outstanding runs; log lines and completions that arrive
// later for an old generation are dropped, so a reset pipeline is never touched
// by runs started before the reset.
package pipeline
