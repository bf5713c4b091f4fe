// Package observer provides pipeline.Observer implementations:
//
//   - Logging: turns run hooks into structured log/slog records, one per log
//     line with the solver's level mapped onto slog levels.
//   - Printer: writes a human-readable transcript of every run to an
//     io.Writer (the planpipe CLI streams it to stdout).
//
// Combine them with pipeline.MultiObserver.
package observer
