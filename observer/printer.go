package observer

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dcshock/planpipe/pipeline"
)

// Printer is a pipeline.Observer that writes a plain-text transcript of runs:
//
//	==> dp started (Demand Planning, variant prophet)
//	12:00:01.250 dp WARN  SKU-004 has 3 months of missing actuals
//	==> dp complete in 4.1s
//
// Writes are serialized, so stages running concurrently never interleave within
// a line. Write errors are ignored.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) BeforeStage(run pipeline.Run) {
	p.printf("==> %s started (%s, variant %s)\n", run.Stage, run.Stage.Label(), run.Variant)
}

func (p *Printer) OnLog(run pipeline.Run, entry pipeline.LogEntry) {
	p.printf("%s %s %-5s %s\n", entry.Time.Format("15:04:05.000"), run.Stage, entry.Level, entry.Message)
}

func (p *Printer) AfterStage(run pipeline.Run, d time.Duration) {
	p.printf("==> %s complete in %s\n", run.Stage, d.Round(time.Millisecond))
}

func (p *Printer) OnReset() {
	p.printf("==> pipeline reset\n")
}

var _ pipeline.Observer = (*Printer)(nil)
