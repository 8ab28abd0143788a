// Package progress defines the progress-reporting abstraction passed down
// through the transcription pipeline.
package progress

// Sink receives progress milestones. Report is synchronous and fire-and-
// forget: implementations must not block the pipeline and must tolerate
// out-of-order percentages from concurrent chunk completions.
type Sink interface {
	Report(pct int, stage string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(pct int, stage string)

// Report calls f.
func (f SinkFunc) Report(pct int, stage string) { f(pct, stage) }

// Discard is a Sink that drops all reports.
var Discard Sink = SinkFunc(func(int, string) {})

// Band returns a Sink that maps a 0-100 sub-scale onto the [lo, hi] band of
// the parent sink. Stage labels pass through unchanged.
func Band(parent Sink, lo, hi int) Sink {
	if parent == nil {
		parent = Discard
	}
	if hi < lo {
		hi = lo
	}
	return SinkFunc(func(pct int, stage string) {
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		parent.Report(lo+(hi-lo)*pct/100, stage)
	})
}
