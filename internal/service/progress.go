package service

// ProgressSink receives one tick per course while a run aggregates
// assignments. completed increases strictly by one per call, from 1 up
// to total; a run with zero courses produces zero calls. The pipeline
// invokes the sink from its worker goroutine only, never concurrently
// with itself, so implementations marshalling to another loop need no
// locking against the pipeline.
type ProgressSink interface {
	Report(completed, total int)
}

// ProgressFunc adapts a plain function to a ProgressSink.
type ProgressFunc func(completed, total int)

// Report implements ProgressSink.
func (f ProgressFunc) Report(completed, total int) {
	f(completed, total)
}

// NopProgress discards progress ticks.
var NopProgress ProgressSink = ProgressFunc(func(int, int) {})
