package enhance

import "sync/atomic"

// Observer is how the surrounding build system follows and cancels a run.
//
// IsCancelled is polled at the start of every class; once it returns true
// the run stops scheduling new classes and lets in-flight writes finish.
type Observer interface {
	OnProgress(text string)
	IsCancelled() bool
}

// NopObserver ignores progress and never cancels.
type NopObserver struct{}

func (NopObserver) OnProgress(string) {}
func (NopObserver) IsCancelled() bool { return false }

// CancelFlag is an Observer whose cancellation is set explicitly.
type CancelFlag struct {
	cancelled atomic.Bool
	progress  func(string)
}

// NewCancelFlag creates a flag. progress may be nil.
func NewCancelFlag(progress func(string)) *CancelFlag {
	return &CancelFlag{progress: progress}
}

// Cancel requests cancellation.
func (c *CancelFlag) Cancel() { c.cancelled.Store(true) }

func (c *CancelFlag) OnProgress(text string) {
	if c.progress != nil {
		c.progress(text)
	}
}

func (c *CancelFlag) IsCancelled() bool { return c.cancelled.Load() }
