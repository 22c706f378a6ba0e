package engine

import "sync"

// Progress forwards percentages to a ProgressFunc, clamped to [0,100] and
// never decreasing. A nil function discards reports.
type Progress struct {
	mu   sync.Mutex
	fn   ProgressFunc
	last int
	sent bool
}

// NewProgress wraps fn.
func NewProgress(fn ProgressFunc) *Progress {
	return &Progress{fn: fn}
}

// Report forwards p unless it is lower than the last forwarded value.
func (p *Progress) Report(percent int) {
	percent = max(0, min(100, percent))
	p.mu.Lock()
	if p.sent && percent < p.last {
		p.mu.Unlock()
		return
	}
	p.last, p.sent = percent, true
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		fn(percent)
	}
}

// Func returns p as a ProgressFunc.
func (p *Progress) Func() ProgressFunc { return p.Report }

// Last returns the last forwarded value.
func (p *Progress) Last() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Scale maps an inner 0..100 progress into [lo, hi] of fn.
func Scale(fn ProgressFunc, lo, hi float64) ProgressFunc {
	return func(percent int) {
		if fn == nil {
			return
		}
		percent = max(0, min(100, percent))
		fn(int(lo + (hi-lo)*float64(percent)/100))
	}
}

// Notify calls fn when it is non-nil.
func (fn StatusFunc) Notify(msg string) {
	if fn != nil {
		fn(msg)
	}
}
