package timectrl

import (
	"context"
	"time"
)

// Mode describes how a Pacer spaces out simulation turns.
type Mode int

const (
	// RealTime waits Tick of wall-clock time after every turn.
	RealTime Mode = iota
	// Accelerated runs turns back to back.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// Pacer slows a simulation down to a watchable speed. It satisfies
// core.Pacer.
type Pacer struct {
	Tick time.Duration
	Mode Mode

	// after is swapped out in tests.
	after func(time.Duration) <-chan time.Time
}

// NewPacer constructs a pacer.
func NewPacer(tick time.Duration, mode Mode) *Pacer {
	return &Pacer{Tick: tick, Mode: mode, after: time.After}
}

// Wait blocks for one tick in RealTime mode and returns immediately in
// Accelerated mode. It returns ctx.Err() if ctx is done first.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.Mode == Accelerated || p.Tick <= 0 {
		return ctx.Err()
	}
	after := p.after
	if after == nil {
		after = time.After
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-after(p.Tick):
		return nil
	}
}
