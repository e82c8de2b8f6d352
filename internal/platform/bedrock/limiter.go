package bedrock

import (
	"context"
	"sync"
	"time"
)

// invokePacer spaces model invocations so sustained throughput stays at
// the configured rate. Bookkeeping is a single timestamp: the earliest
// moment the next invocation may start. Idle time accrues headroom up to
// the burst allowance, which is then spent without waiting.
type invokePacer struct {
	mu    sync.Mutex
	step  time.Duration // minimum spacing between invocations
	slack time.Duration // headroom cap, (burst-1) spacings
	next  time.Time     // earliest start for the next invocation
}

func newInvokePacer(perSecond float64, burst int) *invokePacer {
	step := time.Duration(float64(time.Second) / perSecond)
	return &invokePacer{
		step:  step,
		slack: time.Duration(burst-1) * step,
	}
}

// reserve claims the next invocation slot and returns how long the caller
// must hold off before using it.
func (p *invokePacer) reserve(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	// The schedule never lags more than the burst allowance behind the
	// clock. The clamp also boots the zero value.
	if floor := now.Add(-p.slack); p.next.Before(floor) {
		p.next = floor
	}
	delay := p.next.Sub(now)
	p.next = p.next.Add(p.step)
	return delay
}

// wait blocks until the pacer grants a slot or ctx is done. A cancelled
// waiter forfeits its slot.
func (p *invokePacer) wait(ctx context.Context) error {
	delay := p.reserve(time.Now())
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
