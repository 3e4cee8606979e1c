package netconn

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// reconnectSchedule is the fixed wait sequence between connect attempts:
// 1, 1, 2, 4, 8, 16, 32 seconds, then holding at 32s. cenkalti/backoff's
// exponential policy has no fixed floor-then-hold shape, so this
// implements backoff.BackOff directly against the literal schedule
// instead.
type reconnectSchedule struct {
	steps []time.Duration
	i     int
}

func newReconnectSchedule() *reconnectSchedule {
	return &reconnectSchedule{
		steps: []time.Duration{
			1 * time.Second,
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			32 * time.Second,
		},
	}
}

func (r *reconnectSchedule) NextBackOff() time.Duration {
	d := r.steps[r.i]
	if r.i < len(r.steps)-1 {
		r.i++
	}
	return d
}

func (r *reconnectSchedule) Reset() {
	r.i = 0
}

// Dialer reconnects to a single host:port, retrying on the fixed
// reconnectSchedule until ctx is cancelled. A DNS resolution failure stops
// the retries at once.
type Dialer struct {
	Host   string
	Port   string
	Logger *zap.SugaredLogger
}

// DialWithBackoff blocks until a connection succeeds, ctx is done, or host
// resolution fails (returned wrapping ErrResolutionFailed, without retry).
func (d *Dialer) DialWithBackoff(ctx context.Context) (*Conn, error) {
	var conn *Conn
	attempt := func() error {
		c, err := Dial(ctx, d.Host, d.Port, d.Logger)
		if err != nil {
			if errors.Is(err, ErrResolutionFailed) {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		d.Logger.Warnw("connect failed, retrying", "error", err, "wait", wait)
	}

	bo := backoff.WithContext(newReconnectSchedule(), ctx)
	if err := backoff.RetryNotify(attempt, bo, notify); err != nil {
		return nil, err
	}
	return conn, nil
}
