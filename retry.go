package natpmp

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
)

// Retry runs op up to attempts times, sleeping between tries on the
// draft's recommended schedule (250ms initial interval, doubling). Only
// timeouts are retried: a refusal or a malformed frame will not get
// better by asking again.
//
// The exchange engine itself never retransmits; resilience is layered
// here, above it, so the single-shot semantics stay observable.
func Retry(ctx context.Context, attempts int, op func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	b := &backoff.Backoff{
		Min:    250 * time.Millisecond,
		Max:    64 * time.Second,
		Factor: 2,
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(ctx); err == nil || !errors.Is(err, ErrTimeout) {
			return err
		}
		if i == attempts-1 {
			break
		}
		d := b.Duration()
		Log.Debug().Int("attempt", i+1).Dur("backoff", d).Msg("retrying after timeout")
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
