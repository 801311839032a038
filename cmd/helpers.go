package cmd

import (
	"context"
	"errors"
	"time"
)

// errStop ends an errgroup early without being reported as a failure.
var errStop = errors.New("stop")

func contextWithSeconds(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
