package querycache

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// flightGroup deduplicates concurrent fills of one key within the process.
type flightGroup[V any] struct {
	g     singleflight.Group
	hooks Hooks
}

// panicError carries a recovered panic from a shared execution to every
// waiter.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("querycache: query panicked: %v\n\n%s", p.value, p.stack)
}

// do runs produce once per key among concurrent callers. produce runs detached
// from ctx cancellation so the remaining callers still get a result when the
// first one gives up; a caller whose ctx ends returns ctx.Err().
func (f *flightGroup[V]) do(ctx context.Context, key string, produce func(context.Context) (V, error)) (V, error) {
	shared := context.WithoutCancel(ctx)
	var led atomic.Bool
	ch := f.g.DoChan(key, func() (v any, err error) {
		led.Store(true)
		defer func() {
			if r := recover(); r != nil {
				err = &panicError{value: r, stack: debug.Stack()}
			}
		}()
		return produce(shared)
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		// Shared is also set for the caller that ran produce
		if res.Shared && !led.Load() {
			f.hooks.Coalesced(key)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}
