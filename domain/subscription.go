package domain

import (
	"context"
	"errors"
)

type Subscription[T any] struct {
	Stream      chan T
	Unsubscribe func()
	Topic       string
}

// Follow turns a watch call into a stream: every value watch returns is pushed to Stream
// until Unsubscribe is called or watch fails with a non-cancellation error.
// The error that ended the stream is reported on errs, which may be nil and is closed when the stream ends.
func Follow[T any](ctx context.Context, topic string, watch func(ctx context.Context) (T, error), errs chan<- error) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan T)

	go func() {
		defer close(out)
		if errs != nil {
			defer close(errs)
		}
		for {
			value, err := watch(ctx)
			if err != nil {
				if errs != nil && !errors.Is(err, context.Canceled) {
					select {
					case errs <- err:
					default:
					}
				}
				return
			}

			select {
			case out <- value:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Subscription[T]{
		Stream:      out,
		Unsubscribe: cancel,
		Topic:       topic,
	}
}
