package system

import (
	"context"
)

// RunWithContext runs operation in its own goroutine and waits for it or for
// ctx, whichever comes first.
//
// The operation receives an independent context that is cancelled when ctx
// is done, so it can stop early. When ctx wins, the operation's result is
// abandoned and ctx.Err() is returned; the goroutine still runs to
// completion in the background.
func RunWithContext(ctx context.Context, operation func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Buffered so the goroutine can always deliver its result and exit.
	done := make(chan error, 1)
	go func() {
		done <- operation(opCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}
