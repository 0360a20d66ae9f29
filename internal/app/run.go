// Package app contains the top-level orchestration for the server and client roles.
package app

import (
	"context"
	"fmt"
)

// runTasks runs every task until the first one returns, then cancels
// the rest and waits for them. Shutdown caused by ctx is not an error.
func runTasks(ctx context.Context, tasks ...func(context.Context) error) error {
	tCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(tasks))
	for _, task := range tasks {
		go func() {
			errCh <- task(tCtx)
		}()
	}

	first := <-errCh
	cancel()
	for range len(tasks) - 1 {
		<-errCh
	}

	if ctx.Err() != nil {
		return nil
	}
	return first
}

// detached adapts a blocking call that cannot be interrupted, such as
// a read from stdin. The call is abandoned, not stopped, when ctx is done.
func detached(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		done := make(chan error, 1)
		go func() {
			done <- fn(ctx)
		}()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}

// printBanner prints a boxed summary of the running endpoint.
func printBanner(title string, rows [][2]string) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Printf("║  %-39s ║\n", title)
	fmt.Println("╠══════════════════════════════════════════╣")
	for _, r := range rows {
		fmt.Printf("║  %-8s: %-29s ║\n", r[0], r[1])
	}
	fmt.Println("╚══════════════════════════════════════════╝")
	fmt.Println()
}
