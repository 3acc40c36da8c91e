// Package bg provides an abstraction for running functions in the background.
//
// Editor sessions hand their login, fetch and save tasks to a Runner so the
// same code paths run asynchronously in the server and synchronously in tests.
package bg

import (
	"log/slog"

	"github.com/sourcegraph/conc"
)

// Runner executes functions, either synchronously or asynchronously.
type Runner interface {
	Do(fn func())
}

// Async runs each function in a new goroutine.
type Async struct{}

func (Async) Do(fn func()) {
	go fn()
}

// Sync runs each function inline, on the caller's goroutine.
type Sync struct{}

func (Sync) Do(fn func()) {
	fn()
}

// Tracked is an Async runner that can wait for every function it started.
// The server uses it to drain in-flight logins and fetches on shutdown.
// A panicking function does not take the process down; Wait reports it.
type Tracked struct {
	Logger *slog.Logger

	wg conc.WaitGroup
}

func (t *Tracked) Do(fn func()) {
	t.wg.Go(fn)
}

// Wait blocks until all started functions have returned and reports whether
// any function started so far panicked.
func (t *Tracked) Wait() bool {
	recovered := t.wg.WaitAndRecover()
	if recovered == nil {
		return false
	}
	if t.Logger != nil {
		t.Logger.Error("background task panicked",
			"panic", recovered.Value,
			"stack", string(recovered.Stack),
		)
	}
	return true
}
