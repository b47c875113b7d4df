package interfaces

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// ISession is one controllable browser instance.
// -----------------------------------------------------------------------------

type ISession interface {
	ID() string

	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until selector is present, failing with a TimeoutError.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// WaitAny blocks until one of selectors is present and returns it.
	WaitAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error)

	// SetValue replaces the value of an input or select element.
	SetValue(ctx context.Context, selector, value string) error

	Click(ctx context.Context, selector string) error

	// Evaluate runs script in the page, decoding its result into out when non-nil.
	Evaluate(ctx context.Context, script string, out interface{}) error

	// OuterHTML returns the rendered markup of the first match of selector.
	OuterHTML(ctx context.Context, selector string) (string, error)

	Close() error
}

// -----------------------------------------------------------------------------

// ISessionFactory launches new sessions for the pool.
type ISessionFactory interface {
	NewSession(ctx context.Context) (ISession, error)
}

// -----------------------------------------------------------------------------

// ISessionPool shares sessions across workers.
type ISessionPool interface {
	// Acquire returns an idle session or builds a new one.
	Acquire(ctx context.Context) (ISession, error)

	// Release makes the session available again.
	Release(s ISession)

	// Discard closes a broken session instead of returning it.
	Discard(s ISession)
}
