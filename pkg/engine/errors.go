package engine

import (
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrCancelled marks a pass withdrawn by a newer request or a text
	// change. Expected; never logged as an error, triggers a delayed
	// retry.
	ErrCancelled = errors.Base("highlight pass cancelled")

	// ErrProviderUnavailable is raised synchronously by explicit checks
	// when the feature preconditions do not hold for the document.
	ErrProviderUnavailable = errors.Base("no semantic token provider for document")

	// ErrProviderFailure wraps any non-cancellation provider error; the
	// pass aborts with no result and does not retry.
	ErrProviderFailure = errors.Base("semantic token provider failed")

	// ErrStaleVersion marks a result that no longer matches the current
	// document version. Silently discarded.
	ErrStaleVersion = errors.Base("result is for a stale document version")

	// ErrWaitTimeout is returned by WaitRefresh when no refresh happens
	// within the configured deadline.
	ErrWaitTimeout = errors.Base("timed out waiting for highlight refresh")

	// ErrDisposed is returned by operations on a disposed engine.
	ErrDisposed = errors.Base("engine is disposed")
)
