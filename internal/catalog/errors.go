package catalog

import "errors"

// Error taxonomy across the pipeline. Callers branch with errors.Is.
var (
	// ErrConfig means the client-supplied configuration is missing or
	// invalid. Fatal for the request; never retried.
	ErrConfig = errors.New("invalid configuration")

	// ErrUpstream means the backend was unreachable or returned garbage and
	// every fallback was exhausted. A load that fails with ErrUpstream must
	// not leave a cache entry behind.
	ErrUpstream = errors.New("upstream unavailable")

	// ErrNotFound means an id did not resolve against the current snapshot.
	// Local and non-fatal.
	ErrNotFound = errors.New("not found")
)
