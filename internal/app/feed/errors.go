package feed

import "errors"

var (
	// ErrUpstreamUnavailable covers network and auth failures reaching the platform.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrNotFound means the platform no longer has the message.
	ErrNotFound = errors.New("message not found")
	// ErrMalformedRecord marks an upstream payload missing required fields.
	ErrMalformedRecord = errors.New("malformed upstream record")
	// ErrPersistence wraps transcript save/load failures.
	ErrPersistence = errors.New("transcript persistence failed")
	// ErrNotSynced is returned by operations that need a completed initial load.
	ErrNotSynced = errors.New("feed not synced yet")
)
