package ringqueue

import "errors"

var (
	// ErrInvalidParameter is returned by New for a zero cell size or item count,
	// or a cell size that leaves room for fewer than three cells per chunk.
	ErrInvalidParameter = errors.New("ringqueue: invalid parameter")

	// ErrStopped means the queue was stopped. The caller should stop producing or consuming.
	ErrStopped = errors.New("ringqueue: stopped")

	// ErrAlloc is returned when a new chunk could not be allocated.
	ErrAlloc = errors.New("ringqueue: chunk allocation failed")

	// ErrEmpty is returned by TryTakeRead when no published cell is available.
	ErrEmpty = errors.New("ringqueue: empty")

	// ErrStaleHandle is returned when committing a handle after the writer moved on.
	ErrStaleHandle = errors.New("ringqueue: stale handle")
)
