package playlist

import "errors"

var (
	// ErrNotFound reports that an entry (or a reorder neighbor) does not
	// exist in the queue.
	ErrNotFound = errors.New("playlist: entry not found")

	// ErrDuplicateTrack reports an add for a track that is already queued.
	ErrDuplicateTrack = errors.New("playlist: track already queued")
)
