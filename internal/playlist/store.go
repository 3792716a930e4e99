package playlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mixroom/pkg/order"
)

// Repository is the persistence collaborator behind the queue. Every call is
// a single atomic row operation; the storage layer enforces track uniqueness
// as a backstop to the in-memory check.
type Repository interface {
	CreateEntry(ctx context.Context, e Entry) error
	UpdateEntry(ctx context.Context, u EntryUpdate) error
	DeleteEntry(ctx context.Context, id string) error
	ListEntriesOrderedByKey(ctx context.Context) ([]Entry, error)
}

// EntryUpdate names the fields a mutation changed. Nil fields are untouched.
type EntryUpdate struct {
	ID        string
	Key       *order.Key
	Votes     *int
	IsPlaying *bool
	PlayedAt  *time.Time
}

// Queue is the single authoritative owner of the playlist. All mutations are
// serialized on its mutex and each one commits fully, including any rebalance
// and the repository write, before the next begins. Concurrent requests
// queue up here; conflicts are resolved by commit order.
type Queue struct {
	mu      sync.Mutex
	repo    Repository // nil means ephemeral, no write-through
	entries []Entry    // ascending Key
	version uint64

	now   func() time.Time
	newID func() string
}

// NewQueue returns an empty queue. repo may be nil for an ephemeral queue.
func NewQueue(repo Repository) *Queue {
	return &Queue{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Load replaces the in-memory state with the repository's, in key order.
func (q *Queue) Load(ctx context.Context) error {
	if q.repo == nil {
		return nil
	}
	entries, err := q.repo.ListEntriesOrderedByKey(ctx)
	if err != nil {
		return fmt.Errorf("playlist: load queue: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = entries
	return nil
}

// Add appends a track to the end of the queue. Fails with ErrDuplicateTrack
// if the track is already queued.
func (q *Queue) Add(ctx context.Context, track Track, addedBy string) (Entry, error) {
	if track.ID == "" {
		return Entry{}, fmt.Errorf("playlist: add: missing track id")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.Track.ID == track.ID {
			return Entry{}, ErrDuplicateTrack
		}
	}

	key, err := q.tailKeyLocked(ctx)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		ID:        q.newID(),
		Track:     track,
		Key:       key,
		AddedBy:   addedBy,
		CreatedAt: q.now().UTC(),
	}
	if q.repo != nil {
		if err := q.repo.CreateEntry(ctx, e); err != nil {
			return Entry{}, err
		}
	}
	q.entries = append(q.entries, e)
	q.version++
	return e, nil
}

// tailKeyLocked allocates a key after the current tail, rebalancing once if
// the top of the key space is exhausted.
func (q *Queue) tailKeyLocked(ctx context.Context) (order.Key, error) {
	var prev *order.Key
	if n := len(q.entries); n > 0 {
		k := q.entries[n-1].Key
		prev = &k
	}
	key, err := order.Between(prev, nil)
	if errors.Is(err, order.ErrExhausted) {
		if err := q.rebalanceLocked(ctx); err != nil {
			return 0, err
		}
		k := q.entries[len(q.entries)-1].Key
		return order.Between(&k, nil)
	}
	return key, err
}

// Reorder moves an entry between the two named neighbors. A nil prevID moves
// it to the head, a nil nextID to the tail. No other entry's key changes
// unless the key space between the neighbors is exhausted, in which case the
// whole queue is rebalanced and the allocation retried once.
func (q *Queue) Reorder(ctx context.Context, entryID string, prevID, nextID *string) (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(entryID)
	if idx < 0 {
		return Entry{}, ErrNotFound
	}

	key, err := q.keyBetweenLocked(prevID, nextID)
	if errors.Is(err, order.ErrExhausted) {
		if err := q.rebalanceLocked(ctx); err != nil {
			return Entry{}, err
		}
		key, err = q.keyBetweenLocked(prevID, nextID)
	}
	if err != nil {
		return Entry{}, err
	}

	if q.repo != nil {
		if err := q.repo.UpdateEntry(ctx, EntryUpdate{ID: entryID, Key: &key}); err != nil {
			return Entry{}, err
		}
	}

	e := q.entries[idx]
	e.Key = key
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	at := 0
	for at < len(q.entries) && q.entries[at].Key < key {
		at++
	}
	q.entries = append(q.entries[:at], append([]Entry{e}, q.entries[at:]...)...)
	q.version++
	return e, nil
}

// keyBetweenLocked resolves neighbor ids to keys and allocates between them.
func (q *Queue) keyBetweenLocked(prevID, nextID *string) (order.Key, error) {
	var prev, next *order.Key
	if prevID != nil {
		i := q.indexLocked(*prevID)
		if i < 0 {
			return 0, ErrNotFound
		}
		k := q.entries[i].Key
		prev = &k
	}
	if nextID != nil {
		i := q.indexLocked(*nextID)
		if i < 0 {
			return 0, ErrNotFound
		}
		k := q.entries[i].Key
		next = &k
	}
	return order.Between(prev, next)
}

// Vote moves an entry's tally by exactly one in either direction.
func (q *Queue) Vote(ctx context.Context, entryID string, dir Direction) (Entry, error) {
	if dir != VoteUp && dir != VoteDown {
		return Entry{}, fmt.Errorf("playlist: unknown vote direction %q", dir)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(entryID)
	if idx < 0 {
		return Entry{}, ErrNotFound
	}

	votes := q.entries[idx].Votes
	if dir == VoteUp {
		votes++
	} else {
		votes--
	}

	if q.repo != nil {
		if err := q.repo.UpdateEntry(ctx, EntryUpdate{ID: entryID, Votes: &votes}); err != nil {
			return Entry{}, err
		}
	}
	q.entries[idx].Votes = votes
	q.version++
	return q.entries[idx], nil
}

// SetPlaying marks an entry as now playing, clearing the previous holder so
// at most one entry is ever playing. Targeting the entry that is already
// playing is a no-op and keeps its played-at timestamp.
func (q *Queue) SetPlaying(ctx context.Context, entryID string) (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(entryID)
	if idx < 0 {
		return Entry{}, ErrNotFound
	}
	if q.entries[idx].IsPlaying {
		return q.entries[idx], nil
	}

	playedAt := q.now().UTC()
	playing := true
	stopped := false

	prior := -1
	for i := range q.entries {
		if q.entries[i].IsPlaying {
			prior = i
			break
		}
	}

	if q.repo != nil {
		if prior >= 0 {
			if err := q.repo.UpdateEntry(ctx, EntryUpdate{ID: q.entries[prior].ID, IsPlaying: &stopped}); err != nil {
				return Entry{}, err
			}
		}
		if err := q.repo.UpdateEntry(ctx, EntryUpdate{ID: entryID, IsPlaying: &playing, PlayedAt: &playedAt}); err != nil {
			return Entry{}, err
		}
	}

	if prior >= 0 {
		q.entries[prior].IsPlaying = false
	}
	q.entries[idx].IsPlaying = true
	q.entries[idx].PlayedAt = &playedAt
	q.version++
	return q.entries[idx], nil
}

// Remove deletes an entry. Neighbor keys are untouched and the entry's track
// outlives its queue membership.
func (q *Queue) Remove(ctx context.Context, entryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(entryID)
	if idx < 0 {
		return ErrNotFound
	}
	if q.repo != nil {
		if err := q.repo.DeleteEntry(ctx, entryID); err != nil {
			return err
		}
	}
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	q.version++
	return nil
}

// Snapshot returns a copy of the queue in display order together with the
// version of the last committed mutation. It never observes a half-applied
// mutation because mutations hold the same mutex until they commit.
func (q *Queue) Snapshot() ([]Entry, uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := make([]Entry, len(q.entries))
	copy(entries, q.entries)
	return entries, q.version
}

// Version returns the version of the last committed mutation.
func (q *Queue) Version() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.version
}

// rebalanceLocked reassigns every entry a fresh evenly spaced key in current
// display order, restoring precision headroom. Relative order is unchanged.
func (q *Queue) rebalanceLocked(ctx context.Context) error {
	keys := order.Rebalanced(len(q.entries))
	for i := range q.entries {
		if q.entries[i].Key == keys[i] {
			continue
		}
		if q.repo != nil {
			if err := q.repo.UpdateEntry(ctx, EntryUpdate{ID: q.entries[i].ID, Key: &keys[i]}); err != nil {
				return fmt.Errorf("playlist: rebalance: %w", err)
			}
		}
		q.entries[i].Key = keys[i]
	}
	return nil
}

func (q *Queue) indexLocked(entryID string) int {
	for i := range q.entries {
		if q.entries[i].ID == entryID {
			return i
		}
	}
	return -1
}
