package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mixroom/pkg/order"
)

// Conn is the receive side of the realtime channel.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// DialFunc establishes a fresh realtime connection.
type DialFunc func(ctx context.Context) (Conn, error)

// WebsocketDial dials wsURL with the gorilla dialer.
func WebsocketDial(wsURL string) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Options tunes an Agent. Zero values get sensible defaults.
type Options struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// OnChange is called with the new display state after every applied
	// broadcast or optimistic mutation.
	OnChange func(entries []Entry)

	// OnOffline fires when the connection is lost; OnOnline only once a
	// fresh snapshot has been applied after reconnecting, not when the
	// socket merely reopens.
	OnOffline func()
	OnOnline  func()
}

// Agent mirrors the authoritative queue on the client. Broadcasts always win
// over unconfirmed optimistic state; frames are applied in arrival order and
// stale versions are dropped.
type Agent struct {
	api  *APIClient
	dial DialFunc
	rec  *Reconnector

	onChange  func([]Entry)
	onOffline func()
	onOnline  func()

	mu      sync.Mutex
	server  []Entry // last authoritative snapshot
	version uint64
	synced  bool // false until a snapshot applies on the current connection
	pending []pendingOp
	seq     uint64
	latest  map[string]uint64 // newest local seq per entry
	conn    Conn
}

func New(api *APIClient, dial DialFunc, opts Options) *Agent {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 8
	}
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = 250 * time.Millisecond
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	return &Agent{
		api:       api,
		dial:      dial,
		rec:       NewReconnector(opts.MaxAttempts, opts.InitialBackoff, opts.MaxBackoff),
		onChange:  opts.OnChange,
		onOffline: opts.OnOffline,
		onOnline:  opts.OnOnline,
		latest:    make(map[string]uint64),
	}
}

// Run connects and keeps the mirror synchronized until ctx is canceled, the
// agent is closed, or the reconnect budget is spent. The returned error is
// ErrReconnectExhausted in the terminal failure case and nil on deliberate
// shutdown.
func (a *Agent) Run(ctx context.Context) error {
	for {
		delay, err := a.rec.BeginAttempt()
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				a.rec.AttemptFailed()
				return ctx.Err()
			}
		}

		conn, err := a.dial(ctx)
		if err != nil {
			a.rec.AttemptFailed()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		a.rec.Succeeded()
		if a.rec.State() != StateConnected {
			// Closed while the dial was in flight.
			_ = conn.Close()
			return nil
		}

		a.mu.Lock()
		a.conn = conn
		a.mu.Unlock()

		a.readLoop(conn)

		a.mu.Lock()
		a.conn = nil
		wasSynced := a.synced
		a.synced = false
		a.mu.Unlock()
		a.rec.Dropped()

		if wasSynced && a.onOffline != nil {
			a.onOffline()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close shuts the agent down deliberately; no reconnection follows.
func (a *Agent) Close() error {
	a.rec.Close()
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (a *Agent) readLoop(conn Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		a.handleFrame(msg)
	}
}

// handleFrame applies one realtime frame. Snapshots and change events both
// carry the full entry list, so applying either converges the mirror exactly;
// anything else on the channel is keep-alive traffic.
func (a *Agent) handleFrame(msg []byte) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return
	}
	switch f.Type {
	case "queue.snapshot", "queue.changed":
	default:
		return
	}

	var p statePayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		return
	}

	a.mu.Lock()
	if a.synced && f.Version <= a.version {
		// Older or duplicate commit, never applied out of order.
		a.mu.Unlock()
		return
	}
	wasOffline := !a.synced
	a.server = p.Entries
	a.version = f.Version
	a.synced = true
	a.pending = unconfirmed(a.server, a.pending)
	display := reconcile(a.server, a.pending)
	a.mu.Unlock()

	if wasOffline && a.onOnline != nil {
		a.onOnline()
	}
	if a.onChange != nil {
		a.onChange(display)
	}
}

// Reorder applies the move locally at once, computing the same key the
// server will, then sends the request. On failure the optimistic state is
// reverted unless a newer reorder of the same entry has superseded it.
func (a *Agent) Reorder(ctx context.Context, entryID string, prevID, nextID *string) error {
	a.mu.Lock()
	display := reconcile(a.server, a.pending)
	idx := indexOf(display, entryID)
	if idx < 0 {
		a.mu.Unlock()
		return ErrNotFound
	}
	var prev, next *order.Key
	if prevID != nil {
		i := indexOf(display, *prevID)
		if i < 0 {
			a.mu.Unlock()
			return ErrNotFound
		}
		k := display[i].Key
		prev = &k
	}
	if nextID != nil {
		i := indexOf(display, *nextID)
		if i < 0 {
			a.mu.Unlock()
			return ErrNotFound
		}
		k := display[i].Key
		next = &k
	}
	key, err := order.Between(prev, next)
	if err != nil {
		a.mu.Unlock()
		return err
	}

	a.seq++
	seq := a.seq
	a.latest[entryID] = seq
	a.pending = append(withoutEntry(a.pending, entryID), pendingOp{seq: seq, entryID: entryID, key: key})
	display = reconcile(a.server, a.pending)
	a.mu.Unlock()

	if a.onChange != nil {
		a.onChange(display)
	}

	if _, err := a.api.Reorder(ctx, entryID, prevID, nextID); err != nil {
		a.mu.Lock()
		if a.latest[entryID] != seq {
			// A newer local reorder superseded this one; its stale
			// outcome is ignored.
			a.mu.Unlock()
			return err
		}
		a.pending = withoutEntry(a.pending, entryID)
		display := reconcile(a.server, a.pending)
		a.mu.Unlock()
		if a.onChange != nil {
			a.onChange(display)
		}
		return err
	}
	return nil
}

// Add, Vote, SetPlaying and Remove go straight to the server; the resulting
// broadcast updates the mirror.

func (a *Agent) Add(ctx context.Context, track Track, addedBy string) (Entry, error) {
	// Adds are not safe to retry blindly, so check the mirror first; the
	// server's uniqueness check remains the authority.
	a.mu.Lock()
	for _, e := range a.server {
		if e.Track.ID == track.ID {
			a.mu.Unlock()
			return Entry{}, ErrDuplicateTrack
		}
	}
	a.mu.Unlock()
	return a.api.Add(ctx, track, addedBy)
}

func (a *Agent) Vote(ctx context.Context, entryID, direction string) (Entry, error) {
	return a.api.Vote(ctx, entryID, direction)
}

func (a *Agent) SetPlaying(ctx context.Context, entryID string) (Entry, error) {
	return a.api.SetPlaying(ctx, entryID)
}

func (a *Agent) Remove(ctx context.Context, entryID string) error {
	return a.api.Remove(ctx, entryID)
}

// Entries returns the current display state.
func (a *Agent) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return reconcile(a.server, a.pending)
}

// TrackCount is derived from the current display state, never cached.
func (a *Agent) TrackCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(reconcile(a.server, a.pending))
}

// TotalDuration is derived from the current display state, never cached.
func (a *Agent) TotalDuration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total time.Duration
	for _, e := range reconcile(a.server, a.pending) {
		total += time.Duration(e.Track.DurationSec) * time.Second
	}
	return total
}

// Offline reports whether the mirror is stale: true from connection loss
// until a fresh snapshot has been applied, not merely until the socket
// reports open.
func (a *Agent) Offline() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.synced
}

// State exposes the reconnection machine's state.
func (a *Agent) State() ConnState {
	return a.rec.State()
}

// Version is the last applied server commit version.
func (a *Agent) Version() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

func indexOf(entries []Entry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}

func withoutEntry(pending []pendingOp, entryID string) []pendingOp {
	out := pending[:0]
	for _, op := range pending {
		if op.entryID != entryID {
			out = append(out, op)
		}
	}
	return out
}
