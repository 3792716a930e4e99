package playlist

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestServer_HandleHealth(t *testing.T) {
	s := NewServer(newTestQueue(nil), nil)
	rec := doJSON(t, s.Router(), "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_HandleAddTrack(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		s := NewServer(newTestQueue(nil), nil)
		rec := doJSON(t, s.Router(), "POST", "/queue/tracks", map[string]any{
			"track":   Track{ID: "t1", Title: "Song", Artist: "Band"},
			"addedBy": "alice",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var entry Entry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
		assert.Equal(t, "t1", entry.Track.ID)
		assert.Equal(t, "alice", entry.AddedBy)
	})

	t.Run("duplicate is a conflict", func(t *testing.T) {
		s := NewServer(newTestQueue(nil), nil)
		r := s.Router()
		body := map[string]any{"track": Track{ID: "t1", Title: "Song"}}
		require.Equal(t, http.StatusCreated, doJSON(t, r, "POST", "/queue/tracks", body).Code)
		assert.Equal(t, http.StatusConflict, doJSON(t, r, "POST", "/queue/tracks", body).Code)
	})

	t.Run("missing track id", func(t *testing.T) {
		s := NewServer(newTestQueue(nil), nil)
		rec := doJSON(t, s.Router(), "POST", "/queue/tracks", map[string]any{
			"track": Track{Title: "Song"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		s := NewServer(newTestQueue(nil), nil)
		req := httptest.NewRequest("POST", "/queue/tracks", bytes.NewBufferString("not json"))
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_HandleReorderTrack(t *testing.T) {
	q := newTestQueue(nil)
	a, b, c := addThree(t, q)
	s := NewServer(q, nil)
	r := s.Router()

	rec := doJSON(t, r, "PATCH", "/queue/tracks/"+c.ID, map[string]any{
		"prevId": a.ID,
		"nextId": b.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	entries, _ := q.Snapshot()
	assert.Equal(t, []string{"track-a", "track-c", "track-b"}, orderOfTracks(entries))

	rec = doJSON(t, r, "PATCH", "/queue/tracks/nope", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_HandleVoteTrack(t *testing.T) {
	q := newTestQueue(nil)
	a, _, _ := addThree(t, q)
	s := NewServer(q, nil)
	r := s.Router()

	rec := doJSON(t, r, "POST", "/queue/tracks/"+a.ID+"/vote", map[string]any{"direction": "up"})
	require.Equal(t, http.StatusOK, rec.Code)
	var entry Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, 1, entry.Votes)

	rec = doJSON(t, r, "POST", "/queue/tracks/"+a.ID+"/vote", map[string]any{"direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, "POST", "/queue/tracks/nope/vote", map[string]any{"direction": "up"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_HandleSetPlaying(t *testing.T) {
	q := newTestQueue(nil)
	a, b, _ := addThree(t, q)
	s := NewServer(q, nil)
	r := s.Router()

	require.Equal(t, http.StatusOK, doJSON(t, r, "POST", "/queue/tracks/"+a.ID+"/playing", nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, r, "POST", "/queue/tracks/"+b.ID+"/playing", nil).Code)

	entries, _ := q.Snapshot()
	for _, e := range entries {
		assert.Equal(t, e.ID == b.ID, e.IsPlaying)
	}

	assert.Equal(t, http.StatusNotFound, doJSON(t, r, "POST", "/queue/tracks/nope/playing", nil).Code)
}

func TestServer_HandleRemoveTrack(t *testing.T) {
	q := newTestQueue(nil)
	a, _, _ := addThree(t, q)
	s := NewServer(q, nil)
	r := s.Router()

	assert.Equal(t, http.StatusNoContent, doJSON(t, r, "DELETE", "/queue/tracks/"+a.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, "DELETE", "/queue/tracks/"+a.ID, nil).Code)

	entries, _ := q.Snapshot()
	assert.Len(t, entries, 2)
}

func TestServer_HandleGetQueue(t *testing.T) {
	q := newTestQueue(nil)
	addThree(t, q)
	s := NewServer(q, nil)

	rec := doJSON(t, s.Router(), "GET", "/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		Version uint64  `json:"version"`
		Entries []Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, uint64(3), res.Version)
	assert.Len(t, res.Entries, 3)
}

// Every successful mutation publishes a convergent event on the broadcast
// channel; the payload carries the full snapshot and commit version.
func TestServer_PublishesChangeEvents(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "broadcast")
	defer sub.Close()
	ch := sub.Channel()
	time.Sleep(20 * time.Millisecond)

	q := newTestQueue(nil)
	s := NewServer(q, rdb)
	rec := doJSON(t, s.Router(), "POST", "/queue/tracks", map[string]any{
		"track": Track{ID: "t1", Title: "Song"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	select {
	case msg := <-ch:
		var event struct {
			Type    string `json:"type"`
			Version uint64 `json:"version"`
			Payload struct {
				Action  string  `json:"action"`
				Entries []Entry `json:"entries"`
			} `json:"payload"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, "queue.changed", event.Type)
		assert.Equal(t, "track.added", event.Payload.Action)
		assert.Equal(t, uint64(1), event.Version)
		require.Len(t, event.Payload.Entries, 1)
		assert.Equal(t, "t1", event.Payload.Entries[0].Track.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event published on broadcast channel")
	}
}
