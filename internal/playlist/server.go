package playlist

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// broadcastChannel is the Redis pub/sub channel the realtime layer listens on.
const broadcastChannel = "broadcast"

// Server exposes the queue's mutation surface over HTTP. Every successful
// mutation publishes a queue.changed event carrying the mutated entry and the
// full versioned snapshot, so any receiver can converge without event replay.
type Server struct {
	queue *Queue
	rdb   *redis.Client
}

func NewServer(queue *Queue, rdb *redis.Client) *Server {
	return &Server{
		queue: queue,
		rdb:   rdb,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/queue", s.handleGetQueue)

	r.Post("/queue/tracks", s.handleAddTrack)
	r.Patch("/queue/tracks/{entryId}", s.handleReorderTrack)
	r.Delete("/queue/tracks/{entryId}", s.handleRemoveTrack)
	r.Post("/queue/tracks/{entryId}/vote", s.handleVoteTrack)
	r.Post("/queue/tracks/{entryId}/playing", s.handleSetPlaying)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "mixroom",
	})
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	entries, version := s.queue.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"version": version,
		"entries": entries,
	})
}

func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Track   Track  `json:"track"`
		AddedBy string `json:"addedBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Track.ID == "" {
		writeError(w, http.StatusBadRequest, "track.id is required")
		return
	}
	if body.Track.Title == "" || len(body.Track.Title) > 300 {
		writeError(w, http.StatusBadRequest, "track.title must be between 1 and 300 characters")
		return
	}

	entry, err := s.queue.Add(r.Context(), body.Track, body.AddedBy)
	if err != nil {
		writeQueueError(w, err)
		return
	}

	s.publishChange(r.Context(), "track.added", entry)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleReorderTrack(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryId")

	var body struct {
		PrevID *string `json:"prevId"`
		NextID *string `json:"nextId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	entry, err := s.queue.Reorder(r.Context(), entryID, body.PrevID, body.NextID)
	if err != nil {
		writeQueueError(w, err)
		return
	}

	s.publishChange(r.Context(), "track.moved", entry)
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleVoteTrack(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryId")

	var body struct {
		Direction Direction `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Direction != VoteUp && body.Direction != VoteDown {
		writeError(w, http.StatusBadRequest, `direction must be "up" or "down"`)
		return
	}

	entry, err := s.queue.Vote(r.Context(), entryID, body.Direction)
	if err != nil {
		writeQueueError(w, err)
		return
	}

	s.publishChange(r.Context(), "track.voted", entry)
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleSetPlaying(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryId")

	entry, err := s.queue.SetPlaying(r.Context(), entryID)
	if err != nil {
		writeQueueError(w, err)
		return
	}

	s.publishChange(r.Context(), "track.playing", entry)
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleRemoveTrack(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryId")

	if err := s.queue.Remove(r.Context(), entryID); err != nil {
		writeQueueError(w, err)
		return
	}

	s.publishChange(r.Context(), "track.removed", nil)
	w.WriteHeader(http.StatusNoContent)
}

// publishChange pushes a queue.changed event on the broadcast channel. The
// payload always carries the full snapshot; a delivery failure is logged and
// never fails the mutation that triggered it.
func (s *Server) publishChange(ctx context.Context, action string, entry any) {
	if s.rdb == nil {
		return
	}
	entries, version := s.queue.Snapshot()
	event := map[string]any{
		"type":    "queue.changed",
		"version": version,
		"payload": map[string]any{
			"action":  action,
			"entry":   entry,
			"entries": entries,
		},
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("mixroom: marshal event: %v", err)
		return
	}
	if err := s.rdb.Publish(ctx, broadcastChannel, string(data)).Err(); err != nil {
		log.Printf("mixroom: publish event: %v", err)
	}
}

// SnapshotFrame encodes the frame the hub pushes to a session the moment it
// registers, so a fresh client does not wait for the next mutation.
func SnapshotFrame(q *Queue) ([]byte, error) {
	entries, version := q.Snapshot()
	return json.Marshal(map[string]any{
		"type":    "queue.snapshot",
		"version": version,
		"payload": map[string]any{
			"entries": entries,
		},
	})
}
