package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// broadcastChannel matches the channel the mutation surface publishes on.
const broadcastChannel = "broadcast"

type Server struct {
	hub           *Hub
	rdb           *redis.Client
	ctx           context.Context
	allowedOrigin string
}

func NewServer(hub *Hub, rdb *redis.Client, ctx context.Context, allowedOrigin string) *Server {
	return &Server{
		hub:           hub,
		rdb:           rdb,
		ctx:           ctx,
		allowedOrigin: allowedOrigin,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	return r
}

// RunRedisSubscriber forwards every frame published on the broadcast channel
// to the hub. Redis delivers frames in publish order, so per-session order
// matches commit order end to end.
func (s *Server) RunRedisSubscriber() {
	sub := s.rdb.Subscribe(s.ctx, broadcastChannel)
	defer sub.Close()

	ch := sub.Channel()
	for msg := range ch {
		s.hub.broadcast <- []byte(msg.Payload)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"service": "mixroom-realtime",
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if s.allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == s.allowedOrigin
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("mixroom: ws upgrade: %v", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.hub.register <- client

	welcome := map[string]any{
		"type": "welcome",
		"now":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.Marshal(welcome); err == nil {
		client.send <- b
	}

	go client.writePump()
	go client.readPump()
}
