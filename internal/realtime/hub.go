package realtime

import "log"

// SnapshotFunc produces the frame sent to a session the moment it registers,
// so a newly connected client starts from the full authoritative state.
type SnapshotFunc func() ([]byte, error)

// Hub owns the set of live sessions and fans every broadcast frame out to all
// of them. One run goroutine serializes registration and delivery, so each
// session observes frames in hub submission order; a session that cannot keep
// up is dropped rather than awaited.
type Hub struct {
	// Registered sessions.
	clients map[*Client]bool

	// Inbound frames to fan out to all sessions.
	broadcast chan []byte

	// Register requests from new sessions.
	register chan *Client

	// Unregister requests from dying sessions.
	unregister chan *Client

	snapshot SnapshotFunc
}

func NewHub(snapshot SnapshotFunc) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		snapshot:   snapshot,
	}
}

// Broadcast submits a frame for delivery to every registered session.
func (h *Hub) Broadcast(frame []byte) {
	h.broadcast <- frame
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			if h.snapshot != nil {
				frame, err := h.snapshot()
				if err != nil {
					log.Printf("mixroom: snapshot for new session: %v", err)
					break
				}
				// Queued before any later broadcast, so the session
				// never sees a change before its baseline.
				select {
				case client.send <- frame:
				default:
					h.drop(client)
				}
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case frame := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					h.drop(client)
				}
			}
		}
	}
}

// drop removes a session; its socket is closed and never re-registered. A
// reconnecting client comes back as a brand-new session.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	_ = client.conn.Close()
}
