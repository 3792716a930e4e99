// Package syncclient keeps a client's view of the shared queue converged
// with the server. It mirrors the last authoritative snapshot, applies user
// mutations optimistically, reverts them on failure, and re-establishes a
// lost connection with capped exponential backoff.
package syncclient

import (
	"encoding/json"
	"time"

	"mixroom/pkg/order"
)

// Track mirrors the wire shape of the server's track metadata.
type Track struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	DurationSec int    `json:"durationSec"`
	Genre       string `json:"genre,omitempty"`
	CoverURL    string `json:"coverUrl,omitempty"`
}

// Entry mirrors the wire shape of one queued track.
type Entry struct {
	ID        string     `json:"id"`
	Track     Track      `json:"track"`
	Key       order.Key  `json:"key"`
	Votes     int        `json:"votes"`
	AddedBy   string     `json:"addedBy"`
	IsPlaying bool       `json:"isPlaying"`
	CreatedAt time.Time  `json:"createdAt"`
	PlayedAt  *time.Time `json:"playedAt,omitempty"`
}

// frame is one message on the realtime channel, distinguished by Type from
// keep-alive traffic.
type frame struct {
	Type    string          `json:"type"`
	Version uint64          `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

type statePayload struct {
	Entries []Entry `json:"entries"`
}
