package playlist

import (
	"time"

	"mixroom/pkg/order"
)

// Track is the catalogue metadata an entry carries. The catalogue owns
// tracks; the queue only references them, so removing an entry never
// destroys its track.
type Track struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	DurationSec int    `json:"durationSec"`
	Genre       string `json:"genre,omitempty"`
	CoverURL    string `json:"coverUrl,omitempty"`
}

// Entry is one queued track. A track appears at most once in the queue and
// at most one entry is playing at any time.
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

// Direction is a vote direction.
type Direction string

const (
	VoteUp   Direction = "up"
	VoteDown Direction = "down"
)
