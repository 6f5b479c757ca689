// Package queue defines message payloads exchanged over the message broker
// and the consumer that journals them.
package queue

// PlayerRegisteredQueue carries one message per successful tournament check-in.
const PlayerRegisteredQueue = "player.registered"

// Check-in sources.
const (
	SourcePhone = "phone"
	SourceQR    = "qr"
)

// CheckinEvent is published when a store registers a player into a
// tournament.  It carries enough for the journal and for downstream
// notification without another backend round trip.
type CheckinEvent struct {
	EventID        string `json:"event_id"`
	TournamentID   int64  `json:"tournament_id"`
	TournamentName string `json:"tournament_name,omitempty"`
	UserID         int64  `json:"user_id,omitempty"`
	Phone          string `json:"phone"`
	Nickname       string `json:"nickname,omitempty"`
	NewUser        bool   `json:"new_user"`
	Source         string `json:"source"`
	StoreUserID    int64  `json:"store_user_id,omitempty"`
	RegisteredAt   string `json:"registered_at"`
}
