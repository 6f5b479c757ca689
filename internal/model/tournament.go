package model

import "time"

// Tournament status values.  The backend sends one of these explicitly; when
// it does not, the listing layer derives one from the clock.
const (
	StatusUpcoming  = "UPCOMING"
	StatusOngoing   = "ONGOING"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Tournament is the read-only client view of a backend tournament.
type Tournament struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	Status           string     `json:"status,omitempty"`
	BuyIn            int        `json:"buy_in"`
	TicketQuantity   int        `json:"ticket_quantity"`
	ParticipantCount int        `json:"participant_count"`
	StoreName        string     `json:"store_name,omitempty"`
}

// Participant is one registered player of a tournament.
type Participant struct {
	UserID       int64     `json:"user_id"`
	Nickname     string    `json:"nickname"`
	Phone        string    `json:"phone,omitempty"`
	StoreName    string    `json:"store_name,omitempty"`
	Status       string    `json:"status,omitempty"`
	RegisteredAt time.Time `json:"registered_at,omitempty"`
}

// PlayerMapping is the payload of GET /tournaments/dashboard/player_mapping/.
type PlayerMapping struct {
	TournamentID   int64         `json:"tournament_id"`
	TournamentName string        `json:"tournament_name"`
	TotalPlayers   int           `json:"total_players"`
	Players        []Participant `json:"players"`
}

// HasPlayer reports whether a participant with the given phone or user id is listed.
func (m PlayerMapping) HasPlayer(userID int64, phone string) bool {
	for _, p := range m.Players {
		if (userID != 0 && p.UserID == userID) || (phone != "" && p.Phone == phone) {
			return true
		}
	}
	return false
}

// DashboardStats is the payload of GET /tournaments/dashboard/stats-simple/.
type DashboardStats struct {
	TournamentCount    int `json:"tournament_count"`
	ActiveTournaments  int `json:"active_tournaments"`
	StoreCount         int `json:"store_count"`
	PlayerCount        int `json:"player_count"`
	TodayRegistrations int `json:"today_registrations"`
}
