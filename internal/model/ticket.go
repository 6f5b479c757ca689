package model

import "time"

// TicketBalance is a user's SEAT ticket count for one tournament, as returned
// by GET /store/user-tickets/.
type TicketBalance struct {
	UserID        int64 `json:"user_id"`
	TournamentID  int64 `json:"tournament_id"`
	ActiveTickets int   `json:"active_tickets"`
	UsedTickets   int   `json:"used_tickets"`
	TotalTickets  int   `json:"total_tickets"`
}

// TicketGrant is the body of POST /store/grant-ticket/.
type TicketGrant struct {
	UserID       int64  `json:"user_id"`
	TournamentID int64  `json:"tournament_id"`
	Quantity     int    `json:"quantity"`
	Memo         string `json:"memo,omitempty"`
}

// TicketStats is the payload of GET /seats/tickets/user_stats/.
type TicketStats struct {
	Overall     TicketTotals           `json:"overall_stats"`
	Tournaments []TournamentTicketStat `json:"tournament_stats"`
}

type TicketTotals struct {
	ActiveTickets int `json:"active_tickets"`
	UsedTickets   int `json:"used_tickets"`
	TotalTickets  int `json:"total_tickets"`
}

type TournamentTicketStat struct {
	TournamentID        int64     `json:"tournament_id"`
	TournamentName      string    `json:"tournament_name"`
	TournamentStartTime time.Time `json:"tournament_start_time"`
	ActiveTickets       int       `json:"active_tickets"`
	UsedTickets         int       `json:"used_tickets"`
	TotalTickets        int       `json:"total_tickets"`
}
