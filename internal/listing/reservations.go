package listing

import (
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/asl-holdem-bff/internal/model"
)

// Reservation tabs.
const (
	TabUpcoming = "upcoming"
	TabPast     = "past"
)

// Reservation is one tournament a user holds SEAT tickets for.
type Reservation struct {
	TournamentID   int64     `json:"tournament_id"`
	TournamentName string    `json:"tournament_name"`
	StartTime      time.Time `json:"start_time"`
	Status         string    `json:"status"`
	ActiveTickets  int       `json:"active_tickets"`
	UsedTickets    int       `json:"used_tickets"`
	TotalTickets   int       `json:"total_tickets"`
}

// Reservations turns ticket stats into reservations for one tab.  Upcoming
// covers tournaments not yet completed, nearest first; past covers the rest,
// most recent first.  Any other tab returns everything, newest first.
func Reservations(stats model.TicketStats, tab string, c Clock) []Reservation {
	tab = strings.ToLower(strings.TrimSpace(tab))
	out := make([]Reservation, 0, len(stats.Tournaments))
	for _, ts := range stats.Tournaments {
		status := DeriveStatus(model.Tournament{StartTime: ts.TournamentStartTime}, c)
		past := status == model.StatusCompleted
		switch {
		case tab == TabUpcoming && past, tab == TabPast && !past:
			continue
		}
		out = append(out, Reservation{
			TournamentID:   ts.TournamentID,
			TournamentName: ts.TournamentName,
			StartTime:      ts.TournamentStartTime,
			Status:         status,
			ActiveTickets:  ts.ActiveTickets,
			UsedTickets:    ts.UsedTickets,
			TotalTickets:   ts.TotalTickets,
		})
	}
	if tab == TabUpcoming {
		sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	}
	return out
}
