// Package listing holds the pure predicates applied to fetched lists:
// tournament status derivation, filter and search, store ranking and the
// reservation tabs.  Nothing here performs I/O.
package listing

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/asl-holdem-bff/internal/model"
)

// Filter names accepted by Apply.
const (
	FilterAll       = "all"
	FilterUpcoming  = "upcoming"
	FilterOngoing   = "ongoing"
	FilterCompleted = "completed"
	FilterToday     = "today"
)

// Category names select which backend list is fetched.
const (
	CategoryAll   = "all"
	CategoryStore = "store"
)

var ErrUnknownFilter = errors.New("unknown filter")

// Clock fixes "now", the assumed tournament duration and the calendar used
// for same-day comparisons.
type Clock struct {
	Now      time.Time
	Duration time.Duration
	Location *time.Location
}

func (c Clock) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// DeriveStatus returns the tournament's status.  An explicit backend status
// wins.  Otherwise the status follows from start_time and end_time, or the
// assumed duration when end_time is missing.
func DeriveStatus(t model.Tournament, c Clock) string {
	if s := strings.ToUpper(strings.TrimSpace(t.Status)); s != "" {
		return s
	}
	if c.Now.Before(t.StartTime) {
		return model.StatusUpcoming
	}
	end := t.StartTime.Add(c.Duration)
	if t.EndTime != nil {
		end = *t.EndTime
	}
	if c.Now.Before(end) {
		return model.StatusOngoing
	}
	return model.StatusCompleted
}

// Query is a parsed listing request.
type Query struct {
	Filter string
	Search string
}

// ParseFilter normalizes a filter name.  Empty means all.
func ParseFilter(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterUpcoming, FilterOngoing, FilterCompleted, FilterToday:
		return f, nil
	}
	return "", ErrUnknownFilter
}

// Apply stamps every tournament with its derived status, keeps the ones that
// pass the filter and the search, and sorts by start time, newest first.
// The input slice is not modified.
func Apply(in []model.Tournament, q Query, c Clock) []model.Tournament {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]model.Tournament, 0, len(in))
	for _, t := range in {
		t.Status = DeriveStatus(t, c)
		if !matchFilter(t, q.Filter, c) {
			continue
		}
		if needle != "" && !matchSearch(t, needle) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

func matchFilter(t model.Tournament, filter string, c Clock) bool {
	switch filter {
	case FilterUpcoming:
		return t.Status == model.StatusUpcoming
	case FilterOngoing:
		return t.Status == model.StatusOngoing
	case FilterCompleted:
		return t.Status == model.StatusCompleted
	case FilterToday:
		return sameDay(t.StartTime, c.Now, c.loc())
	}
	return true
}

func matchSearch(t model.Tournament, needle string) bool {
	return strings.Contains(strings.ToLower(t.Name), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle) ||
		strings.Contains(strings.ToLower(t.StoreName), needle)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// EndpointFor maps a category to the backend list it reads.
func EndpointFor(category string) (path string, needsSession bool) {
	if strings.EqualFold(category, CategoryStore) {
		return "/store/tournaments/", true
	}
	return "/tournaments/", false
}
