// Package registration drives the store-side flow that turns a phone number
// or a scanned QR code into a tournament participant.  The flow is a small
// state machine fed by discrete events, one instance per logged-in session.
package registration

import (
	"errors"
	"strings"

	"github.com/iliyamo/asl-holdem-bff/internal/model"
)

// State of one registration attempt.
type State string

const (
	StateIdle       State = "IDLE"
	StateSearching  State = "SEARCHING"
	StateFound      State = "FOUND"
	StateNotFound   State = "NOT_FOUND"
	StateSubmitting State = "SUBMITTING"
	StateSuccess    State = "SUCCESS"
	StateError      State = "ERROR"
)

// Outcome of the most recent submission.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeError   = "ERROR"
)

var (
	ErrNoTournament = errors.New("select a tournament first")
	ErrBusy         = errors.New("a registration is already being submitted")
	ErrNoPlayer     = errors.New("no player selected")
	ErrClosed       = errors.New("registration workflow closed")
	ErrSuperseded   = errors.New("scan superseded by a newer lookup")
)

// FieldError is a client-side validation failure bound to one input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned by Submit when the form is incomplete.  No
// backend call has been made when it is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "invalid registration: " + strings.Join(msgs, "; ")
}

// Snapshot is a copy of the workflow state safe to hand out.
type Snapshot struct {
	State          State                 `json:"state"`
	TournamentID   int64                 `json:"tournament_id,omitempty"`
	Candidate      model.PlayerCandidate `json:"candidate"`
	CanParticipate *bool                 `json:"can_participate,omitempty"`
	Message        string                `json:"message,omitempty"`
	Outcome        string                `json:"outcome,omitempty"`
	FieldErrors    []FieldError          `json:"field_errors,omitempty"`
	Players        *model.PlayerMapping  `json:"players,omitempty"`
}

// Fields carries edits to the new-user form.  Nil leaves a field unchanged.
type Fields struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Nickname *string `json:"nickname"`
}
