package model

// PlayerCandidate is the transient form state of one registration attempt.
// Once a phone search resolves, exactly one of FoundUser != nil and
// IsNewUser holds.
type PlayerCandidate struct {
	Phone      string         `json:"phone"`
	Username   string         `json:"username"`
	Email      string         `json:"email"`
	Nickname   string         `json:"nickname"`
	FoundUser  *User          `json:"found_user,omitempty"`
	IsNewUser  bool           `json:"is_new_user"`
	TicketInfo *TicketBalance `json:"ticket_info,omitempty"`
}

// RegistrationRequest is the body of POST /store/register-player/.  Existing
// users are referenced by UserID; new users carry their profile fields.
type RegistrationRequest struct {
	TournamentID int64  `json:"tournament_id"`
	PhoneNumber  string `json:"phone_number"`
	UserID       int64  `json:"user_id,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	Nickname     string `json:"nickname,omitempty"`
}

// RegistrationResult is the backend's answer to a registration.
type RegistrationResult struct {
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	Participant *Participant `json:"participant,omitempty"`
}
