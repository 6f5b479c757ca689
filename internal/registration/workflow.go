package registration

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/asl-holdem-bff/internal/apiclient"
	"github.com/iliyamo/asl-holdem-bff/internal/model"
	"github.com/iliyamo/asl-holdem-bff/internal/queue"
	"github.com/iliyamo/asl-holdem-bff/internal/scanner"
)

// Backend is the slice of the tournament API the workflow calls.
// *apiclient.Client satisfies it.
type Backend interface {
	SearchUser(ctx context.Context, phone string) (*model.User, bool, error)
	UserTickets(ctx context.Context, userID, tournamentID int64) (*model.TicketBalance, error)
	GrantTicket(ctx context.Context, g model.TicketGrant) (*model.TicketBalance, error)
	RegisterPlayer(ctx context.Context, r model.RegistrationRequest) (*model.RegistrationResult, error)
	ScanQRCode(ctx context.Context, payload string) (*model.User, error)
	PlayerMapping(ctx context.Context, tournamentID int64) (*model.PlayerMapping, error)
}

// Publisher receives check-in events after successful registrations.
type Publisher interface {
	PublishCheckin(ctx context.Context, ev queue.CheckinEvent) error
}

// Options tune a Workflow.
type Options struct {
	Debounce    time.Duration // quiet period before a phone search
	MinDigits   int           // digits needed before a phone search
	StoreUserID int64         // the store account driving the workflow, for events
	Publisher   Publisher
	Logger      *zap.Logger
	// OnSettled runs after every asynchronous search settles, with the
	// resulting snapshot, and again once a found player's ticket balance
	// arrives.  Used by tests and by server-sent refreshes.
	OnSettled func(Snapshot)

	after afterFunc
	now   func() time.Time
}

// Workflow is one registration desk.  All methods are safe for concurrent use.
type Workflow struct {
	api  Backend
	opts Options
	log  *zap.Logger
	deb  *debouncer
	base context.Context
	stop context.CancelFunc

	mu           sync.Mutex
	state        State
	gen          uint64 // bumped on every phone change; stale searches compare against it
	tournamentID int64
	buyIn        int
	cand         model.PlayerCandidate
	message      string
	outcome      string
	fieldErrs    []FieldError
	players      *model.PlayerMapping
	source       string
	closed       bool
}

func New(api Backend, opts Options) *Workflow {
	if opts.Debounce <= 0 {
		opts.Debounce = time.Second
	}
	if opts.MinDigits <= 0 {
		opts.MinDigits = 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	base, stop := context.WithCancel(context.Background())
	return &Workflow{
		api:   api,
		opts:  opts,
		log:   opts.Logger.Named("registration"),
		deb:   newDebouncer(opts.Debounce, opts.after),
		base:  base,
		stop:  stop,
		state: StateIdle,
	}
}

// Close cancels any pending search.  Later events return ErrClosed.
func (w *Workflow) Close() {
	w.deb.Cancel()
	w.stop()
	w.mu.Lock()
	w.closed = true
	w.gen++
	w.mu.Unlock()
}

// Snapshot returns the current state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workflow) snapshotLocked() Snapshot {
	s := Snapshot{
		State:        w.state,
		TournamentID: w.tournamentID,
		Candidate:    w.cand,
		Message:      w.message,
		Outcome:      w.outcome,
		Players:      w.players,
	}
	if w.cand.FoundUser != nil {
		u := *w.cand.FoundUser
		s.Candidate.FoundUser = &u
	}
	if w.cand.TicketInfo != nil {
		t := *w.cand.TicketInfo
		s.Candidate.TicketInfo = &t
		need := w.buyIn
		if need < 1 {
			need = 1
		}
		ok := t.ActiveTickets >= need
		s.CanParticipate = &ok
	}
	if len(w.fieldErrs) > 0 {
		s.FieldErrors = append([]FieldError(nil), w.fieldErrs...)
	}
	return s
}

// PhoneChanged records a keystroke in the phone field.  The previous
// search result is dropped and the single debounce timer restarts; the
// search fires once the field has been quiet for the debounce period and
// holds enough digits.
func (w *Workflow) PhoneChanged(phone string) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.snapshotLocked()
	}
	w.gen++
	gen := w.gen
	w.cand.Phone = phone
	w.cand.FoundUser = nil
	w.cand.IsNewUser = false
	w.cand.TicketInfo = nil
	w.state = StateIdle
	w.message = ""
	w.outcome = ""
	w.fieldErrs = nil
	w.source = queue.SourcePhone

	w.deb.Trigger(func() { w.search(gen, phone) })
	return w.snapshotLocked()
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// search runs on the debounce timer's goroutine.
func (w *Workflow) search(gen uint64, phone string) {
	if countDigits(phone) < w.opts.MinDigits {
		return
	}
	w.mu.Lock()
	if gen != w.gen || w.closed {
		w.mu.Unlock()
		return
	}
	w.state = StateSearching
	w.mu.Unlock()

	ctx := w.base
	user, found, err := w.api.SearchUser(ctx, phone)

	w.mu.Lock()
	if gen != w.gen || w.closed {
		w.mu.Unlock()
		w.log.Debug("discarding stale phone search", zap.String("phone", phone))
		return
	}
	switch {
	case err != nil:
		w.log.Warn("phone search failed", zap.Error(err))
		w.state = StateError
		w.message = apiMessage(err, "user search failed")
		w.cand.FoundUser = nil
		w.cand.IsNewUser = false
	case found:
		w.applyFoundLocked(user)
	default:
		w.state = StateNotFound
		w.cand.FoundUser = nil
		w.cand.IsNewUser = true
		w.cand.Username, w.cand.Email, w.cand.Nickname = "", "", ""
	}
	tid := w.tournamentID
	snap := w.snapshotLocked()
	w.mu.Unlock()
	w.settled(snap)

	if err == nil && found && tid != 0 {
		if snap, ok := w.loadTickets(ctx, gen, user.ID, tid); ok {
			w.settled(snap)
		}
	}
}

func (w *Workflow) settled(s Snapshot) {
	if w.opts.OnSettled != nil {
		w.opts.OnSettled(s)
	}
}

// loadTickets fetches the found player's balance and applies it only if the
// same lookup, tournament and player are still on the desk.
func (w *Workflow) loadTickets(ctx context.Context, gen uint64, userID, tournamentID int64) (Snapshot, bool) {
	tickets := w.fetchTickets(ctx, userID, tournamentID)
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen || w.closed || w.tournamentID != tournamentID ||
		w.cand.FoundUser == nil || w.cand.FoundUser.ID != userID {
		return Snapshot{}, false
	}
	w.cand.TicketInfo = tickets
	return w.snapshotLocked(), true
}

func (w *Workflow) applyFoundLocked(u *model.User) {
	w.state = StateFound
	w.cand.FoundUser = u
	w.cand.IsNewUser = false
	w.cand.Username = u.Username
	w.cand.Email = u.Email
	w.cand.Nickname = u.Nickname
	if w.cand.Phone == "" {
		w.cand.Phone = u.Phone
	}
}

// fetchTickets is best effort: failures are logged and yield nil.
func (w *Workflow) fetchTickets(ctx context.Context, userID, tournamentID int64) *model.TicketBalance {
	t, err := w.api.UserTickets(ctx, userID, tournamentID)
	if err != nil {
		w.log.Info("ticket balance unavailable", zap.Int64("user_id", userID), zap.Int64("tournament_id", tournamentID), zap.Error(err))
		return nil
	}
	return t
}

// fetchPlayers is best effort as well.
func (w *Workflow) fetchPlayers(ctx context.Context, tournamentID int64) *model.PlayerMapping {
	m, err := w.api.PlayerMapping(ctx, tournamentID)
	if err != nil {
		w.log.Info("player list unavailable", zap.Int64("tournament_id", tournamentID), zap.Error(err))
		return nil
	}
	return m
}

// SelectTournament sets the active tournament.  buyIn is the SEAT ticket
// count the tournament asks for, used only for the informational
// CanParticipate flag.  The ticket balance of a found player and the
// tournament's registered players are re-fetched.
func (w *Workflow) SelectTournament(ctx context.Context, tournamentID int64, buyIn int) (Snapshot, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	w.tournamentID = tournamentID
	w.buyIn = buyIn
	w.cand.TicketInfo = nil
	w.players = nil
	w.fieldErrs = nil
	var userID int64
	if w.cand.FoundUser != nil {
		userID = w.cand.FoundUser.ID
	}
	w.mu.Unlock()

	if tournamentID == 0 {
		return w.Snapshot(), nil
	}
	var tickets *model.TicketBalance
	if userID != 0 {
		tickets = w.fetchTickets(ctx, userID, tournamentID)
	}
	players := w.fetchPlayers(ctx, tournamentID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tournamentID == tournamentID {
		if w.cand.FoundUser != nil && w.cand.FoundUser.ID == userID {
			w.cand.TicketInfo = tickets
		}
		w.players = players
	}
	return w.snapshotLocked(), nil
}

// UpdateFields edits the new-user form.
func (w *Workflow) UpdateFields(f Fields) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	if f.Username != nil {
		w.cand.Username = strings.TrimSpace(*f.Username)
	}
	if f.Email != nil {
		w.cand.Email = strings.TrimSpace(*f.Email)
	}
	if f.Nickname != nil {
		w.cand.Nickname = strings.TrimSpace(*f.Nickname)
	}
	return w.snapshotLocked()
}

func (w *Workflow) validateLocked() []FieldError {
	var errs []FieldError
	if w.tournamentID == 0 {
		errs = append(errs, FieldError{Field: "tournament_id", Message: ErrNoTournament.Error()})
	}
	if strings.TrimSpace(w.cand.Phone) == "" {
		errs = append(errs, FieldError{Field: "phone", Message: "phone number is required"})
	} else if w.cand.FoundUser == nil && !w.cand.IsNewUser {
		errs = append(errs, FieldError{Field: "phone", Message: "wait for the phone search to finish"})
	}
	if w.cand.IsNewUser {
		if w.cand.Username == "" {
			errs = append(errs, FieldError{Field: "username", Message: "name is required for new players"})
		}
		if w.cand.Email == "" {
			errs = append(errs, FieldError{Field: "email", Message: "email is required for new players"})
		} else if _, err := mail.ParseAddress(w.cand.Email); err != nil {
			errs = append(errs, FieldError{Field: "email", Message: "email address is not valid"})
		}
	}
	return errs
}

// Submit validates the form and registers the player.  A *ValidationError
// means nothing was sent.  On success the form is cleared and the
// registered-players list is re-read from the backend.  On failure the
// message is kept and the state returns to FOUND or NOT_FOUND.
func (w *Workflow) Submit(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if w.state == StateSubmitting {
		w.mu.Unlock()
		return w.Snapshot(), ErrBusy
	}
	if errs := w.validateLocked(); len(errs) > 0 {
		w.fieldErrs = errs
		w.message = errs[0].Message
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, &ValidationError{Fields: errs}
	}
	prior := StateNotFound
	req := model.RegistrationRequest{TournamentID: w.tournamentID, PhoneNumber: w.cand.Phone}
	if u := w.cand.FoundUser; u != nil {
		prior = StateFound
		req.UserID = u.ID
	} else {
		req.Username = w.cand.Username
		req.Email = w.cand.Email
		req.Nickname = w.cand.Nickname
	}
	cand := w.cand
	source := w.source
	w.state = StateSubmitting
	w.fieldErrs = nil
	w.message = ""
	w.mu.Unlock()

	res, err := w.api.RegisterPlayer(ctx, req)
	if err != nil {
		w.log.Info("registration failed", zap.Int64("tournament_id", req.TournamentID), zap.Error(err))
		w.mu.Lock()
		defer w.mu.Unlock()
		w.state = prior
		w.outcome = OutcomeError
		w.message = apiMessage(err, "registration failed")
		return w.snapshotLocked(), err
	}

	players := w.fetchPlayers(ctx, req.TournamentID)
	w.publish(ctx, req, cand, res, source)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateSuccess
	w.outcome = OutcomeSuccess
	w.message = "player registered"
	w.cand = model.PlayerCandidate{}
	if w.tournamentID == req.TournamentID {
		w.players = players
	}
	w.log.Info("player registered", zap.Int64("tournament_id", req.TournamentID), zap.Int64("user_id", req.UserID), zap.Bool("new_user", req.UserID == 0))
	return w.snapshotLocked(), nil
}

func (w *Workflow) publish(ctx context.Context, req model.RegistrationRequest, cand model.PlayerCandidate, res *model.RegistrationResult, source string) {
	if w.opts.Publisher == nil {
		return
	}
	if source == "" {
		source = queue.SourcePhone
	}
	ev := queue.CheckinEvent{
		EventID:      uuid.NewString(),
		TournamentID: req.TournamentID,
		UserID:       req.UserID,
		Phone:        req.PhoneNumber,
		Nickname:     cand.Nickname,
		NewUser:      req.UserID == 0,
		Source:       source,
		StoreUserID:  w.opts.StoreUserID,
		RegisteredAt: w.opts.now().UTC().Format(time.RFC3339),
	}
	if res != nil && res.Participant != nil && ev.UserID == 0 {
		ev.UserID = res.Participant.UserID
	}
	w.mu.Lock()
	if w.players != nil && w.players.TournamentID == req.TournamentID {
		ev.TournamentName = w.players.TournamentName
	}
	w.mu.Unlock()
	if err := w.opts.Publisher.PublishCheckin(ctx, ev); err != nil {
		w.log.Warn("publish check-in failed", zap.String("event_id", ev.EventID), zap.Error(err))
	}
}

// QRDecoded handles a payload from the scanner.  The backend resolves the
// identity, the workflow moves to FOUND and submits without further input.
// Any pending phone search is abandoned.
func (w *Workflow) QRDecoded(ctx context.Context, raw string) (Snapshot, error) {
	p, perr := scanner.ParsePayload(raw)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if w.state == StateSubmitting {
		w.mu.Unlock()
		return w.Snapshot(), ErrBusy
	}
	if perr != nil {
		defer w.mu.Unlock()
		w.state = StateError
		w.message = "QR code not recognised"
		return w.snapshotLocked(), perr
	}
	w.deb.Cancel()
	w.gen++
	gen := w.gen
	w.state = StateSearching
	w.cand = model.PlayerCandidate{Phone: p.Phone}
	w.message, w.outcome, w.fieldErrs = "", "", nil
	w.source = queue.SourceQR
	w.mu.Unlock()

	user, err := w.api.ScanQRCode(ctx, p.Raw)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if gen != w.gen {
		// the operator moved on to another phone or scan
		snap := w.snapshotLocked()
		w.mu.Unlock()
		return snap, ErrSuperseded
	}
	if err != nil {
		defer w.mu.Unlock()
		w.state = StateError
		w.message = apiMessage(err, "QR code could not be resolved")
		return w.snapshotLocked(), err
	}
	w.cand.Phone = firstNonEmpty(user.Phone, p.Phone)
	w.applyFoundLocked(user)
	tid := w.tournamentID
	w.mu.Unlock()

	snap, err := w.Submit(ctx)
	if err != nil && tid != 0 && snap.State == StateFound {
		if s, ok := w.loadTickets(ctx, gen, user.ID, tid); ok {
			snap = s
		}
	}
	return snap, err
}

// GrantTickets issues SEAT tickets to the found player for the selected
// tournament and refreshes the balance.
func (w *Workflow) GrantTickets(ctx context.Context, quantity int, memo string) (Snapshot, error) {
	w.mu.Lock()
	tid := w.tournamentID
	var userID int64
	if w.cand.FoundUser != nil {
		userID = w.cand.FoundUser.ID
	}
	w.mu.Unlock()
	if tid == 0 {
		return w.Snapshot(), ErrNoTournament
	}
	if userID == 0 {
		return w.Snapshot(), ErrNoPlayer
	}
	bal, err := w.api.GrantTicket(ctx, model.TicketGrant{UserID: userID, TournamentID: tid, Quantity: quantity, Memo: memo})
	if err != nil {
		return w.Snapshot(), err
	}
	if bal == nil || bal.TotalTickets == 0 {
		bal = w.fetchTickets(ctx, userID, tid)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tournamentID == tid && w.cand.FoundUser != nil && w.cand.FoundUser.ID == userID {
		w.cand.TicketInfo = bal
	}
	return w.snapshotLocked(), nil
}

func apiMessage(err error, fallback string) string {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
