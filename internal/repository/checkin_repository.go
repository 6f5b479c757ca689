package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/asl-holdem-bff/internal/queue"
)

const checkinSchema = `CREATE TABLE IF NOT EXISTS checkins (
	id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
	event_id        VARCHAR(64)  NOT NULL,
	tournament_id   BIGINT       NOT NULL,
	tournament_name VARCHAR(255) NOT NULL DEFAULT '',
	user_id         BIGINT       NOT NULL DEFAULT 0,
	phone           VARCHAR(32)  NOT NULL DEFAULT '',
	nickname        VARCHAR(255) NOT NULL DEFAULT '',
	new_user        TINYINT(1)   NOT NULL DEFAULT 0,
	source          VARCHAR(16)  NOT NULL,
	store_user_id   BIGINT       NOT NULL DEFAULT 0,
	registered_at   DATETIME     NOT NULL,
	UNIQUE KEY uq_checkins_event (event_id),
	KEY idx_checkins_tournament (tournament_id, registered_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// Checkin is one journaled registration.
type Checkin struct {
	ID             uint64    `json:"id"`
	EventID        string    `json:"event_id"`
	TournamentID   int64     `json:"tournament_id"`
	TournamentName string    `json:"tournament_name"`
	UserID         int64     `json:"user_id"`
	Phone          string    `json:"phone"`
	Nickname       string    `json:"nickname"`
	NewUser        bool      `json:"new_user"`
	Source         string    `json:"source"`
	StoreUserID    int64     `json:"store_user_id"`
	RegisteredAt   time.Time `json:"registered_at"`
}

// CheckinRepo journals check-in events in MySQL.
type CheckinRepo struct{ DB *sql.DB }

func NewCheckinRepo(db *sql.DB) *CheckinRepo { return &CheckinRepo{DB: db} }

// EnsureSchema creates the checkins table when it is missing.
func (r *CheckinRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, checkinSchema)
	return err
}

// Insert stores one check-in.  A redelivered event id yields ErrDuplicate.
func (r *CheckinRepo) Insert(ctx context.Context, ev queue.CheckinEvent) error {
	at, err := time.Parse(time.RFC3339, ev.RegisteredAt)
	if err != nil {
		at = time.Now().UTC()
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT IGNORE INTO checkins
		 (event_id, tournament_id, tournament_name, user_id, phone, nickname, new_user, source, store_user_id, registered_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		ev.EventID, ev.TournamentID, ev.TournamentName, ev.UserID, ev.Phone, ev.Nickname, ev.NewUser, ev.Source, ev.StoreUserID, at.UTC())
	if err != nil {
		return fmt.Errorf("insert checkin: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicate
	}
	return nil
}

// Record satisfies queue.Sink.  Duplicates are acknowledged silently.
func (r *CheckinRepo) Record(ctx context.Context, ev queue.CheckinEvent) error {
	if err := r.Insert(ctx, ev); err != nil && !errors.Is(err, ErrDuplicate) {
		return err
	}
	return nil
}

// ListRecent returns the newest check-ins, optionally for one tournament.
func (r *CheckinRepo) ListRecent(ctx context.Context, tournamentID int64, limit int) ([]Checkin, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, event_id, tournament_id, tournament_name, user_id, phone, nickname, new_user, source, store_user_id, registered_at
		FROM checkins`
	args := []interface{}{}
	if tournamentID > 0 {
		query += " WHERE tournament_id=?"
		args = append(args, tournamentID)
	}
	query += " ORDER BY registered_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Checkin
	for rows.Next() {
		var c Checkin
		if err := rows.Scan(&c.ID, &c.EventID, &c.TournamentID, &c.TournamentName, &c.UserID, &c.Phone,
			&c.Nickname, &c.NewUser, &c.Source, &c.StoreUserID, &c.RegisteredAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
