package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"grantwell/internal/models"
)

// ErrNotFound is returned when a grant or event row does not exist.
var ErrNotFound = errors.New("not found")

// Postgres wraps pgxpool for persistence of grants and compliance events.
type Postgres struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// GetGrant fetches the subset of a grant row this service reads.
func (s *Postgres) GetGrant(ctx context.Context, id string) (models.Grant, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, agency, title, status, award_start, end_date, narrative_cadence, created_at, updated_at
		FROM grants WHERE id = $1
	`, id)
	g, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Grant{}, fmt.Errorf("grant %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Grant{}, fmt.Errorf("scan grant: %w", err)
	}
	return g, nil
}

// ListGrants returns all grants, newest first. The sweeper and the closeout
// pending view iterate this; agencies hold at most a few dozen grants so no
// pagination is needed.
func (s *Postgres) ListGrants(ctx context.Context) ([]models.Grant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, agency, title, status, award_start, end_date, narrative_cadence, created_at, updated_at
		FROM grants ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var grants []models.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// ListEvents returns a grant's compliance events ascending by due date.
func (s *Postgres) ListEvents(ctx context.Context, grantID string) ([]models.ComplianceEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, grant_id, event_type, due_on, status, submitted_on, notes, reminded_at, created_at, updated_at
		FROM compliance_events WHERE grant_id = $1 ORDER BY due_on ASC
	`, grantID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// InsertEvents bulk-inserts obligation rows. The unique key on
// (grant_id, event_type, due_on) plus ON CONFLICT DO NOTHING makes the insert
// safe against a concurrent generation pass for the same grant. Returns the
// number of rows actually written.
func (s *Postgres) InsertEvents(ctx context.Context, events []models.ComplianceEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	now := time.Now().UTC()
	inserted := 0
	for _, e := range events {
		id := e.ID
		if id == "" {
			id = uuid.New().String()
		}
		status := e.Status
		if status == "" {
			status = models.StatusDue
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO compliance_events (id, grant_id, event_type, due_on, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			ON CONFLICT (grant_id, event_type, due_on) DO NOTHING
		`, id, e.GrantID, e.Type, e.DueOn, status, e.Notes, now)
		if err != nil {
			return 0, fmt.Errorf("insert event %s: %w", models.EventKey(e.Type, e.DueOn), err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// SweepLate flips a grant's overdue Due events to Late. Submitted rows are
// terminal and never touched.
func (s *Postgres) SweepLate(ctx context.Context, grantID string, today time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE compliance_events
		SET status = $3, updated_at = NOW()
		WHERE grant_id = $1 AND status = $4 AND due_on < $2
	`, grantID, today, models.StatusLate, models.StatusDue)
	if err != nil {
		return 0, fmt.Errorf("sweep late: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SweepLateAll is the cross-grant variant driven by the sweeper binary.
func (s *Postgres) SweepLateAll(ctx context.Context, today time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE compliance_events
		SET status = $2, updated_at = NOW()
		WHERE status = $3 AND due_on < $1
	`, today, models.StatusLate, models.StatusDue)
	if err != nil {
		return 0, fmt.Errorf("sweep late all: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkSubmitted records a submission. Last write wins; there is deliberately
// no guard against re-submission or a submission date before the due date.
func (s *Postgres) MarkSubmitted(ctx context.Context, eventID string, submittedOn time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE compliance_events
		SET status = $2, submitted_on = $3, updated_at = NOW()
		WHERE id = $1
	`, eventID, models.StatusSubmitted, submittedOn)
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	return nil
}

// CloseoutEventExists checks for a Closeout obligation at the given due date.
func (s *Postgres) CloseoutEventExists(ctx context.Context, grantID string, dueOn time.Time) (bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM compliance_events
		WHERE grant_id = $1 AND event_type = $2 AND due_on = $3
	`, grantID, models.EventCloseout, dueOn).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query closeout event: %w", err)
	}
	return true, nil
}

// InitCloseoutTasks invokes the stored procedure that seeds the grant's
// closeout checklist. The procedure is idempotent on its side.
func (s *Postgres) InitCloseoutTasks(ctx context.Context, grantID string) error {
	if _, err := s.pool.Exec(ctx, `SELECT init_closeout_tasks($1)`, grantID); err != nil {
		return fmt.Errorf("init closeout tasks: %w", err)
	}
	return nil
}

// DueSoon returns Due events with a due date on or before the cutoff that
// have not yet been reminded about.
func (s *Postgres) DueSoon(ctx context.Context, cutoff time.Time) ([]models.ComplianceEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, grant_id, event_type, due_on, status, submitted_on, notes, reminded_at, created_at, updated_at
		FROM compliance_events
		WHERE status = $1 AND due_on <= $2 AND reminded_at IS NULL
		ORDER BY due_on ASC
	`, models.StatusDue, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query due soon: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// MarkReminded stamps an event after its reminder reached the outbox.
func (s *Postgres) MarkReminded(ctx context.Context, eventID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE compliance_events SET reminded_at = $2, updated_at = NOW() WHERE id = $1
	`, eventID, at)
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	return nil
}

func collectEvents(rows pgx.Rows) ([]models.ComplianceEvent, error) {
	events := []models.ComplianceEvent{}
	for rows.Next() {
		var e models.ComplianceEvent
		var submitted pgtype.Date
		var reminded pgtype.Timestamptz
		if err := rows.Scan(&e.ID, &e.GrantID, &e.Type, &e.DueOn, &e.Status, &submitted, &e.Notes, &reminded, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.SubmittedOn = datePtr(submitted)
		e.RemindedAt = timestampPtr(reminded)
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanGrant(row pgx.Row) (models.Grant, error) {
	var g models.Grant
	var awardStart, endDate pgtype.Date
	if err := row.Scan(&g.ID, &g.Agency, &g.Title, &g.Status, &awardStart, &endDate, &g.NarrativeCadence, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return models.Grant{}, err
	}
	g.AwardStart = datePtr(awardStart)
	g.EndDate = datePtr(endDate)
	return g, nil
}

func datePtr(d pgtype.Date) *time.Time {
	if d.Valid {
		t := d.Time
		return &t
	}
	return nil
}

func timestampPtr(ts pgtype.Timestamptz) *time.Time {
	if ts.Valid {
		t := ts.Time
		return &t
	}
	return nil
}
