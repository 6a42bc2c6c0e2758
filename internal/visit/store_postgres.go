package visit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"kutumb/pkg/domain"
	"kutumb/pkg/platform/sentinel"
)

// Schema creates the visits table. Applied at startup when a database is
// configured.
const Schema = `
CREATE TABLE IF NOT EXISTS visits (
	id                  UUID PRIMARY KEY,
	citizen_id          UUID NOT NULL,
	officer_id          UUID NOT NULL,
	request_ref         UUID,
	scheduled_at        TIMESTAMPTZ NOT NULL,
	visit_type          TEXT NOT NULL,
	status              TEXT NOT NULL,
	notes               TEXT NOT NULL DEFAULT '',
	checkin_at          TIMESTAMPTZ,
	completed_at        TIMESTAMPTZ,
	approved_at         TIMESTAMPTZ,
	approval_notes      TEXT NOT NULL DEFAULT '',
	cancellation        JSONB,
	risk_score          INTEGER,
	location_unverified BOOLEAN NOT NULL DEFAULT FALSE,
	timeline            JSONB NOT NULL DEFAULT '[]',
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_visits_officer_status ON visits (officer_id, status);
CREATE INDEX IF NOT EXISTS idx_visits_scheduled_at ON visits (scheduled_at);
`

// PostgresStore persists visits in PostgreSQL. Transitions rely on a
// conditional UPDATE so stale writers observe a conflict rather than
// overwriting a newer state.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const visitColumns = `id, citizen_id, officer_id, request_ref, scheduled_at, visit_type, status,
	notes, checkin_at, completed_at, approved_at, approval_notes, cancellation,
	risk_score, location_unverified, timeline, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, v Visit) error {
	timeline, cancellation, err := marshalSubrecords(v)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO visits (`+visitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		v.ID.String(), v.CitizenID.String(), v.OfficerID.String(), requestRefValue(v.RequestRef),
		v.ScheduledAt, string(v.VisitType), string(v.Status),
		v.Notes, v.CheckinAt, v.CompletedAt, v.ApprovedAt, v.ApprovalNotes, cancellation,
		v.RiskScore, v.LocationUnverified, timeline, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.VisitID) (Visit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE id = $1`, id.String())
	v, err := scanVisit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Visit{}, sentinel.ErrNotFound
		}
		return Visit{}, fmt.Errorf("get visit: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != nil {
		query += ` AND status = ` + arg(string(*filter.Status))
	}
	if filter.OfficerID != nil {
		query += ` AND officer_id = ` + arg(filter.OfficerID.String())
	}
	if filter.CitizenID != nil {
		query += ` AND citizen_id = ` + arg(filter.CitizenID.String())
	}
	if filter.From != nil {
		query += ` AND scheduled_at >= ` + arg(*filter.From)
	}
	if filter.To != nil {
		query += ` AND scheduled_at <= ` + arg(*filter.To)
	}
	query += ` ORDER BY scheduled_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Transition(ctx context.Context, v Visit, from Status) error {
	timeline, cancellation, err := marshalSubrecords(v)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE visits SET
			status = $1, notes = $2, checkin_at = $3, completed_at = $4,
			approved_at = $5, approval_notes = $6, cancellation = $7,
			risk_score = $8, location_unverified = $9, timeline = $10,
			scheduled_at = $11, updated_at = $12
		WHERE id = $13 AND status = $14`,
		string(v.Status), v.Notes, v.CheckinAt, v.CompletedAt,
		v.ApprovedAt, v.ApprovalNotes, cancellation,
		v.RiskScore, v.LocationUnverified, timeline,
		v.ScheduledAt, v.UpdatedAt,
		v.ID.String(), string(from),
	)
	if err != nil {
		return fmt.Errorf("transition visit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition visit: %w", err)
	}
	if affected == 0 {
		// Either the visit is gone or its status moved under us.
		if _, getErr := s.Get(ctx, v.ID); getErr != nil {
			return getErr
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) HasInProgress(ctx context.Context, officer domain.OfficerID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM visits WHERE officer_id = $1 AND status = $2)`,
		officer.String(), string(StatusInProgress),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check in-progress visits: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM visits GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count visits: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan visit counts: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func marshalSubrecords(v Visit) (timeline []byte, cancellation any, err error) {
	entries := v.Timeline
	if entries == nil {
		entries = []TimelineEntry{}
	}
	timeline, err = json.Marshal(entries)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal timeline: %w", err)
	}
	if v.Cancellation != nil {
		raw, err := json.Marshal(v.Cancellation)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal cancellation: %w", err)
		}
		cancellation = raw
	}
	return timeline, cancellation, nil
}

func requestRefValue(ref *domain.VisitRequestID) any {
	if ref == nil {
		return nil
	}
	return ref.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (Visit, error) {
	var (
		v                Visit
		id, citizen, off string
		requestRef       sql.NullString
		visitType        string
		status           string
		checkinAt        sql.NullTime
		completedAt      sql.NullTime
		approvedAt       sql.NullTime
		cancellation     []byte
		riskScore        sql.NullInt64
		timeline         []byte
	)
	err := row.Scan(&id, &citizen, &off, &requestRef, &v.ScheduledAt, &visitType, &status,
		&v.Notes, &checkinAt, &completedAt, &approvedAt, &v.ApprovalNotes, &cancellation,
		&riskScore, &v.LocationUnverified, &timeline, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return Visit{}, err
	}

	if v.ID, err = domain.ParseVisitID(id); err != nil {
		return Visit{}, fmt.Errorf("parse visit id: %w", err)
	}
	if v.CitizenID, err = domain.ParseCitizenID(citizen); err != nil {
		return Visit{}, fmt.Errorf("parse citizen id: %w", err)
	}
	if v.OfficerID, err = domain.ParseOfficerID(off); err != nil {
		return Visit{}, fmt.Errorf("parse officer id: %w", err)
	}
	if requestRef.Valid {
		ref, err := domain.ParseVisitRequestID(requestRef.String)
		if err != nil {
			return Visit{}, fmt.Errorf("parse request ref: %w", err)
		}
		v.RequestRef = &ref
	}

	v.VisitType = domain.VisitType(visitType)
	v.Status = Status(status)
	v.CheckinAt = nullTimePtr(checkinAt)
	v.CompletedAt = nullTimePtr(completedAt)
	v.ApprovedAt = nullTimePtr(approvedAt)
	if riskScore.Valid {
		score := int(riskScore.Int64)
		v.RiskScore = &score
	}
	if len(cancellation) > 0 {
		var record CancellationRecord
		if err := json.Unmarshal(cancellation, &record); err != nil {
			return Visit{}, fmt.Errorf("unmarshal cancellation: %w", err)
		}
		v.Cancellation = &record
	}
	if err := json.Unmarshal(timeline, &v.Timeline); err != nil {
		return Visit{}, fmt.Errorf("unmarshal timeline: %w", err)
	}
	return v, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	out := t.Time
	return &out
}
