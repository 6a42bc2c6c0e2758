package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kutumb/pkg/domain"
	"kutumb/pkg/platform/sentinel"
)

// Schema creates the visit_requests table. Applied at startup when a
// database is configured.
const Schema = `
CREATE TABLE IF NOT EXISTS visit_requests (
	id                  UUID PRIMARY KEY,
	citizen_ref         UUID,
	registration_ref    UUID,
	preferred_date      TIMESTAMPTZ NOT NULL,
	preferred_time_slot TEXT NOT NULL,
	visit_type          TEXT NOT NULL,
	status              TEXT NOT NULL,
	notes               TEXT NOT NULL DEFAULT '',
	bound_visit         UUID,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_visit_requests_status ON visit_requests (status);
CREATE INDEX IF NOT EXISTS idx_visit_requests_citizen ON visit_requests (citizen_ref);
`

// PostgresStore persists visit requests in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, citizen_ref, registration_ref, preferred_date, preferred_time_slot,
	visit_type, status, notes, bound_visit, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, r VisitRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visit_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID.String(), uuidValue(r.CitizenRef), uuidValue(r.RegistrationRef),
		r.PreferredDate, string(r.PreferredTimeSlot),
		string(r.VisitType), string(r.Status), r.Notes, uuidValue(r.BoundVisit),
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert visit request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.VisitRequestID) (VisitRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM visit_requests WHERE id = $1`, id.String())
	r, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VisitRequest{}, sentinel.ErrNotFound
		}
		return VisitRequest{}, fmt.Errorf("get visit request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]VisitRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM visit_requests WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != nil {
		query += ` AND status = ` + arg(string(*filter.Status))
	}
	if filter.CitizenRef != nil {
		query += ` AND citizen_ref = ` + arg(filter.CitizenRef.String())
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list visit requests: %w", err)
	}
	defer rows.Close()

	var out []VisitRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Transition(ctx context.Context, r VisitRequest, from RequestStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE visit_requests SET
			citizen_ref = $1, status = $2, notes = $3, bound_visit = $4, updated_at = $5
		WHERE id = $6 AND status = $7`,
		uuidValue(r.CitizenRef), string(r.Status), r.Notes, uuidValue(r.BoundVisit),
		r.UpdatedAt, r.ID.String(), string(from),
	)
	if err != nil {
		return fmt.Errorf("transition visit request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition visit request: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, r.ID); getErr != nil {
			return getErr
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Counts(ctx context.Context) (map[RequestStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM visit_requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count visit requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[RequestStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan request counts: %w", err)
		}
		counts[RequestStatus(status)] = n
	}
	return counts, rows.Err()
}

// uuidValue turns a nullable typed ID into a driver value.
func uuidValue[T interface{ String() string }](ref *T) any {
	if ref == nil {
		return nil
	}
	return (*ref).String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (VisitRequest, error) {
	var (
		r               VisitRequest
		id              string
		citizenRef      sql.NullString
		registrationRef sql.NullString
		slot, visitType string
		status          string
		boundVisit      sql.NullString
	)
	err := row.Scan(&id, &citizenRef, &registrationRef, &r.PreferredDate, &slot,
		&visitType, &status, &r.Notes, &boundVisit, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return VisitRequest{}, err
	}

	if r.ID, err = domain.ParseVisitRequestID(id); err != nil {
		return VisitRequest{}, fmt.Errorf("parse request id: %w", err)
	}
	if citizenRef.Valid {
		ref, err := domain.ParseCitizenID(citizenRef.String)
		if err != nil {
			return VisitRequest{}, fmt.Errorf("parse citizen ref: %w", err)
		}
		r.CitizenRef = &ref
	}
	if registrationRef.Valid {
		ref, err := domain.ParseRegistrationID(registrationRef.String)
		if err != nil {
			return VisitRequest{}, fmt.Errorf("parse registration ref: %w", err)
		}
		r.RegistrationRef = &ref
	}
	if boundVisit.Valid {
		ref, err := domain.ParseVisitID(boundVisit.String)
		if err != nil {
			return VisitRequest{}, fmt.Errorf("parse bound visit: %w", err)
		}
		r.BoundVisit = &ref
	}

	r.PreferredTimeSlot = TimeSlot(slot)
	r.VisitType = domain.VisitType(visitType)
	r.Status = RequestStatus(status)
	return r, nil
}
