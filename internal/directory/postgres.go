package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kutumb/internal/geo"
	"kutumb/pkg/domain"
	"kutumb/pkg/platform/sentinel"
)

// Schema creates the roster tables. Applied at startup when a database is
// configured.
const Schema = `
CREATE TABLE IF NOT EXISTS citizens (
	id        UUID PRIMARY KEY,
	name      TEXT NOT NULL,
	address   TEXT NOT NULL DEFAULT '',
	phone     TEXT NOT NULL DEFAULT '',
	latitude  DOUBLE PRECISION,
	longitude DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS officers (
	id     UUID PRIMARY KEY,
	name   TEXT NOT NULL,
	phone  TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE
);
`

// Postgres reads the roster tables through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) GetCitizen(ctx context.Context, id domain.CitizenID) (Citizen, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id::text, name, address, phone, latitude, longitude FROM citizens WHERE id = $1`,
		id.String(),
	)

	var (
		c        Citizen
		rawID    string
		lat, lon *float64
	)
	if err := row.Scan(&rawID, &c.Name, &c.Address, &c.Phone, &lat, &lon); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Citizen{}, sentinel.ErrNotFound
		}
		return Citizen{}, fmt.Errorf("query citizen: %w", err)
	}

	parsed, err := domain.ParseCitizenID(rawID)
	if err != nil {
		return Citizen{}, fmt.Errorf("parse citizen id: %w", err)
	}
	c.ID = parsed
	if lat != nil && lon != nil {
		c.Home = &geo.Position{Latitude: *lat, Longitude: *lon}
	}
	return c, nil
}

func (p *Postgres) GetOfficer(ctx context.Context, id domain.OfficerID) (Officer, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id::text, name, phone, active FROM officers WHERE id = $1`,
		id.String(),
	)

	var (
		o     Officer
		rawID string
	)
	if err := row.Scan(&rawID, &o.Name, &o.Phone, &o.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Officer{}, sentinel.ErrNotFound
		}
		return Officer{}, fmt.Errorf("query officer: %w", err)
	}

	parsed, err := domain.ParseOfficerID(rawID)
	if err != nil {
		return Officer{}, fmt.Errorf("parse officer id: %w", err)
	}
	o.ID = parsed
	return o, nil
}
