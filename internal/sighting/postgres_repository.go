package sighting

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wlocate/wlocate/internal/wloc"
)

// Schema creates the sightings table. Coordinates are stored in the wire's
// fixed-point form (degrees * 1e8).
const Schema = `
	CREATE TABLE IF NOT EXISTS sightings (
		id                TEXT PRIMARY KEY,
		bssid             TEXT NOT NULL,
		latitude_e8       BIGINT NOT NULL,
		longitude_e8      BIGINT NOT NULL,
		accuracy          BIGINT NOT NULL,
		altitude          BIGINT NOT NULL,
		altitude_accuracy BIGINT NOT NULL,
		source            TEXT NOT NULL DEFAULT '',
		observed_at       TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sightings_bssid_observed_at_idx
		ON sightings (bssid, observed_at DESC);
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL sighting repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the sightings table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create sightings schema: %w", err)
	}
	return nil
}

// Record appends sightings in a single batch.
func (r *PostgresRepository) Record(ctx context.Context, sightings []*Sighting) error {
	if len(sightings) == 0 {
		return nil
	}

	query := `
		INSERT INTO sightings (id, bssid, latitude_e8, longitude_e8, accuracy, altitude, altitude_accuracy, source, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for _, s := range sightings {
		batch.Queue(query,
			s.ID,
			s.BSSID.String(),
			wloc.FromDegrees(s.Latitude),
			wloc.FromDegrees(s.Longitude),
			s.Accuracy,
			s.Altitude,
			s.AltitudeAccuracy,
			s.Source,
			s.ObservedAt,
		)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert sightings: %w", err)
	}
	return nil
}

// ListByBSSID returns the sightings of one access point, newest first.
func (r *PostgresRepository) ListByBSSID(ctx context.Context, bssid wloc.MacAddress, opts ListOptions) (*ListResult, error) {
	limit := NormalizeLimit(opts.Limit)
	fetchLimit := limit + 1

	query := `
		SELECT id, latitude_e8, longitude_e8, accuracy, altitude, altitude_accuracy, source, observed_at
		FROM sightings
		WHERE bssid = $1
	`
	args := []interface{}{bssid.String()}

	if opts.Cursor != "" {
		query += ` AND (observed_at, id) < (SELECT observed_at, id FROM sightings WHERE id = $2)`
		args = append(args, opts.Cursor)
	}

	query += fmt.Sprintf(" ORDER BY observed_at DESC, id DESC LIMIT $%d", len(args)+1)
	args = append(args, fetchLimit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Sighting
	for rows.Next() {
		var (
			s        = Sighting{BSSID: bssid}
			lat, lon int64
		)
		err := rows.Scan(
			&s.ID,
			&lat,
			&lon,
			&s.Accuracy,
			&s.Altitude,
			&s.AltitudeAccuracy,
			&s.Source,
			&s.ObservedAt,
		)
		if err != nil {
			return nil, err
		}
		s.Latitude = wloc.ToDegrees(lat)
		s.Longitude = wloc.ToDegrees(lon)
		items = append(items, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		result.NextCursor = items[limit-1].ID
	}

	return result, nil
}
