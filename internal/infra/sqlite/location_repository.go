package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fardannozami/amchegoa/internal/domain"
)

// LocationRepository keeps the last location shared in each chat and serves it as
// that chat's current location.
type LocationRepository struct {
	db *sql.DB
}

func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

func (r *LocationRepository) InitTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS location_fixes (
			namespace TEXT PRIMARY KEY,
			lat REAL NOT NULL,
			lng REAL NOT NULL,
			received_at TEXT NOT NULL
		);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *LocationRepository) SaveFix(ctx context.Context, namespace string, c domain.Coordinate, receivedAt time.Time) error {
	query := `
		INSERT INTO location_fixes (namespace, lat, lng, received_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace) DO UPDATE SET
			lat = excluded.lat,
			lng = excluded.lng,
			received_at = excluded.received_at
	`
	_, err := r.db.ExecContext(ctx, query, namespace, c.Lat, c.Lng, receivedAt.UTC().Format(time.RFC3339))
	return err
}

func (r *LocationRepository) CurrentLocation(ctx context.Context, namespace string) (domain.Coordinate, error) {
	var c domain.Coordinate
	err := r.db.QueryRowContext(ctx, `SELECT lat, lng FROM location_fixes WHERE namespace = ?`, namespace).Scan(&c.Lat, &c.Lng)
	if err == sql.ErrNoRows {
		return domain.Coordinate{}, fmt.Errorf("no location shared in chat: %w", domain.ErrLocationUnavailable)
	}
	if err != nil {
		return domain.Coordinate{}, err
	}
	return c, nil
}
