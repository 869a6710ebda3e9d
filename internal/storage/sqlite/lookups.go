package sqlite

import (
	"context"
	"fmt"
	"time"
)

// LookupRecord is one backend flight lookup
type LookupRecord struct {
	ID           int64     `db:"id" json:"id"`
	Flight       string    `db:"flight" json:"flight"`
	StatusCode   int       `db:"status_code" json:"status_code"`
	FlightStatus string    `db:"flight_status" json:"flight_status,omitempty"`
	Error        string    `db:"error" json:"error,omitempty"`
	HasPosition  bool      `db:"has_position" json:"has_position"`
	Cached       bool      `db:"cached" json:"cached"`
	DurationMs   int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt    time.Time `db:"-" json:"created_at"`
}

// timestampLayout is fixed width so stored timestamps sort lexically
const timestampLayout = "2006-01-02 15:04:05.000000"

type lookupRow struct {
	LookupRecord
	CreatedAtRaw string `db:"created_at"`
}

// StoreLookup appends a lookup to the log. CreatedAt defaults to now.
func (s *Storage) StoreLookup(ctx context.Context, record *LookupRecord) (int64, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.clock.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO lookups
		(flight, status_code, flight_status, error, has_position, cached, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Flight,
		record.StatusCode,
		record.FlightStatus,
		record.Error,
		record.HasPosition,
		record.Cached,
		record.DurationMs,
		record.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert lookup: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	record.ID = id
	return id, nil
}

// RecentLookups returns the newest lookups first
func (s *Storage) RecentLookups(ctx context.Context, limit int) ([]*LookupRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []lookupRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, flight, status_code, COALESCE(flight_status, '') AS flight_status,
		       COALESCE(error, '') AS error, has_position, cached, duration_ms, created_at
		FROM lookups
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lookups: %w", err)
	}

	records := make([]*LookupRecord, 0, len(rows))
	for i := range rows {
		rec := rows[i].LookupRecord
		t, err := time.ParseInLocation(timestampLayout, rows[i].CreatedAtRaw, time.UTC)
		if err != nil {
			s.logger.Warn("Skipping lookup with unparseable timestamp",
				String("created_at", rows[i].CreatedAtRaw), Error(err))
			continue
		}
		rec.CreatedAt = t
		records = append(records, &rec)
	}
	return records, nil
}

// PruneLookups deletes lookups older than maxAge and returns how many went
func (s *Storage) PruneLookups(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.clock.Now().Add(-maxAge).UTC().Format(timestampLayout)
	result, err := s.db.ExecContext(ctx, `DELETE FROM lookups WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune lookups: %w", err)
	}
	return result.RowsAffected()
}
