package evidence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	defaultRecordLimit = 50
	maxRecordLimit     = 1000
)

// SQLiteBackend stores evidence in the evidence_stores and
// evidence_records tables.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend creates a backend on an open, migrated SQLite connection.
func NewSQLiteBackend(db *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

// Open returns the store for key, creating its row on first use.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - version: Storage version recorded on creation
//   - key: Store key, see DeviceKey, LANKey and PlatformKey
//
// Returns:
//   - Store: Handle bound to key
//   - error: ErrInvalidKey, ErrVersionMismatch, or the database error
func (b *SQLiteBackend) Open(ctx context.Context, version int, key string) (Store, error) {
	info, err := ParseKey(key)
	if err != nil {
		return nil, err
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO evidence_stores (key, category, object_id, version, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING`,
		key,
		string(info.Category),
		info.ObjectID,
		version,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("creating store %s: %w", key, err)
	}

	var stored int
	if err := b.db.QueryRowContext(ctx,
		"SELECT version FROM evidence_stores WHERE key = ?", key,
	).Scan(&stored); err != nil {
		return nil, fmt.Errorf("reading store %s: %w", key, err)
	}
	if stored != version {
		return nil, fmt.Errorf("%w: store %s has version %d, want %d", ErrVersionMismatch, key, stored, version)
	}

	return &sqliteStore{db: b.db, key: key, version: version}, nil
}

// Lookup returns an existing store without creating it.
func (b *SQLiteBackend) Lookup(ctx context.Context, key string) (Store, error) {
	var version int
	err := b.db.QueryRowContext(ctx,
		"SELECT version FROM evidence_stores WHERE key = ?", key,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading store %s: %w", key, err)
	}
	return &sqliteStore{db: b.db, key: key, version: version}, nil
}

type sqliteStore struct {
	db      *sql.DB
	key     string
	version int
}

func (s *sqliteStore) Key() string  { return s.key }
func (s *sqliteStore) Version() int { return s.version }

func (s *sqliteStore) Append(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.StoreKey = s.key
	rec.RecordedAt = time.Now().UTC()
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = rec.RecordedAt
	}
	if len(rec.Payload) == 0 {
		rec.Payload = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence_records (
			id, store_key, entity_id, device_id, platform, event_type,
			payload, observed_at, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		s.key,
		rec.EntityID,
		rec.DeviceID,
		rec.Platform,
		rec.EventType,
		string(rec.Payload),
		rec.ObservedAt.UTC().Format(time.RFC3339Nano),
		rec.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("appending to %s: %w", s.key, err)
	}
	return rec, nil
}

func (s *sqliteStore) Records(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultRecordLimit
	}
	if limit > maxRecordLimit {
		limit = maxRecordLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_key, entity_id, device_id, platform, event_type,
			payload, observed_at, recorded_at
		FROM (
			SELECT * FROM evidence_records
			WHERE store_key = ?
			ORDER BY seq DESC
			LIMIT ?
		)
		ORDER BY seq ASC`,
		s.key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying records of %s: %w", s.key, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec                  Record
			payload              string
			observedAt, recorded string
		)
		if err := rows.Scan(
			&rec.ID, &rec.StoreKey, &rec.EntityID, &rec.DeviceID, &rec.Platform,
			&rec.EventType, &payload, &observedAt, &recorded,
		); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.Payload = []byte(payload)
		rec.ObservedAt, _ = time.Parse(time.RFC3339Nano, observedAt) //nolint:errcheck // written by Append in this format
		rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, recorded)   //nolint:errcheck // written by Append in this format
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	return records, nil
}
