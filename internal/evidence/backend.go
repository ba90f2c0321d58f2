package evidence

import (
	"context"
	"encoding/json"
	"time"
)

// StorageVersion is attached to every store at allocation time.
const StorageVersion = 1

// Record is one captured event appended to an evidence store.
type Record struct {
	ID         string          `json:"id"`
	StoreKey   string          `json:"store_key"`
	EntityID   string          `json:"entity_id,omitempty"`
	DeviceID   string          `json:"device_id,omitempty"`
	Platform   string          `json:"platform,omitempty"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	ObservedAt time.Time       `json:"observed_at"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Backend allocates persistent evidence stores.
//
// Open returns the store for key, creating it with version if it does not
// exist. Keys are caller-chosen and unique within the backend.
type Backend interface {
	Open(ctx context.Context, version int, key string) (Store, error)
}

// Store is an append-only evidence target.
type Store interface {
	Key() string
	Version() int

	// Append stores rec and returns it with ID and RecordedAt filled in.
	Append(ctx context.Context, rec Record) (Record, error)

	// Records returns the most recent limit records, oldest first.
	Records(ctx context.Context, limit int) ([]Record, error)
}
