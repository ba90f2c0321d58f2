package evidence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-forensics/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-forensics/migrations"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db.DB
}

func TestSQLiteBackend_AppendAndRecords(t *testing.T) {
	ctx := context.Background()
	backend := NewSQLiteBackend(openTestDB(t))

	store, err := backend.Open(ctx, StorageVersion, DeviceKey("lamp"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	observed := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	for i, state := range []string{"on", "off", "on"} {
		payload, _ := json.Marshal(map[string]any{"state": state, "seq": i}) //nolint:errcheck // static map
		rec, err := store.Append(ctx, Record{
			EntityID:   "light.lamp",
			DeviceID:   "lamp",
			Platform:   "hue",
			EventType:  "state_changed",
			Payload:    payload,
			ObservedAt: observed.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if rec.ID == "" || rec.RecordedAt.IsZero() || rec.StoreKey != "fe_dev_lamp" {
			t.Errorf("Append() = %+v", rec)
		}
	}

	records, err := store.Records(ctx, 2)
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Records() returned %d, want 2", len(records))
	}
	var first map[string]any
	if err := json.Unmarshal(records[0].Payload, &first); err != nil {
		t.Fatal(err)
	}
	if first["state"] != "off" {
		t.Errorf("oldest of last two = %v, want off", first["state"])
	}
	if !records[1].ObservedAt.Equal(observed.Add(2 * time.Second)) {
		t.Errorf("ObservedAt = %v", records[1].ObservedAt)
	}
}

func TestSQLiteBackend_OpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := NewSQLiteBackend(openTestDB(t))

	s1, err := backend.Open(ctx, 1, LANKey("router"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s1.Append(ctx, Record{EventType: "note"}); err != nil {
		t.Fatal(err)
	}

	s2, err := backend.Open(ctx, 1, LANKey("router"))
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	records, err := s2.Records(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || string(records[0].Payload) != "{}" {
		t.Errorf("Records() = %+v", records)
	}

	if _, err := backend.Open(ctx, 2, LANKey("router")); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("Open(version 2) error = %v, want ErrVersionMismatch", err)
	}
}

func TestSQLiteBackend_Errors(t *testing.T) {
	ctx := context.Background()
	backend := NewSQLiteBackend(openTestDB(t))

	if _, err := backend.Open(ctx, 1, "not-a-key"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Open(invalid) error = %v", err)
	}
	if _, err := backend.Lookup(ctx, DeviceKey("ghost")); !errors.Is(err, ErrStoreNotFound) {
		t.Errorf("Lookup(ghost) error = %v", err)
	}
}
