package storage

import (
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDatabase(dbPath)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMediaRecordCRUD(t *testing.T) {
	db := newTestDB(t)

	m := NewMediaRecord("abc123", "/data/media/media-1.webp", "image/webp", "5511999@c.us")
	hv := "deadbeef"
	md5 := "0123456789abcdef"
	m.HashVisual = &hv
	m.HashMD5 = &md5
	m.Description = "gato dançando"

	if err := db.InsertMediaRecord(m); err != nil {
		t.Fatalf("InsertMediaRecord: %v", err)
	}

	got, err := db.GetMediaRecord("abc123")
	if err != nil {
		t.Fatalf("GetMediaRecord: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.Mimetype != "image/webp" {
		t.Errorf("expected image/webp, got %s", got.Mimetype)
	}
	if *got.HashVisual != "deadbeef" {
		t.Errorf("expected deadbeef, got %s", *got.HashVisual)
	}
	if got.UsageCount != 0 {
		t.Errorf("expected usage_count 0, got %d", got.UsageCount)
	}
}

func TestFindByFingerprint(t *testing.T) {
	db := newTestDB(t)

	hv := "cafe01"
	first := NewMediaRecord("first", "/m/1.webp", "image/webp", "chat1")
	first.HashVisual = &hv
	if err := db.InsertMediaRecord(first); err != nil {
		t.Fatalf("insert first: %v", err)
	}

	got, err := db.FindByFingerprint("cafe01")
	if err != nil {
		t.Fatalf("FindByFingerprint: %v", err)
	}
	if got == nil || got.ID != "first" {
		t.Fatal("expected to find first record by fingerprint")
	}

	// Unknown fingerprint
	got, err = db.FindByFingerprint("nope")
	if err != nil {
		t.Fatalf("FindByFingerprint unknown: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown fingerprint")
	}

	// Empty fingerprint means dedup is skipped entirely
	got, err = db.FindByFingerprint("")
	if err != nil || got != nil {
		t.Error("empty fingerprint must return nil, nil")
	}
}

func TestFindByFingerprintReturnsOldest(t *testing.T) {
	db := newTestDB(t)

	hv := "dup"
	a := NewMediaRecord("a", "/m/a.webp", "image/webp", "chat1")
	a.HashVisual = &hv
	a.CreatedAt = "2026-01-01T00:00:00Z"
	b := NewMediaRecord("b", "/m/b.webp", "image/webp", "chat2")
	b.HashVisual = &hv
	b.CreatedAt = "2026-02-01T00:00:00Z"

	// Both can exist: the fingerprint column carries no unique index.
	if err := db.InsertMediaRecord(b); err != nil {
		t.Fatalf("insert b: %v", err)
	}
	if err := db.InsertMediaRecord(a); err != nil {
		t.Fatalf("insert a: %v", err)
	}

	got, err := db.FindByFingerprint("dup")
	if err != nil {
		t.Fatalf("FindByFingerprint: %v", err)
	}
	if got == nil || got.ID != "a" {
		t.Errorf("expected oldest record a, got %+v", got)
	}
}

func TestTags(t *testing.T) {
	db := newTestDB(t)

	m := NewMediaRecord("m1", "/m/1.webp", "image/webp", "chat1")
	if err := db.InsertMediaRecord(m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := db.ReplaceTags("m1", []string{"#Gato", "dança", "", "gato"}); err != nil {
		t.Fatalf("ReplaceTags: %v", err)
	}

	tags, err := db.GetTags("m1")
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	// normalized, deduplicated, ordered, empties dropped
	if len(tags) != 2 || tags[0] != "gato" || tags[1] != "dança" {
		t.Errorf("unexpected tags: %v", tags)
	}

	// Replace overwrites
	if err := db.ReplaceTags("m1", []string{"novo"}); err != nil {
		t.Fatalf("ReplaceTags again: %v", err)
	}
	tags, _ = db.GetTags("m1")
	if len(tags) != 1 || tags[0] != "novo" {
		t.Errorf("expected replaced tags, got %v", tags)
	}

	records, err := db.FindByTag("NOVO", 10)
	if err != nil {
		t.Fatalf("FindByTag: %v", err)
	}
	if len(records) != 1 || records[0].ID != "m1" {
		t.Errorf("FindByTag failed: %v", records)
	}
}

func TestIncrementUsage(t *testing.T) {
	db := newTestDB(t)

	m := NewMediaRecord("m1", "/m/1.webp", "image/webp", "chat1")
	if err := db.InsertMediaRecord(m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := db.IncrementUsage("m1"); err != nil {
			t.Fatalf("IncrementUsage: %v", err)
		}
	}
	got, _ := db.GetMediaRecord("m1")
	if got.UsageCount != 3 {
		t.Errorf("expected usage_count 3, got %d", got.UsageCount)
	}
}
