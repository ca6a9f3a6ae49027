package kvstore

import (
	"context"
	"errors"
	"testing"
)

func TestGetMissingKey(t *testing.T) {
	s := NewStore(newSimpleMock(), "blobs-table")

	payload, version, err := s.Get(context.Background(), "pending-entregas")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if payload != "" || version != 0 {
		t.Fatalf("expected empty payload and version 0, got %q / %d", payload, version)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := NewStore(newSimpleMock(), "blobs-table")
	ctx := context.Background()

	v1, err := s.Put(ctx, "confirmed", `[{"cliente":"Ana"}]`, 0)
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if v1 != 1 {
		t.Fatalf("expected version 1, got %d", v1)
	}

	payload, version, err := s.Get(ctx, "confirmed")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if payload != `[{"cliente":"Ana"}]` {
		t.Fatalf("payload mismatch: %q", payload)
	}
	if version != 1 {
		t.Fatalf("expected version 1, got %d", version)
	}

	v2, err := s.Put(ctx, "confirmed", `[]`, version)
	if err != nil {
		t.Fatalf("second Put error: %v", err)
	}
	if v2 != 2 {
		t.Fatalf("expected version 2, got %d", v2)
	}
}

func TestPutCreateConflictsWithExistingKey(t *testing.T) {
	s := NewStore(newSimpleMock(), "blobs-table")
	ctx := context.Background()

	if _, err := s.Put(ctx, "pending-entregas", "[]", 0); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	_, err := s.Put(ctx, "pending-entregas", "[]", 0)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestPutStaleVersionConflicts(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "blobs-table")
	ctx := context.Background()

	if _, err := s.Put(ctx, "pending-entregas", "[]", 0); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	// a concurrent writer commits between our read and write
	mock.bumpVersion("pending-entregas")

	_, err := s.Put(ctx, "pending-entregas", `["stale"]`, 1)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := NewStore(newSimpleMock(), "blobs-table")
	ctx := context.Background()

	if _, err := s.Put(ctx, "confirmed", "[]", 0); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.Delete(ctx, "confirmed"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	payload, version, err := s.Get(ctx, "confirmed")
	if err != nil {
		t.Fatalf("Get after delete error: %v", err)
	}
	if payload != "" || version != 0 {
		t.Fatalf("expected key gone, got %q / %d", payload, version)
	}

	// deleting again is a no-op
	if err := s.Delete(ctx, "confirmed"); err != nil {
		t.Fatalf("second Delete error: %v", err)
	}
}
