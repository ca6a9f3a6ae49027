package deliveries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sebvill/go-delivery-claims/internal/kvstore"
	"go.uber.org/zap"
)

// Blob keys of the two persisted collections.
const (
	pendingKey   = "pending-entregas"
	confirmedKey = "confirmed"
)

// casRetries bounds how often a reload-mutate-save cycle is retried after
// losing a conditional write against another instance.
const casRetries = 3

// BlobStore is the key-value persistence backend: opaque string payloads with
// a version token for conditional writes.
type BlobStore interface {
	Get(ctx context.Context, key string) (payload string, version int64, err error)
	Put(ctx context.Context, key, payload string, expectedVersion int64) (int64, error)
	Delete(ctx context.Context, key string) error
}

// Store owns the pending and confirmed collections. Every mutation is a full
// reload-mutate-save of one collection, serialized per collection by a mutex
// in process and by the blob version across instances.
type Store struct {
	blobs   BlobStore
	log     *zap.Logger
	nowFunc func() time.Time

	pendingMu   sync.Mutex
	confirmedMu sync.Mutex
}

// NewStore returns a Store over the given blob backend.
func NewStore(blobs BlobStore, log *zap.Logger) *Store {
	return &Store{
		blobs:   blobs,
		log:     log,
		nowFunc: time.Now,
	}
}

func decodePending(payload string) ([]PendingDelivery, error) {
	if payload == "" {
		return nil, nil
	}
	var list []PendingDelivery
	if err := json.Unmarshal([]byte(payload), &list); err != nil {
		return nil, fmt.Errorf("decode pending collection: %w", err)
	}
	return list, nil
}

func (s *Store) loadPendingAt(ctx context.Context) (all, active []PendingDelivery, version int64, err error) {
	payload, version, err := s.blobs.Get(ctx, pendingKey)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("load pending: %w", err)
	}
	all, err = decodePending(payload)
	if err != nil {
		return nil, nil, 0, err
	}
	now := s.nowFunc()
	active = make([]PendingDelivery, 0, len(all))
	for _, e := range all {
		if e.Active(now) {
			active = append(active, e)
		}
	}
	return all, active, version, nil
}

func (s *Store) savePending(ctx context.Context, list []PendingDelivery, version int64) (int64, error) {
	if list == nil {
		list = []PendingDelivery{}
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return 0, fmt.Errorf("encode pending collection: %w", err)
	}
	return s.blobs.Put(ctx, pendingKey, string(payload), version)
}

// LoadPending returns the active pending claims, pruning confirmed and expired
// entries. When pruning removed anything the compacted list is persisted right
// away (self-healing read); a lost write race is ignored since the next reader
// compacts again.
func (s *Store) LoadPending(ctx context.Context) ([]PendingDelivery, error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	all, active, version, err := s.loadPendingAt(ctx)
	if err != nil {
		return nil, err
	}
	if removed := len(all) - len(active); removed > 0 {
		if _, err := s.savePending(ctx, active, version); err != nil {
			if errors.Is(err, kvstore.ErrVersionConflict) {
				s.log.Debug("pending compaction lost write race, skipping")
			} else {
				return nil, err
			}
		} else {
			s.log.Info("pruned pending collection",
				zap.Int("removed", removed),
				zap.Int("active", len(active)))
		}
	}
	return active, nil
}

// LoadPendingAll returns the raw pending collection without pruning or
// writes. Diagnostic use only (classifying why a token lookup missed).
func (s *Store) LoadPendingAll(ctx context.Context) ([]PendingDelivery, error) {
	payload, _, err := s.blobs.Get(ctx, pendingKey)
	if err != nil {
		return nil, fmt.Errorf("load pending: %w", err)
	}
	return decodePending(payload)
}

// MutatePending runs fn over the active pending claims and persists its
// result under the loaded version. A conditional-write conflict reloads and
// reruns fn, so fn must be safe to retry; an error from fn aborts without
// saving. Expired and confirmed entries are dropped as a side effect of every
// successful mutation.
func (s *Store) MutatePending(ctx context.Context, fn func(active []PendingDelivery) ([]PendingDelivery, error)) error {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	for attempt := 0; attempt < casRetries; attempt++ {
		_, active, version, err := s.loadPendingAt(ctx)
		if err != nil {
			return err
		}
		updated, err := fn(active)
		if err != nil {
			return err
		}
		_, err = s.savePending(ctx, updated, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, kvstore.ErrVersionConflict) {
			return fmt.Errorf("save pending: %w", err)
		}
		s.log.Warn("pending write conflict, retrying", zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("save pending: %w after %d attempts", kvstore.ErrVersionConflict, casRetries)
}

func decodeConfirmed(payload string) ([]ConfirmedDelivery, error) {
	if payload == "" {
		return nil, nil
	}
	var list []ConfirmedDelivery
	if err := json.Unmarshal([]byte(payload), &list); err != nil {
		return nil, fmt.Errorf("decode confirmed log: %w", err)
	}
	return list, nil
}

// LoadConfirmed returns the confirmed-deliveries log in append order.
func (s *Store) LoadConfirmed(ctx context.Context) ([]ConfirmedDelivery, error) {
	payload, _, err := s.blobs.Get(ctx, confirmedKey)
	if err != nil {
		return nil, fmt.Errorf("load confirmed: %w", err)
	}
	return decodeConfirmed(payload)
}

// AppendConfirmed appends one entry to the confirmed log.
func (s *Store) AppendConfirmed(ctx context.Context, rec ConfirmedDelivery) error {
	s.confirmedMu.Lock()
	defer s.confirmedMu.Unlock()

	for attempt := 0; attempt < casRetries; attempt++ {
		payload, version, err := s.blobs.Get(ctx, confirmedKey)
		if err != nil {
			return fmt.Errorf("load confirmed: %w", err)
		}
		list, err := decodeConfirmed(payload)
		if err != nil {
			return err
		}
		list = append(list, rec)
		encoded, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("encode confirmed log: %w", err)
		}
		_, err = s.blobs.Put(ctx, confirmedKey, string(encoded), version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, kvstore.ErrVersionConflict) {
			return fmt.Errorf("save confirmed: %w", err)
		}
		s.log.Warn("confirmed write conflict, retrying", zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("save confirmed: %w after %d attempts", kvstore.ErrVersionConflict, casRetries)
}

// ClearConfirmed deletes the confirmed log blob entirely. Irreversible.
func (s *Store) ClearConfirmed(ctx context.Context) error {
	s.confirmedMu.Lock()
	defer s.confirmedMu.Unlock()
	if err := s.blobs.Delete(ctx, confirmedKey); err != nil {
		return fmt.Errorf("clear confirmed: %w", err)
	}
	return nil
}
