package deliveries

import (
	"context"
	"sync"

	"github.com/sebvill/go-delivery-claims/internal/kvstore"
)

// fakeBlobs is an in-memory BlobStore honoring the version contract.
// putErrs can be pre-loaded with scripted errors consumed one per Put call.
type fakeBlobs struct {
	mu       sync.Mutex
	payloads map[string]string
	versions map[string]int64

	putErrs     []error
	putCalls    int
	deleteCalls int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{
		payloads: map[string]string{},
		versions: map[string]int64{},
	}
}

func (f *fakeBlobs) Get(ctx context.Context, key string) (string, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloads[key], f.versions[key], nil
}

func (f *fakeBlobs) Put(ctx context.Context, key, payload string, expectedVersion int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	if expectedVersion != f.versions[key] {
		return 0, kvstore.ErrVersionConflict
	}
	f.payloads[key] = payload
	f.versions[key] = expectedVersion + 1
	return f.versions[key], nil
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	delete(f.payloads, key)
	delete(f.versions, key)
	return nil
}

// seed installs a raw payload without going through the store.
func (f *fakeBlobs) seed(key, payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[key] = payload
	f.versions[key] = 1
}
