package surface

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ziadkadry99/livepen/internal/metrics"
)

// Blobs is an in-memory BlobRegistry whose URLs are served by the session
// routes under Prefix.
type Blobs struct {
	mu      sync.RWMutex
	docs    map[string]string
	prefix  string
	metrics *metrics.Metrics
}

// NewBlobs creates a registry handing out URLs of the form prefix + id.
func NewBlobs(prefix string, m *metrics.Metrics) *Blobs {
	return &Blobs{
		docs:    make(map[string]string),
		prefix:  prefix,
		metrics: m,
	}
}

// Create stores document and returns its URL and handle.
func (b *Blobs) Create(document string) (string, string) {
	id := uuid.New().String()
	b.mu.Lock()
	b.docs[id] = document
	b.mu.Unlock()
	b.metrics.BlobCreated()
	return b.prefix + id, id
}

// Get returns a live document.
func (b *Blobs) Get(id string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	doc, ok := b.docs[id]
	return doc, ok
}

// Revoke drops a document. Revoking twice is harmless.
func (b *Blobs) Revoke(id string) {
	b.mu.Lock()
	_, ok := b.docs[id]
	delete(b.docs, id)
	b.mu.Unlock()
	if ok {
		b.metrics.BlobRevoked()
	}
}

// Len returns the number of live documents.
func (b *Blobs) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docs)
}
