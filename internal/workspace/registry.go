package workspace

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Registry keeps the most recently used workspaces in memory. An evicted
// workspace is closed; its persisted state is picked up again on the
// visitor's next request.
type Registry struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, *Workspace]
	shared *Shared
}

func NewRegistry(size int, shared *Shared) (*Registry, error) {
	c, err := lru.NewWithEvict(size, func(id string, w *Workspace) {
		w.Close()
		metrics.WorkspaceEvicted()
		shared.Log.Debug(context.Background(), "workspace evicted", zap.String("workspace", id))
	})
	if err != nil {
		return nil, fmt.Errorf("workspace registry: %w", err)
	}
	return &Registry{cache: c, shared: shared}, nil
}

// Open returns the workspace for id, rebuilding it from storage when it is
// not in memory. A missing or malformed id gets a new workspace; the second
// return value reports whether the id changed.
func (r *Registry) Open(ctx context.Context, id string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.cache.Get(id); ok {
		return w, false
	}

	issued := false
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
		issued = true
	}

	w := newWorkspace(context.WithoutCancel(ctx), id, r.shared)
	r.cache.Add(id, w)
	metrics.WorkspaceOpened()
	return w, issued
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close closes every workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
}
