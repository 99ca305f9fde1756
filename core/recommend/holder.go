package recommend

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/evreco/core/scoring"
)

// ErrNoArtifact is returned by Holder.Load when nothing is held and the
// store has nothing to give.
var ErrNoArtifact = errors.New("no trained artifact")

// MissRetry is how long Holder.Load answers from memory after the store
// came up empty, instead of reading it again.
const MissRetry = 5 * time.Second

// Holder owns the live artifact. Artifacts are immutable, so readers only
// need the pointer and a swap replaces model and scaler together.
type Holder struct {
	mu  sync.RWMutex
	art *scoring.Artifact

	// missUntil is the unix-nano deadline before which the store is not
	// read again.
	missUntil atomic.Int64
	now       func() time.Time
}

// NewHolder returns an empty holder.
func NewHolder() *Holder { return &Holder{now: time.Now} }

// Get returns the live artifact or nil.
func (h *Holder) Get() *scoring.Artifact {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.art
}

// Swap publishes a and returns the previous artifact.
func (h *Holder) Swap(a *scoring.Artifact) *scoring.Artifact {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.art
	h.art = a
	h.missUntil.Store(0)
	return prev
}

// Loaded reports whether an artifact is held.
func (h *Holder) Loaded() bool { return h.Get() != nil }

// Load returns the live artifact, restoring it from store when none is
// held. The boolean is true when the store was read. A failed read is
// remembered for MissRetry so callers without a model do not queue on the
// store.
func (h *Holder) Load(store ArtifactStore) (*scoring.Artifact, bool, error) {
	if a := h.Get(); a != nil {
		return a, false, nil
	}
	if store == nil {
		return nil, false, ErrNoArtifact
	}
	if h.clock().UnixNano() < h.missUntil.Load() {
		return nil, false, ErrNoArtifact
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.art != nil {
		return h.art, false, nil
	}
	if h.clock().UnixNano() < h.missUntil.Load() {
		return nil, false, ErrNoArtifact
	}
	a, err := store.Load()
	if err != nil {
		h.missUntil.Store(h.clock().Add(MissRetry).UnixNano())
		return nil, true, errors.Join(ErrNoArtifact, err)
	}
	h.art = a
	return a, true, nil
}

func (h *Holder) clock() time.Time {
	if h.now == nil {
		return time.Now()
	}
	return h.now()
}
