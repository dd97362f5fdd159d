// Package store provides persistence for the adjustment history and the
// state files shared between autovol and autovold.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jmylchreest/autovol/internal/core"
	"github.com/jmylchreest/autovol/internal/model"
)

// ChangeType indicates the type of history change.
type ChangeType int

const (
	// ChangeTypeAdd indicates adjustments were added.
	ChangeTypeAdd ChangeType = iota
	// ChangeTypeClear indicates all adjustments were cleared.
	ChangeTypeClear
	// ChangeTypePrune indicates adjustments were pruned.
	ChangeTypePrune
)

// ChangeEvent signals history content changes.
type ChangeEvent struct {
	Type   ChangeType
	Count  int
	Source string
}

// History manages the adjustment history with thread-safe operations.
type History struct {
	mu          sync.RWMutex
	adjustments []model.Adjustment
	index       map[string]int // id -> slice index

	persistence Persistence

	subscribers []chan ChangeEvent
	closed      bool
}

// NewHistory creates a new History.
// If persistence is not nil, it will be used to persist adjustments.
func NewHistory(persistence Persistence) *History {
	return &History{
		adjustments: make([]model.Adjustment, 0),
		index:       make(map[string]int),
		persistence: persistence,
		subscribers: make([]chan ChangeEvent, 0),
	}
}

// Add adds a single adjustment to the history.
// Adjustments with an ID already present are skipped.
func (h *History) Add(a model.Adjustment) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrStoreClosed
	}
	if err := a.Validate(); err != nil {
		return err
	}

	if _, exists := h.index[a.ID]; exists {
		return nil
	}

	h.index[a.ID] = len(h.adjustments)
	h.adjustments = append(h.adjustments, a)

	// Persist if enabled
	if h.persistence != nil {
		if err := h.persistence.Append(a); err != nil {
			return err
		}
	}

	h.notifyChange(ChangeEvent{
		Type:   ChangeTypeAdd,
		Count:  1,
		Source: a.RunID,
	})

	return nil
}

// All returns all adjustments, newest first.
func (h *History) All() []model.Adjustment {
	h.mu.RLock()
	result := make([]model.Adjustment, len(h.adjustments))
	copy(result, h.adjustments)
	h.mu.RUnlock()

	core.Sort(result, core.DefaultSortOptions())
	return result
}

// List returns adjustments matching opts, newest first.
func (h *History) List(opts core.FilterOptions) []model.Adjustment {
	return core.Filter(h.All(), opts)
}

// Latest returns the most recent adjustment, or nil if the history is empty.
func (h *History) Latest() *model.Adjustment {
	all := h.All()
	if len(all) == 0 {
		return nil
	}
	return &all[0]
}

// Count returns the number of adjustments held.
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.adjustments)
}

// Prune removes adjustments older than olderThan (0 disables the age check)
// and then all but the keep most recent ones (0 disables the count check).
// The persisted file is rewritten. Returns the number removed.
func (h *History) Prune(olderThan time.Duration, keep int) (int, error) {
	return h.PruneAt(olderThan, keep, time.Now())
}

// PruneAt is Prune with an explicit reference time.
func (h *History) PruneAt(olderThan time.Duration, keep int, now time.Time) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, ErrStoreClosed
	}

	kept := make([]model.Adjustment, len(h.adjustments))
	copy(kept, h.adjustments)
	core.Sort(kept, core.DefaultSortOptions())

	if olderThan > 0 {
		kept = core.FilterAt(kept, core.FilterOptions{Since: olderThan}, now)
	}
	if keep > 0 && len(kept) > keep {
		kept = kept[:keep]
	}

	removed := len(h.adjustments) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	// Store oldest first so appends keep the file in time order
	core.Sort(kept, core.SortOptions{Field: core.SortByTimestamp, Order: core.SortAsc})

	if h.persistence != nil {
		if err := h.persistence.Rewrite(kept); err != nil {
			return 0, err
		}
	}

	h.adjustments = kept
	h.index = make(map[string]int, len(kept))
	for i, a := range kept {
		h.index[a.ID] = i
	}

	h.notifyChange(ChangeEvent{
		Type:  ChangeTypePrune,
		Count: removed,
	})

	return removed, nil
}

// Subscribe returns a channel that receives change events.
func (h *History) Subscribe() <-chan ChangeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ChangeEvent, 10)
	h.subscribers = append(h.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription.
func (h *History) Unsubscribe(ch <-chan ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close releases resources and closes all subscriber channels.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil

	if h.persistence != nil {
		return h.persistence.Close()
	}

	return nil
}

// Hydrate loads adjustments from persistence into the history.
// Entries already held are skipped, so it is safe to call repeatedly.
// On a damaged file the usable entries are added and the *CorruptionError
// is returned.
func (h *History) Hydrate() error {
	if h.persistence == nil {
		return nil
	}

	adjustments, err := h.persistence.Load()
	if err != nil && !errors.Is(err, ErrCorruptHistory) {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	added := 0
	for _, a := range adjustments {
		if _, exists := h.index[a.ID]; exists {
			continue
		}
		h.index[a.ID] = len(h.adjustments)
		h.adjustments = append(h.adjustments, a)
		added++
	}

	if added > 0 {
		h.notifyChange(ChangeEvent{
			Type:   ChangeTypeAdd,
			Count:  added,
			Source: "persistence",
		})
	}

	return err
}

// Clear removes all adjustments from the history.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrStoreClosed
	}

	count := len(h.adjustments)
	h.adjustments = make([]model.Adjustment, 0)
	h.index = make(map[string]int)

	if h.persistence != nil {
		if err := h.persistence.Clear(); err != nil {
			return err
		}
	}

	h.notifyChange(ChangeEvent{
		Type:  ChangeTypeClear,
		Count: count,
	})

	return nil
}

// notifyChange sends a change event to all subscribers (non-blocking).
func (h *History) notifyChange(event ChangeEvent) {
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// Errors
var (
	ErrStoreClosed = storeError("store is closed")
)

type storeError string

func (e storeError) Error() string {
	return string(e)
}
