package store

import "sync"

// TypingTracker is the set of user IDs currently typing to the current user.
// Only inbound signals land here; the local user's own typing state is
// transmitted outward, never tracked.
type TypingTracker struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{ids: make(map[string]struct{})}
}

// Add records userID as typing. Adding an already-present ID is a no-op.
func (t *TypingTracker) Add(userID string) {
	if userID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids[userID] = struct{}{}
}

// Remove is a no-op for an absent ID.
func (t *TypingTracker) Remove(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ids, userID)
}

func (t *TypingTracker) IsTyping(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ids[userID]
	return ok
}

func (t *TypingTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ids)
}

func (t *TypingTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids = make(map[string]struct{})
}
