package store

import (
	"sort"
	"sync"
	"time"

	"vanish-client/internal/models"
)

// PresenceStore holds the active-user snapshot the server pushes. The record
// for the current user is never stored. For a guest, the room owner's record
// is designated the sole conversation peer, recomputed on every replace.
type PresenceStore struct {
	mu      sync.RWMutex
	selfID  string
	ownerID string
	users   []models.PresenceRecord
	peer    *models.PresenceRecord
	lastAt  time.Time
}

func NewPresenceStore(selfID, ownerID string) *PresenceStore {
	return &PresenceStore{selfID: selfID, ownerID: ownerID}
}

// ReplaceAll applies a wholesale snapshot. A snapshot older than the last
// applied one is discarded so two racing updates cannot flicker a stale
// isOnline state back in. Returns false when the snapshot was discarded.
func (s *PresenceStore) ReplaceAll(snap models.PresenceSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !snap.At.IsZero() && snap.At.Before(s.lastAt) {
		return false
	}
	if !snap.At.IsZero() {
		s.lastAt = snap.At
	}

	s.users = s.users[:0]
	for _, rec := range snap.Users {
		if rec.UserID == s.selfID {
			continue
		}
		s.users = append(s.users, rec)
	}
	s.recomputePeer()
	return true
}

// Add inserts a single record, ignoring the current user.
func (s *PresenceStore) Add(rec models.PresenceRecord) {
	if rec.UserID == s.selfID {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].UserID == rec.UserID {
			s.users[i] = rec
			s.recomputePeer()
			return
		}
	}
	s.users = append(s.users, rec)
	s.recomputePeer()
}

func (s *PresenceStore) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].UserID == userID {
			s.users = append(s.users[:i], s.users[i+1:]...)
			break
		}
	}
	s.recomputePeer()
}

// Peer returns the designated conversation partner. A guest always talks to
// the owner; for the owner there is no single peer and ok is false.
func (s *PresenceStore) Peer() (models.PresenceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.peer == nil {
		return models.PresenceRecord{}, false
	}
	return *s.peer, true
}

// Users returns a copy of the stored records.
func (s *PresenceStore) Users() []models.PresenceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PresenceRecord, len(s.users))
	copy(out, s.users)
	return out
}

// SortedByActivity orders users by their most recent message activity,
// falling back to lastSeen, newest first.
func (s *PresenceStore) SortedByActivity(lastActivity func(userID string) (time.Time, bool)) []models.PresenceRecord {
	out := s.Users()
	sort.SliceStable(out, func(i, j int) bool {
		return activityTime(out[i], lastActivity).After(activityTime(out[j], lastActivity))
	})
	return out
}

func activityTime(rec models.PresenceRecord, lastActivity func(string) (time.Time, bool)) time.Time {
	if lastActivity != nil {
		if at, ok := lastActivity(rec.UserID); ok {
			return at
		}
	}
	return rec.LastSeen
}

func (s *PresenceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = nil
	s.peer = nil
	s.lastAt = time.Time{}
}

// recomputePeer runs under the write lock. The designation is derived, never
// stored across replaces.
func (s *PresenceStore) recomputePeer() {
	s.peer = nil
	if s.selfID == s.ownerID {
		return
	}
	for i := range s.users {
		if s.users[i].UserID == s.ownerID {
			rec := s.users[i]
			s.peer = &rec
			return
		}
	}
}
