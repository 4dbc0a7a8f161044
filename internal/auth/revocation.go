package auth

import (
	"sync"
	"time"
)

// RevocationList remembers logged-out token ids until their expiry.
type RevocationList struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

// NewRevocationList constructs an empty list.
func NewRevocationList() *RevocationList {
	return &RevocationList{revoked: make(map[string]time.Time)}
}

// Revoke marks tokenID as unusable until expiresAt.
func (l *RevocationList) Revoke(tokenID string, expiresAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[tokenID] = expiresAt
}

// IsRevoked reports whether tokenID was revoked.
func (l *RevocationList) IsRevoked(tokenID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.revoked[tokenID]
	return ok
}

// Prune removes entries whose tokens expired before now and returns how many were removed.
func (l *RevocationList) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for tokenID, expiresAt := range l.revoked {
		if expiresAt.Before(now) {
			delete(l.revoked, tokenID)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked revocations.
func (l *RevocationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.revoked)
}
