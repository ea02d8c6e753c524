// Package session persists student profiles keyed by session id.
//
// Two backends implement Store: an in-memory map (the default) and a
// SQLite database for deployments that must survive restarts. Expired
// sessions are removed only by an explicit sweep; there is no background
// timer. A lookup miss is never resurrected; callers start fresh.
package session

import (
	"errors"
	"time"

	"github.com/davoli/bussola/internal/profile"
)

// ErrNotFound is returned when no session exists for the given id.
var ErrNotFound = errors.New("session not found")

// DefaultMaxAge is the sweep threshold when the caller does not supply one.
const DefaultMaxAge = 24 * time.Hour

// Store is the persistence contract the dialogue driver depends on.
// Access is plain get/put, not transactional: overlapping turns for the
// same session id can lose an update, and callers own that constraint.
type Store interface {
	// Create allocates and persists a fresh empty profile.
	Create() (*profile.Profile, error)
	// Get returns the profile for id, or ErrNotFound.
	Get(id string) (*profile.Profile, error)
	// Put writes the profile under id, overwriting any previous value.
	Put(id string, p *profile.Profile) error
	// Exists reports whether a session is currently stored under id.
	Exists(id string) bool
	// Delete removes the session. Deleting an absent id is not an error.
	Delete(id string) error
	// SweepOlderThan evicts sessions created more than maxAge ago and
	// returns how many were removed.
	SweepOlderThan(maxAge time.Duration) (int, error)
}
