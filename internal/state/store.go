// internal/state/store.go
package state

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jmattson/presidents-client/internal/identity"
	"github.com/jmattson/presidents-client/internal/protocol"
)

// Store holds the single canonical room snapshot for this client.
// Snapshots arrive from two transports (command responses and pushes)
// but all of them pass through Apply, so there is exactly one
// reconciliation policy and exactly one writer path.
type Store struct {
	mu       sync.Mutex
	logger   *logrus.Logger
	ids      *identity.Store
	snapshot *protocol.RoomSnapshot
	subs     []func(*protocol.RoomSnapshot)
}

// NewStore creates an empty reconciler bound to the identity store.
// Stores are plain injected objects; tests construct isolated instances.
func NewStore(logger *logrus.Logger, ids *identity.Store) *Store {
	return &Store{logger: logger, ids: ids}
}

// Snapshot returns the canonical snapshot, or nil before the first
// accepted one. Callers must not mutate the result.
func (s *Store) Snapshot() *protocol.RoomSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Subscribe registers fn to run after every accepted Apply and after
// Reset (with a nil snapshot). Callbacks run synchronously on the
// applying goroutine, outside the store lock.
func (s *Store) Subscribe(fn func(*protocol.RoomSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Apply ingests a snapshot from either transport.
//
// Fencing: a snapshot for any room other than the one in the identity
// store is discarded with a log line and nothing else. This is what
// makes stale in-flight responses after a rapid leave/join harmless.
//
// Ordering: a snapshot whose version is not strictly greater than the
// held one is discarded, so a late push cannot roll state backward.
//
// Accepted snapshots replace the previous one wholesale and re-derive
// the host flag from snapshot content.
func (s *Store) Apply(snap *protocol.RoomSnapshot) bool {
	if err := snap.Normalize(); err != nil {
		s.logger.Warnf("state: dropping snapshot: %v", err)
		return false
	}

	s.mu.Lock()
	id := s.ids.Current()
	if snap.RoomCode != id.RoomCode {
		s.mu.Unlock()
		s.logger.Infof("state: discarding snapshot for room %s (current room %q)", snap.RoomCode, id.RoomCode)
		return false
	}
	if s.snapshot != nil && snap.Version <= s.snapshot.Version {
		s.mu.Unlock()
		s.logger.Infof("state: discarding stale snapshot v%d for room %s (have v%d)", snap.Version, snap.RoomCode, s.snapshot.Version)
		return false
	}
	s.snapshot = snap
	subs := append([]func(*protocol.RoomSnapshot){}, s.subs...)
	s.mu.Unlock()

	if err := s.ids.SetHost(snap.HostID == id.PlayerID); err != nil {
		s.logger.Warnf("state: failed to persist host flag: %v", err)
	}

	for _, fn := range subs {
		fn(snap)
	}
	return true
}

// Reset drops the canonical snapshot and clears the identity. Used when
// the player leaves, the host deletes the room, or the server reports
// the session gone.
func (s *Store) Reset() {
	s.mu.Lock()
	s.snapshot = nil
	subs := append([]func(*protocol.RoomSnapshot){}, s.subs...)
	s.mu.Unlock()

	if err := s.ids.Clear(); err != nil {
		s.logger.Warnf("state: failed to clear identity: %v", err)
	}
	for _, fn := range subs {
		fn(nil)
	}
}
