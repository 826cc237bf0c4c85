// internal/identity/identity.go
package identity

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Identity is the single source of truth for "which room am I in".
// It is created when a room is created or joined, and cleared on leave,
// delete, or session invalidation.
type Identity struct {
	PlayerID   string
	PlayerName string
	RoomCode   string
	IsHost     bool
}

// InRoom reports whether the identity is attached to a room.
func (id Identity) InRoom() bool {
	return id.RoomCode != ""
}

// Store persists the identity as plain key/value pairs so a restarted
// client can attempt a rejoin immediately. The store does no network or
// validation work; it only remembers what the command client told it.
type Store struct {
	mu     sync.Mutex
	logger *logrus.Logger
	path   string
	cur    Identity
}

// NewStore creates a store backed by the file at path. Nothing is read
// until Load is called.
func NewStore(logger *logrus.Logger, path string) *Store {
	return &Store{logger: logger, path: path}
}

// Load reads the persisted identity, if any. A missing file is not an
// error; it simply yields an empty identity. Load must run before the
// connection manager's first connect so the rejoin can fire immediately.
func (s *Store) Load() (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Identity{}, nil
		}
		return Identity{}, fmt.Errorf("open identity file: %w", err)
	}
	defer f.Close()

	var id Identity
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			s.logger.Warnf("identity: skipping malformed line %q in %s", line, s.path)
			continue
		}
		switch key {
		case "playerId":
			id.PlayerID = val
		case "playerName":
			id.PlayerName = val
		case "roomCode":
			id.RoomCode = val
		case "isHost":
			id.IsHost = val == "true"
		default:
			s.logger.Debugf("identity: ignoring unknown key %q", key)
		}
	}
	if err := sc.Err(); err != nil {
		return Identity{}, fmt.Errorf("read identity file: %w", err)
	}

	s.cur = id
	if id.InRoom() {
		s.logger.Infof("identity: restored player %s in room %s", id.PlayerID, id.RoomCode)
	}
	return id, nil
}

// Current returns the identity held in memory.
func (s *Store) Current() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Set replaces the identity and persists it.
func (s *Store) Set(id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = id
	return s.writeLocked()
}

// SetHost flips only the host flag, re-deriving persistence. Used by the
// reconciler after every applied snapshot.
func (s *Store) SetHost(isHost bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur.IsHost == isHost {
		return nil
	}
	s.cur.IsHost = isHost
	return s.writeLocked()
}

// Clear wipes the identity in memory and on disk.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = Identity{}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove identity file: %w", err)
	}
	return nil
}

func (s *Store) writeLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "playerId=%s\n", s.cur.PlayerID)
	fmt.Fprintf(&b, "playerName=%s\n", s.cur.PlayerName)
	fmt.Fprintf(&b, "roomCode=%s\n", s.cur.RoomCode)
	fmt.Fprintf(&b, "isHost=%t\n", s.cur.IsHost)
	if err := os.WriteFile(s.path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}
	return nil
}
