// internal/lobby/directory.go
package lobby

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jmattson/presidents-client/internal/protocol"
)

// roomLister is the slice of the command client the directory needs.
type roomLister interface {
	ListRooms(ctx context.Context, gameType string) ([]protocol.LobbyEntry, error)
}

// Directory mirrors the list of open, joinable rooms. Its lifecycle is
// independent of any joined room: it is filled before a room is chosen
// and refreshed by directory pushes. Each update replaces the list
// wholesale; callers that want diff-based rendering diff on their side.
type Directory struct {
	mu      sync.Mutex
	logger  *logrus.Logger
	lister  roomLister
	entries []protocol.LobbyEntry
	subs    []func([]protocol.LobbyEntry)
}

// NewDirectory creates an empty directory backed by the command client.
func NewDirectory(logger *logrus.Logger, lister roomLister) *Directory {
	return &Directory{logger: logger, lister: lister}
}

// Refresh pulls the directory once through the command client,
// optionally filtered by game type. Used on startup before any push has
// arrived.
func (d *Directory) Refresh(ctx context.Context, gameTypeFilter string) error {
	entries, err := d.lister.ListRooms(ctx, gameTypeFilter)
	if err != nil {
		return err
	}
	d.ReplaceAll(entries)
	return nil
}

// ReplaceAll installs a new directory list, discarding the old one.
// Called by Refresh and by the connection manager on lobby pushes.
func (d *Directory) ReplaceAll(entries []protocol.LobbyEntry) {
	if entries == nil {
		entries = []protocol.LobbyEntry{}
	}
	d.mu.Lock()
	d.entries = entries
	subs := append([]func([]protocol.LobbyEntry){}, d.subs...)
	d.mu.Unlock()

	d.logger.Debugf("lobby: directory replaced, %d open rooms", len(entries))
	for _, fn := range subs {
		fn(entries)
	}
}

// Entries returns the current directory list. Callers must not mutate
// the returned slice.
func (d *Directory) Entries() []protocol.LobbyEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries
}

// Subscribe registers fn to run after every wholesale replacement.
func (d *Directory) Subscribe(fn func([]protocol.LobbyEntry)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, fn)
}
