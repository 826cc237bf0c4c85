// internal/lobby/directory_test.go
package lobby

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmattson/presidents-client/internal/protocol"
)

type mockLister struct {
	entries []protocol.LobbyEntry
	filter  string
	err     error
}

func (m *mockLister) ListRooms(_ context.Context, gameType string) ([]protocol.LobbyEntry, error) {
	m.filter = gameType
	return m.entries, m.err
}

func testDirectory(lister roomLister) *Directory {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewDirectory(logger, lister)
}

func TestRefreshPullsThroughCommandClient(t *testing.T) {
	lister := &mockLister{entries: []protocol.LobbyEntry{
		{RoomCode: "AB12", GameType: "presidents", HostName: "Ana", CurrentPlayers: 2, MaxPlayers: 8, Status: "waiting"},
	}}
	d := testDirectory(lister)

	require.NoError(t, d.Refresh(context.Background(), "presidents"))
	assert.Equal(t, "presidents", lister.filter)
	require.Len(t, d.Entries(), 1)
	assert.Equal(t, "AB12", d.Entries()[0].RoomCode)
}

func TestRefreshErrorLeavesDirectoryUntouched(t *testing.T) {
	d := testDirectory(&mockLister{err: errors.New("down")})
	d.ReplaceAll([]protocol.LobbyEntry{{RoomCode: "QQ33"}})

	require.Error(t, d.Refresh(context.Background(), ""))
	require.Len(t, d.Entries(), 1)
}

func TestReplaceAllIsWholesale(t *testing.T) {
	d := testDirectory(&mockLister{})

	var pushed [][]protocol.LobbyEntry
	d.Subscribe(func(entries []protocol.LobbyEntry) { pushed = append(pushed, entries) })

	d.ReplaceAll([]protocol.LobbyEntry{{RoomCode: "AB12"}, {RoomCode: "QQ33"}})
	d.ReplaceAll(nil)

	assert.Empty(t, d.Entries())
	require.Len(t, pushed, 2)
	assert.Len(t, pushed[0], 2)
	assert.Empty(t, pushed[1])
}
