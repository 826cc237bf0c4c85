// internal/interrupt/interrupt_test.go
package interrupt

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmattson/presidents-client/internal/api"
	"github.com/jmattson/presidents-client/internal/identity"
	"github.com/jmattson/presidents-client/internal/protocol"
)

// mockSubmitter records forwarded bids instead of calling the service.
type mockSubmitter struct {
	mu    sync.Mutex
	calls []submittedBid
	err   error
}

type submittedBid struct {
	cards []protocol.Card
	typ   string
	rank  string
}

func (m *mockSubmitter) SubmitInterruptBid(_ context.Context, cards []protocol.Card, typ, rank string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, submittedBid{cards: cards, typ: typ, rank: rank})
	return nil
}

func (m *mockSubmitter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func setupHandler(t *testing.T) (*Handler, *mockSubmitter, *identity.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	ids := identity.NewStore(logger, filepath.Join(t.TempDir(), "identity"))
	require.NoError(t, ids.Set(identity.Identity{PlayerID: "p-me", RoomCode: "AB12"}))
	ms := &mockSubmitter{}
	return NewHandler(logger, ids, ms), ms, ids
}

func withWindow(room, typ, initiator, rank string) *protocol.RoomSnapshot {
	return &protocol.RoomSnapshot{
		Version:  1,
		RoomCode: room,
		HostID:   initiator,
		Interrupt: &protocol.InterruptWindow{
			Active:      true,
			Type:        typ,
			InitiatorID: initiator,
			Rank:        rank,
			Deadline:    time.Now().Unix() + 15,
		},
	}
}

func card(id, rank string) protocol.Card {
	return protocol.Card{ID: id, Rank: rank, Suit: "S"}
}

func TestThreePlayRejectsMixedRanks(t *testing.T) {
	h, ms, _ := setupHandler(t)
	h.Observe(withWindow("AB12", protocol.InterruptThreePlay, "p-other", "3"))

	err := h.SubmitBid(context.Background(), []protocol.Card{card("c1", "3"), card("c2", "7")})
	var verr *api.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "only 3s allowed")
	assert.Zero(t, ms.callCount(), "rejected bid must not reach the network")
}

func TestThreePlayAcceptsAllStallRank(t *testing.T) {
	h, ms, _ := setupHandler(t)
	h.Observe(withWindow("AB12", protocol.InterruptThreePlay, "p-other", "3"))

	require.NoError(t, h.SubmitBid(context.Background(), []protocol.Card{card("c1", "3"), card("c2", "3")}))
	require.Equal(t, 1, ms.callCount())
	assert.Equal(t, protocol.InterruptThreePlay, ms.calls[0].typ)
}

func TestBombOpportunityCardCountAndRank(t *testing.T) {
	h, ms, _ := setupHandler(t)
	h.Observe(withWindow("AB12", protocol.InterruptBombOpportunity, "p-other", "Q"))

	// Two queens: accepted and forwarded.
	require.NoError(t, h.SubmitBid(context.Background(), []protocol.Card{card("c1", "Q"), card("c2", "Q")}))
	require.Equal(t, 1, ms.callCount())
	assert.Equal(t, "Q", ms.calls[0].rank)

	// Four cards on a fresh window: rejected locally.
	h.Observe(withWindow("AB12", protocol.InterruptBombOpportunity, "p-third", "Q"))
	err := h.SubmitBid(context.Background(), []protocol.Card{
		card("d1", "Q"), card("d2", "Q"), card("d3", "Q"), card("d4", "Q"),
	})
	var verr *api.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "1-3 cards only")

	// Mixed ranks: rejected locally.
	err = h.SubmitBid(context.Background(), []protocol.Card{card("d1", "Q"), card("d2", "K")})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, ms.callCount())
}

func TestSecondResponseRejectedLocally(t *testing.T) {
	h, ms, _ := setupHandler(t)
	h.Observe(withWindow("AB12", protocol.InterruptThreePlay, "p-other", "3"))

	require.NoError(t, h.SubmitBid(context.Background(), []protocol.Card{card("c1", "3")}))

	err := h.SubmitBid(context.Background(), []protocol.Card{card("c2", "3")})
	var verr *api.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "already responded")

	// Pass after a bid is equally a second response.
	err = h.Pass(context.Background())
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, ms.callCount(), "exactly one call for the whole window")
}

func TestPassIsARealResponse(t *testing.T) {
	h, ms, _ := setupHandler(t)
	h.Observe(withWindow("AB12", protocol.InterruptThreePlay, "p-other", "3"))

	require.NoError(t, h.Pass(context.Background()))
	require.Equal(t, 1, ms.callCount())
	assert.Empty(t, ms.calls[0].cards)

	var verr *api.ValidationError
	require.ErrorAs(t, h.Pass(context.Background()), &verr)
}

func TestInitiatorCannotRespond(t *testing.T) {
	h, ms, _ := setupHandler(t)
	h.Observe(withWindow("AB12", protocol.InterruptThreePlay, "p-me", "3"))

	var verr *api.ValidationError
	require.ErrorAs(t, h.SubmitBid(context.Background(), []protocol.Card{card("c1", "3")}), &verr)
	require.ErrorAs(t, h.Pass(context.Background()), &verr)
	assert.Zero(t, ms.callCount())
}

func TestNewWindowResetsResponseTracking(t *testing.T) {
	h, ms, _ := setupHandler(t)
	h.Observe(withWindow("AB12", protocol.InterruptThreePlay, "p-other", "3"))
	require.NoError(t, h.Pass(context.Background()))

	// The window closes and a new one opens later; the player may
	// respond again.
	h.Observe(&protocol.RoomSnapshot{Version: 2, RoomCode: "AB12", HostID: "p-other"})
	assert.False(t, h.Active())

	h.Observe(withWindow("AB12", protocol.InterruptBombOpportunity, "p-other", "9"))
	require.NoError(t, h.SubmitBid(context.Background(), []protocol.Card{card("x1", "9")}))
	assert.Equal(t, 2, ms.callCount())
}

func TestFailedSubmitDoesNotConsumeResponse(t *testing.T) {
	h, ms, _ := setupHandler(t)
	h.Observe(withWindow("AB12", protocol.InterruptThreePlay, "p-other", "3"))

	ms.err = errors.New("boom")
	require.Error(t, h.SubmitBid(context.Background(), []protocol.Card{card("c1", "3")}))

	// The network call failed, so the player may retry.
	ms.err = nil
	require.NoError(t, h.SubmitBid(context.Background(), []protocol.Card{card("c1", "3")}))
}

func TestNoWindowMeansValidationError(t *testing.T) {
	h, ms, _ := setupHandler(t)
	var verr *api.ValidationError
	require.ErrorAs(t, h.SubmitBid(context.Background(), []protocol.Card{card("c1", "3")}), &verr)
	require.ErrorAs(t, h.Pass(context.Background()), &verr)
	assert.Zero(t, ms.callCount())
	assert.Zero(t, h.Remaining())
}
