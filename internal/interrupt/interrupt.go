// internal/interrupt/interrupt.go
package interrupt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jmattson/presidents-client/internal/api"
	"github.com/jmattson/presidents-client/internal/identity"
	"github.com/jmattson/presidents-client/internal/protocol"
)

// bidSubmitter is the slice of the command client the handler needs.
type bidSubmitter interface {
	SubmitInterruptBid(ctx context.Context, cards []protocol.Card, interruptType, interruptRank string) error
}

// windowKey identifies one interrupt window instance. Two windows of the
// same type in the same room are distinct as long as their initiator or
// deadline differ, which is how the service announces them.
type windowKey struct {
	roomCode    string
	typ         string
	initiatorID string
	deadline    int64
}

// Handler is the ephemeral state machine for time-boxed bidding windows.
// It is driven purely by the presence or absence of an interrupt on the
// canonical snapshot; the client never initiates a window, and local
// expiry never changes any state. On top of the server-tracked window it
// layers exactly one local fact: whether this player already responded.
type Handler struct {
	mu        sync.Mutex
	logger    *logrus.Logger
	ids       *identity.Store
	submitter bidSubmitter

	window    *protocol.InterruptWindow
	key       windowKey
	responded bool

	// OnTick, when set, receives the advisory remaining seconds once per
	// second while a window is active. Display state only.
	OnTick func(remaining int64)

	tickCancel context.CancelFunc
}

// NewHandler wires the handler to the identity store and command client.
func NewHandler(logger *logrus.Logger, ids *identity.Store, submitter bidSubmitter) *Handler {
	return &Handler{logger: logger, ids: ids, submitter: submitter}
}

// Observe is the snapshot subscription entry point. A snapshot carrying
// an active window enters Active; a snapshot without one (or a nil
// snapshot from a reset) returns to Idle.
func (h *Handler) Observe(snap *protocol.RoomSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !snap.InterruptActive() {
		if h.window != nil {
			h.logger.Debugf("interrupt: window %s closed", h.key.typ)
		}
		h.clearLocked()
		return
	}

	w := snap.Interrupt
	key := windowKey{
		roomCode:    snap.RoomCode,
		typ:         w.Type,
		initiatorID: w.InitiatorID,
		deadline:    w.Deadline,
	}
	if h.window != nil && key == h.key {
		// Same window, refreshed bid/response lists.
		h.window = w
		return
	}

	h.stopTickerLocked()
	h.window = w
	h.key = key
	h.responded = false
	h.logger.Infof("interrupt: %s window opened by %s (rank %s, deadline %d)", w.Type, w.InitiatorID, w.Rank, w.Deadline)
	h.startTickerLocked()
}

// Active reports whether a bidding window is currently open.
func (h *Handler) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.window != nil
}

// Window returns the current window, or nil when idle.
func (h *Handler) Window() *protocol.InterruptWindow {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.window
}

// Remaining returns the advisory countdown in seconds, floored at zero.
// The authoritative resolution arrives as the next snapshot regardless.
func (h *Handler) Remaining() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.window == nil {
		return 0
	}
	rem := h.window.Deadline - time.Now().Unix()
	if rem < 0 {
		return 0
	}
	return rem
}

// ValidateBid checks a candidate card set against the window's rules
// without touching the network.
//
//   - three_play: every card must be the stall rank.
//   - bomb_opportunity: 1-3 cards, all of the window's rank.
func (h *Handler) ValidateBid(cards []protocol.Card) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.validateBidLocked(cards)
}

func (h *Handler) validateBidLocked(cards []protocol.Card) error {
	if h.window == nil {
		return &api.ValidationError{Reason: "no interrupt window is active"}
	}
	switch h.window.Type {
	case protocol.InterruptThreePlay:
		if len(cards) == 0 {
			return &api.ValidationError{Reason: "select at least one card"}
		}
		for _, c := range cards {
			if c.Rank != protocol.StallRank {
				return &api.ValidationError{Reason: fmt.Sprintf("only %ss allowed", protocol.StallRank)}
			}
		}
	case protocol.InterruptBombOpportunity:
		if len(cards) < 1 || len(cards) > 3 {
			return &api.ValidationError{Reason: "1-3 cards only"}
		}
		for _, c := range cards {
			if c.Rank != h.window.Rank {
				return &api.ValidationError{Reason: fmt.Sprintf("all cards must be rank %s", h.window.Rank)}
			}
		}
	default:
		return &api.ValidationError{Reason: "unknown interrupt type " + h.window.Type}
	}
	return nil
}

// SubmitBid validates and forwards a card bid for the open window. Each
// player may respond exactly once per window; a second attempt is
// rejected here, before any network call.
func (h *Handler) SubmitBid(ctx context.Context, cards []protocol.Card) error {
	h.mu.Lock()
	if err := h.guardResponseLocked(); err != nil {
		h.mu.Unlock()
		return err
	}
	if err := h.validateBidLocked(cards); err != nil {
		h.mu.Unlock()
		return err
	}
	key, typ, rank := h.key, h.window.Type, h.window.Rank
	h.mu.Unlock()

	if err := h.submitter.SubmitInterruptBid(ctx, cards, typ, rank); err != nil {
		return err
	}
	h.markRespondedFor(key)
	return nil
}

// Pass declines the open window. Passing is a real response, distinct
// from bidding zero cards, and still consumes the player's single
// response for this window.
func (h *Handler) Pass(ctx context.Context) error {
	h.mu.Lock()
	if err := h.guardResponseLocked(); err != nil {
		h.mu.Unlock()
		return err
	}
	key, typ, rank := h.key, h.window.Type, h.window.Rank
	h.mu.Unlock()

	if err := h.submitter.SubmitInterruptBid(ctx, nil, typ, rank); err != nil {
		return err
	}
	h.markRespondedFor(key)
	return nil
}

func (h *Handler) guardResponseLocked() error {
	if h.window == nil {
		return &api.ValidationError{Reason: "no interrupt window is active"}
	}
	id := h.ids.Current()
	if id.PlayerID == h.window.InitiatorID {
		return &api.ValidationError{Reason: "the initiator cannot respond to their own interrupt"}
	}
	if h.responded {
		return &api.ValidationError{Reason: "already responded to this interrupt"}
	}
	return nil
}

// markRespondedFor records a completed response, unless the window has
// already rolled over to a different one while the call was in flight.
func (h *Handler) markRespondedFor(key windowKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.window != nil && h.key == key {
		h.responded = true
	}
}

func (h *Handler) clearLocked() {
	h.stopTickerLocked()
	h.window = nil
	h.key = windowKey{}
	h.responded = false
}

func (h *Handler) startTickerLocked() {
	if h.OnTick == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.tickCancel = cancel
	deadline := h.window.Deadline
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rem := deadline - time.Now().Unix()
				if rem < 0 {
					rem = 0
				}
				h.OnTick(rem)
				if rem == 0 {
					// Countdown is display-only. The window stays open
					// until a snapshot says otherwise.
					return
				}
			}
		}
	}()
}

func (h *Handler) stopTickerLocked() {
	if h.tickCancel != nil {
		h.tickCancel()
		h.tickCancel = nil
	}
}
