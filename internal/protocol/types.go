// internal/protocol/types.go
package protocol

import (
	"errors"
	"fmt"
)

// Interrupt window types announced by the rules engine inside a snapshot.
const (
	InterruptThreePlay       = "three_play"
	InterruptBombOpportunity = "bomb_opportunity"
)

// StallRank is the rank a THREE_PLAY interrupt accepts. The rules engine
// treats threes as stall cards; the client mirrors that constant so bids
// can be rejected before a round trip.
const StallRank = "3"

// Card is a single card as the service exposes it to this client. The
// client treats rank/suit as opaque labels except where interrupt
// validation requires comparing ranks.
type Card struct {
	ID   string `json:"id"`
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

// PlayerView is one seat in the room as visible to every player.
// Hand contents of other players are never transmitted, only HandSize.
type PlayerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	HandSize int    `json:"hand_size"`
	IsActive bool   `json:"is_active"`
	Rank     string `json:"rank,omitempty"`
}

// InterruptBid is one player's submitted counter-play inside an
// interrupt window. Cards is empty for an explicit pass.
type InterruptBid struct {
	PlayerID string `json:"player_id"`
	Cards    []Card `json:"cards"`
}

// InterruptWindow is the server-announced, time-boxed bidding window
// embedded in a snapshot. Deadline is epoch seconds; any countdown the
// client derives from it is display-only.
type InterruptWindow struct {
	Active             bool           `json:"active"`
	Type               string         `json:"type"`
	InitiatorID        string         `json:"initiator_id"`
	Rank               string         `json:"rank"`
	Deadline           int64          `json:"deadline"`
	Bids               []InterruptBid `json:"bids,omitempty"`
	RespondedPlayerIDs []string       `json:"responded_player_ids,omitempty"`
}

// RoomSnapshot is the complete, self-contained description of one room.
// Every snapshot replaces the previous one wholesale; there is no
// field-level merging anywhere in the client.
//
// Version is assigned by the service and increases monotonically per
// room. The reconciler discards any snapshot whose version is not
// strictly greater than the one it already holds.
type RoomSnapshot struct {
	Version             int64            `json:"version"`
	RoomCode            string           `json:"room_code"`
	HostID              string           `json:"host_id"`
	GameStarted         bool             `json:"game_started"`
	GameOver            bool             `json:"game_over"`
	Players             []PlayerView     `json:"players"`
	YourHand            []Card           `json:"your_hand,omitempty"`
	Pile                []Card           `json:"pile,omitempty"`
	CurrentTurnPlayerID string           `json:"current_turn_player_id"`
	MinPlayers          int              `json:"min_players"`
	MaxPlayers          int              `json:"max_players"`
	Interrupt           *InterruptWindow `json:"interrupt,omitempty"`
}

// LobbyEntry is one open room in the lobby directory. The directory has
// its own lifecycle, independent of any joined room.
type LobbyEntry struct {
	RoomCode       string `json:"room_code"`
	GameType       string `json:"game_type"`
	HostName       string `json:"host_name"`
	CurrentPlayers int    `json:"current_players"`
	MaxPlayers     int    `json:"max_players"`
	Status         string `json:"status"`
}

// ErrMalformedSnapshot indicates a push or response body that does not
// satisfy the required snapshot schema.
var ErrMalformedSnapshot = errors.New("malformed room snapshot")

// Normalize validates the required fields of a snapshot at the ingestion
// boundary, so the rest of the client never has to re-check field
// presence. It mutates nothing beyond defaulting nil slices.
func (s *RoomSnapshot) Normalize() error {
	if s == nil {
		return ErrMalformedSnapshot
	}
	if s.RoomCode == "" {
		return fmt.Errorf("%w: missing room_code", ErrMalformedSnapshot)
	}
	if s.HostID == "" {
		return fmt.Errorf("%w: missing host_id", ErrMalformedSnapshot)
	}
	if s.Version < 0 {
		return fmt.Errorf("%w: negative version %d", ErrMalformedSnapshot, s.Version)
	}
	if s.Players == nil {
		s.Players = []PlayerView{}
	}
	if s.YourHand == nil {
		s.YourHand = []Card{}
	}
	if s.Pile == nil {
		s.Pile = []Card{}
	}
	if s.Interrupt != nil {
		switch s.Interrupt.Type {
		case InterruptThreePlay, InterruptBombOpportunity:
		default:
			return fmt.Errorf("%w: unknown interrupt type %q", ErrMalformedSnapshot, s.Interrupt.Type)
		}
		if s.Interrupt.RespondedPlayerIDs == nil {
			s.Interrupt.RespondedPlayerIDs = []string{}
		}
	}
	return nil
}

// InterruptActive reports whether the snapshot carries a live interrupt
// window. A present-but-inactive window counts as closed.
func (s *RoomSnapshot) InterruptActive() bool {
	return s != nil && s.Interrupt != nil && s.Interrupt.Active
}
