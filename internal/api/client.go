// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jmattson/presidents-client/internal/auth"
	"github.com/jmattson/presidents-client/internal/identity"
	"github.com/jmattson/presidents-client/internal/protocol"
)

// Client is the stateless request/response wrapper for room lifecycle
// actions. It never mutates canonical state itself; callers feed its
// results into the identity store and the reconciler. Every failure is
// returned as one of the typed errors in errors.go, never a panic.
type Client struct {
	logger  *logrus.Logger
	baseURL string
	http    *http.Client
	tokens  *auth.TokenProvider
	ids     *identity.Store
}

// NewClient builds a command client against baseURL. The identity store
// is consulted only to guard actions that require an established room
// membership.
func NewClient(logger *logrus.Logger, baseURL string, tokens *auth.TokenProvider, ids *identity.Store) *Client {
	return &Client{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(logger),
		tokens:  tokens,
		ids:     ids,
	}
}

// RoomResult is the success payload of CreateRoom and JoinRoom. The
// assigned player identity must be stored before anything else happens.
type RoomResult struct {
	RoomCode   string                 `json:"room_code"`
	PlayerID   string                 `json:"player_id"`
	PlayerName string                 `json:"player_name"`
	Snapshot   *protocol.RoomSnapshot `json:"snapshot"`
}

// UserProfile is the profile-and-stats payload for a player.
type UserProfile struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	GamesPlayed int    `json:"games_played"`
	GamesWon    int    `json:"games_won"`
}

// GameRecord is one entry of a player's game history.
type GameRecord struct {
	RoomCode   string `json:"room_code"`
	GameType   string `json:"game_type"`
	Rank       string `json:"rank"`
	FinishedAt int64  `json:"finished_at"`
}

// CreateRoom asks the service for a new room hosted by playerName.
func (c *Client) CreateRoom(ctx context.Context, gameType, playerName string) (*RoomResult, error) {
	if playerName == "" {
		return nil, &ValidationError{Reason: "player name is required"}
	}
	var res RoomResult
	err := c.post(ctx, "/create_room", map[string]any{
		"game_type":   gameType,
		"player_name": playerName,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// JoinRoom joins an existing room by its short code.
func (c *Client) JoinRoom(ctx context.Context, roomCode, playerName string) (*RoomResult, error) {
	if err := ValidateRoomCode(roomCode); err != nil {
		return nil, err
	}
	if playerName == "" {
		return nil, &ValidationError{Reason: "player name is required"}
	}
	var res RoomResult
	err := c.post(ctx, "/join_room", map[string]any{
		"room_code":   roomCode,
		"player_name": playerName,
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.RoomCode == "" {
		res.RoomCode = roomCode
	}
	return &res, nil
}

// LeaveRoom detaches the player from the room. The caller clears local
// state regardless of the outcome, mirroring the service's tolerance of
// departed players.
func (c *Client) LeaveRoom(ctx context.Context, roomCode, playerID string) error {
	return c.post(ctx, "/leave_room", map[string]any{
		"room_code": roomCode,
		"player_id": playerID,
	}, nil)
}

// DeleteRoom tears the room down. Host-only; enforcement is server-side.
func (c *Client) DeleteRoom(ctx context.Context, roomCode, playerID string) error {
	return c.post(ctx, "/delete_room", map[string]any{
		"room_code": roomCode,
		"player_id": playerID,
	}, nil)
}

// StartRound deals hands and begins play. Host-only, server-enforced.
func (c *Client) StartRound(ctx context.Context, roomCode, playerID string) error {
	return c.post(ctx, "/start_game_round", map[string]any{
		"room_code": roomCode,
		"player_id": playerID,
	}, nil)
}

// PlayCards submits a normal-turn play. Requires an established
// identity; calling it without one is a programmer error reported as a
// ValidationError rather than a crash.
func (c *Client) PlayCards(ctx context.Context, cards []protocol.Card) error {
	id, err := c.requireIdentity()
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		return &ValidationError{Reason: "no cards selected"}
	}
	return c.post(ctx, "/play_cards", map[string]any{
		"room_code": id.RoomCode,
		"player_id": id.PlayerID,
		"cards":     cards,
	}, nil)
}

// PassTurn passes the current turn. Requires an established identity.
func (c *Client) PassTurn(ctx context.Context) error {
	id, err := c.requireIdentity()
	if err != nil {
		return err
	}
	return c.post(ctx, "/pass_turn", map[string]any{
		"room_code": id.RoomCode,
		"player_id": id.PlayerID,
	}, nil)
}

// SubmitInterruptBid forwards a validated interrupt response. A nil or
// empty card slice is an explicit pass. Requires an established
// identity; rank/type validation happens in the interrupt handler before
// this call is ever made.
func (c *Client) SubmitInterruptBid(ctx context.Context, cards []protocol.Card, interruptType, interruptRank string) error {
	id, err := c.requireIdentity()
	if err != nil {
		return err
	}
	return c.post(ctx, "/submit_interrupt_bid", map[string]any{
		"room_code":      id.RoomCode,
		"player_id":      id.PlayerID,
		"cards":          cards,
		"interrupt_type": interruptType,
		"interrupt_rank": interruptRank,
	}, nil)
}

// FetchRoomState pulls the current snapshot once. The result goes
// through the same reconciler as push snapshots; there is exactly one
// ingestion policy.
func (c *Client) FetchRoomState(ctx context.Context, roomCode, playerID string) (*protocol.RoomSnapshot, error) {
	q := url.Values{}
	q.Set("room_code", roomCode)
	q.Set("player_id", playerID)
	var res struct {
		Snapshot *protocol.RoomSnapshot `json:"snapshot"`
	}
	if err := c.get(ctx, "/game_state?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	if res.Snapshot == nil {
		return nil, &TransportError{Err: fmt.Errorf("game_state response missing snapshot")}
	}
	return res.Snapshot, nil
}

// ListRooms fetches the open-room directory, optionally filtered by game
// type.
func (c *Client) ListRooms(ctx context.Context, gameType string) ([]protocol.LobbyEntry, error) {
	path := "/rooms"
	if gameType != "" {
		path += "?game_type=" + url.QueryEscape(gameType)
	}
	var res struct {
		Entries []protocol.LobbyEntry `json:"entries"`
	}
	if err := c.get(ctx, path, &res); err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// FetchUserProfile reads the profile and aggregate stats for a player.
// An empty playerID asks the service to resolve it from the auth token.
func (c *Client) FetchUserProfile(ctx context.Context, playerID string) (*UserProfile, error) {
	path := "/user_profile"
	if playerID != "" {
		path += "?player_id=" + url.QueryEscape(playerID)
	}
	var res UserProfile
	if err := c.get(ctx, path, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FetchGameHistory reads up to limit recent finished games for a player.
func (c *Client) FetchGameHistory(ctx context.Context, playerID string, limit int) ([]GameRecord, error) {
	q := url.Values{}
	if playerID != "" {
		q.Set("player_id", playerID)
	}
	q.Set("limit", fmt.Sprintf("%d", limit))
	var res struct {
		Games []GameRecord `json:"games"`
	}
	if err := c.get(ctx, "/user_game_history?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	return res.Games, nil
}

// ValidateRoomCode checks the short-code format locally: four characters
// from A-Z0-9.
func ValidateRoomCode(code string) error {
	if len(code) != 4 {
		return &ValidationError{Reason: "room code must be 4 characters"}
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return &ValidationError{Reason: "room code must use A-Z or 0-9"}
		}
	}
	return nil
}

func (c *Client) requireIdentity() (identity.Identity, error) {
	id := c.ids.Current()
	if id.PlayerID == "" || !id.InRoom() {
		return identity.Identity{}, &ValidationError{Reason: "no active room identity"}
	}
	return id, nil
}

func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &TransportError{Err: err}
	}
	return c.do(req, out)
}

// do executes the request and sorts the outcome into the error taxonomy.
func (c *Client) do(req *http.Request, out any) error {
	if hdr := c.tokens.AuthorizationHeader(); hdr != "" {
		req.Header.Set("Authorization", hdr)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return &TransportError{Err: fmt.Errorf("server returned non-JSON response (%s, status %d)", ct, resp.StatusCode)}
	}

	// The service answers errors as {"success": false, "error": "..."}
	// (older revisions used "message"); decode both.
	var outcome struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return &TransportError{Err: fmt.Errorf("decode response: %w", err)}
	}

	failed := resp.StatusCode < 200 || resp.StatusCode >= 300
	if outcome.Success != nil && !*outcome.Success {
		failed = true
	}
	if failed {
		msg := outcome.Error
		if msg == "" {
			msg = outcome.Message
		}
		if msg == "" {
			msg = resp.Status
		}
		if isSessionGone(resp.StatusCode, msg) {
			return &InvalidSessionError{Message: msg}
		}
		return &RequestError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &TransportError{Err: fmt.Errorf("decode response body: %w", err)}
		}
	}
	return nil
}

// isSessionGone recognizes the replies that mean the room or player this
// client believes it is no longer exists server-side.
func isSessionGone(status int, msg string) bool {
	if status == http.StatusNotFound || status == http.StatusGone {
		return true
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "room not found") || strings.Contains(lower, "player not in room")
}
