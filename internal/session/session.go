// internal/session/session.go
package session

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jmattson/presidents-client/internal/api"
	"github.com/jmattson/presidents-client/internal/identity"
	"github.com/jmattson/presidents-client/internal/protocol"
	"github.com/jmattson/presidents-client/internal/state"
)

// Session drives the command path of the client: each room lifecycle
// action calls the command client, and on success updates the identity
// store first and then feeds the returned snapshot into the reconciler.
// Push traffic reaches the same reconciler through the connection
// manager; Session never touches the socket.
type Session struct {
	logger *logrus.Logger
	client *api.Client
	ids    *identity.Store
	store  *state.Store

	// OnSessionInvalid fires after a command reveals that the room or
	// player no longer exists server-side and local state has been
	// reset. The UI should navigate to a neutral screen.
	OnSessionInvalid func(reason string)
}

// New wires a session over its collaborators.
func New(logger *logrus.Logger, client *api.Client, ids *identity.Store, store *state.Store) *Session {
	return &Session{logger: logger, client: client, ids: ids, store: store}
}

// CreateRoom creates a room hosted by playerName and establishes the
// local identity from the assigned player id before applying the
// returned snapshot.
func (s *Session) CreateRoom(ctx context.Context, gameType, playerName string) (string, error) {
	res, err := s.client.CreateRoom(ctx, gameType, playerName)
	if err != nil {
		return "", err
	}
	if err := s.ids.Set(identity.Identity{
		PlayerID:   res.PlayerID,
		PlayerName: res.PlayerName,
		RoomCode:   res.RoomCode,
		IsHost:     true,
	}); err != nil {
		s.logger.Warnf("session: failed to persist identity: %v", err)
	}
	if res.Snapshot != nil {
		s.store.Apply(res.Snapshot)
	}
	return res.RoomCode, nil
}

// JoinRoom joins an existing room. The server assigns a fresh player id
// on every join, even for a code this client held before.
func (s *Session) JoinRoom(ctx context.Context, roomCode, playerName string) error {
	res, err := s.client.JoinRoom(ctx, roomCode, playerName)
	if err != nil {
		return err
	}
	if err := s.ids.Set(identity.Identity{
		PlayerID:   res.PlayerID,
		PlayerName: res.PlayerName,
		RoomCode:   res.RoomCode,
	}); err != nil {
		s.logger.Warnf("session: failed to persist identity: %v", err)
	}
	if res.Snapshot != nil {
		s.store.Apply(res.Snapshot)
	}
	return nil
}

// LeaveRoom tells the service this player is leaving, then resets local
// state regardless of the outcome. A failed leave call must not trap the
// player in a room they can no longer see.
func (s *Session) LeaveRoom(ctx context.Context) error {
	id := s.ids.Current()
	if id.InRoom() {
		if err := s.client.LeaveRoom(ctx, id.RoomCode, id.PlayerID); err != nil {
			s.logger.Warnf("session: leave_room call failed: %v", err)
		}
	} else {
		s.logger.Warn("session: leave requested without an active room")
	}
	s.store.Reset()
	return nil
}

// DeleteRoom tears the room down (host only, server-enforced), then
// resets local state the same way LeaveRoom does.
func (s *Session) DeleteRoom(ctx context.Context) error {
	id := s.ids.Current()
	if id.InRoom() {
		if err := s.client.DeleteRoom(ctx, id.RoomCode, id.PlayerID); err != nil {
			s.logger.Warnf("session: delete_room call failed: %v", err)
		}
	} else {
		s.logger.Warn("session: delete requested without an active room")
	}
	s.store.Reset()
	return nil
}

// StartRound asks the service to deal and begin play.
func (s *Session) StartRound(ctx context.Context) error {
	id := s.ids.Current()
	if !id.InRoom() {
		return &api.ValidationError{Reason: "no active room identity"}
	}
	return s.checkSession(s.client.StartRound(ctx, id.RoomCode, id.PlayerID))
}

// PlayCards submits a normal-turn play.
func (s *Session) PlayCards(ctx context.Context, cards []protocol.Card) error {
	return s.checkSession(s.client.PlayCards(ctx, cards))
}

// PassTurn passes the current turn.
func (s *Session) PassTurn(ctx context.Context) error {
	return s.checkSession(s.client.PassTurn(ctx))
}

// RefreshState pulls the room snapshot once and runs it through the
// reconciler, exactly like a push would be.
func (s *Session) RefreshState(ctx context.Context) error {
	id := s.ids.Current()
	if !id.InRoom() {
		return &api.ValidationError{Reason: "no active room identity"}
	}
	snap, err := s.client.FetchRoomState(ctx, id.RoomCode, id.PlayerID)
	if err != nil {
		return s.checkSession(err)
	}
	s.store.Apply(snap)
	return nil
}

// checkSession watches command failures for the one error class that
// forces a full reset: the server no longer knows this room or player.
// Transport and request errors pass through untouched so a reconnect or
// a corrected input can recover.
func (s *Session) checkSession(err error) error {
	if err == nil {
		return nil
	}
	if api.IsInvalidSession(err) && s.ids.Current().InRoom() {
		s.logger.Warnf("session: server reports session gone: %v", err)
		s.store.Reset()
		if s.OnSessionInvalid != nil {
			s.OnSessionInvalid(err.Error())
		}
	}
	return err
}
