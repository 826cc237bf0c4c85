// internal/session/session_test.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmattson/presidents-client/internal/api"
	"github.com/jmattson/presidents-client/internal/auth"
	"github.com/jmattson/presidents-client/internal/identity"
	"github.com/jmattson/presidents-client/internal/state"
)

// fakeService is a minimal in-memory stand-in for the rules engine's
// room lifecycle endpoints: it assigns a fresh player id on every create
// and join, which is what the round-trip property depends on.
type fakeService struct {
	nextPlayer int
	version    int64
	roomCode   string
	members    map[string]bool
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/create_room", func(w http.ResponseWriter, r *http.Request) {
		f.nextPlayer++
		f.version++
		pid := fmt.Sprintf("p-%d", f.nextPlayer)
		f.roomCode = "AB12"
		f.members = map[string]bool{pid: true}
		writeJSON(w, map[string]any{
			"success": true, "room_code": f.roomCode, "player_id": pid, "player_name": "Ana",
			"snapshot": map[string]any{"version": f.version, "room_code": f.roomCode, "host_id": pid},
		})
	})
	mux.HandleFunc("/join_room", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RoomCode string `json:"room_code"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.RoomCode != f.roomCode {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "no such room"})
			return
		}
		f.nextPlayer++
		f.version++
		pid := fmt.Sprintf("p-%d", f.nextPlayer)
		f.members[pid] = true
		writeJSON(w, map[string]any{
			"success": true, "room_code": f.roomCode, "player_id": pid, "player_name": "Ana",
			"snapshot": map[string]any{"version": f.version, "room_code": f.roomCode, "host_id": "p-1"},
		})
	})
	mux.HandleFunc("/leave_room", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PlayerID string `json:"player_id"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		delete(f.members, body.PlayerID)
		writeJSON(w, map[string]any{"success": true})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestSession(t *testing.T, h http.Handler) (*Session, *identity.Store, *state.Store) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	ids := identity.NewStore(logger, filepath.Join(t.TempDir(), "identity"))
	store := state.NewStore(logger, ids)
	client := api.NewClient(logger, srv.URL, auth.NewTokenProvider(logger, ""), ids)
	return New(logger, client, ids, store), ids, store
}

func TestCreateLeaveJoinAssignsFreshPlayerID(t *testing.T) {
	svc := &fakeService{}
	sess, ids, store := newTestSession(t, svc.handler())
	ctx := context.Background()

	code, err := sess.CreateRoom(ctx, "presidents", "Ana")
	require.NoError(t, err)
	require.Equal(t, "AB12", code)
	first := ids.Current()
	assert.True(t, first.IsHost)
	require.NotNil(t, store.Snapshot())

	require.NoError(t, sess.LeaveRoom(ctx))
	assert.False(t, ids.Current().InRoom())
	assert.Nil(t, store.Snapshot())

	require.NoError(t, sess.JoinRoom(ctx, code, "Ana"))
	second := ids.Current()
	assert.Equal(t, first.RoomCode, second.RoomCode)
	assert.NotEqual(t, first.PlayerID, second.PlayerID, "rejoining must assign a fresh player id")
}

func TestJoinFailureLeavesStateUntouched(t *testing.T) {
	svc := &fakeService{}
	sess, ids, store := newTestSession(t, svc.handler())

	err := sess.JoinRoom(context.Background(), "ZZ99", "Ana")
	var rerr *api.RequestError
	require.ErrorAs(t, err, &rerr)
	assert.False(t, ids.Current().InRoom())
	assert.Nil(t, store.Snapshot())
}

func TestLeaveResetsEvenWhenServiceFails(t *testing.T) {
	sess, ids, store := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "boom"})
	}))
	require.NoError(t, ids.Set(identity.Identity{PlayerID: "p-1", RoomCode: "AB12"}))

	require.NoError(t, sess.LeaveRoom(context.Background()))
	assert.False(t, ids.Current().InRoom())
	assert.Nil(t, store.Snapshot())
}

func TestInvalidSessionForcesFullReset(t *testing.T) {
	sess, ids, store := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "Room not found"})
	}))
	require.NoError(t, ids.Set(identity.Identity{PlayerID: "p-1", RoomCode: "AB12"}))

	var invalidReason string
	sess.OnSessionInvalid = func(reason string) { invalidReason = reason }

	err := sess.PassTurn(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsInvalidSession(err))
	assert.False(t, ids.Current().InRoom())
	assert.Nil(t, store.Snapshot())
	assert.NotEmpty(t, invalidReason)
}

func TestGuardedActionsWithoutRoom(t *testing.T) {
	svc := &fakeService{}
	sess, _, _ := newTestSession(t, svc.handler())

	var verr *api.ValidationError
	require.ErrorAs(t, sess.StartRound(context.Background()), &verr)
	require.ErrorAs(t, sess.RefreshState(context.Background()), &verr)
}
