// internal/protocol/messages.go
package protocol

import "encoding/json"

// Push message types delivered over the persistent connection.
const (
	PushSnapshotUpdate = "snapshot_update"
	PushLobbyUpdate    = "lobby_update"
	PushChatMessage    = "chat_message"
	PushRoomDeleted    = "room_deleted"
)

// Outbound command types the client writes to the persistent connection.
const (
	CmdRejoinRoom = "rejoin_room"
	CmdListRooms  = "list_rooms"
)

// Envelope is the outer frame of every push message. Only Type is
// guaranteed; the remaining fields are populated per message type. Raw
// keeps the original bytes so opaque payloads (chat) can be forwarded
// verbatim without a decode/re-encode cycle.
type Envelope struct {
	Type     string          `json:"type"`
	RoomCode string          `json:"room_code,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Snapshot *RoomSnapshot   `json:"snapshot,omitempty"`
	Entries  []LobbyEntry    `json:"entries,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

// DecodeEnvelope parses a push frame, retaining the raw bytes.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	env.Raw = json.RawMessage(data)
	return &env, nil
}

// RejoinCommand is emitted once on every transition into Connected when
// an identity with a room code is already held, so the service can
// re-attach this connection to the room and replay its snapshot.
type RejoinCommand struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
}

// ListRoomsCommand requests a lobby directory push. GameType is an
// optional filter.
type ListRoomsCommand struct {
	Type     string `json:"type"`
	GameType string `json:"game_type,omitempty"`
}

// Custom WebSocket close codes used by the service. Mirrored here so the
// connection manager can distinguish a policy rejection from a transport
// failure when deciding whether to retry.
const (
	CloseBadSubprotocol = 3000 // connected with an unsupported subprotocol
	CloseInvalidToken   = 3001 // auth token invalid or expired
	CloseInvalidPlayer  = 3002 // player id malformed or unknown
	CloseInvalidRoom    = 3003 // room code in the rejoin command does not exist
)
