package domain

import "encoding/json"

// StreamMsgType tags an inbound push-channel envelope.
type StreamMsgType string

const (
	MsgTile      StreamMsgType = "tile"
	MsgHeartbeat StreamMsgType = "heartbeat"
	// MsgUnknown covers every envelope the client does not understand.
	// Unknown messages are dropped without error per the wire contract.
	MsgUnknown StreamMsgType = ""
)

// StreamMessage is the decoded form of one push-channel envelope. Tile is
// populated only when Type is MsgTile.
type StreamMessage struct {
	Type StreamMsgType
	Tile *PartialTile
}

// DecodeStreamMessage narrows a raw envelope into a StreamMessage. Malformed
// frames, unknown types, and tile payloads without a symbol all come back as
// MsgUnknown with ok=false; they carry no information the client can act on.
func DecodeStreamMessage(raw []byte) (StreamMessage, bool) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return StreamMessage{}, false
	}

	switch StreamMsgType(envelope.Type) {
	case MsgHeartbeat:
		return StreamMessage{Type: MsgHeartbeat}, true
	case MsgTile:
		var tile PartialTile
		if err := json.Unmarshal(envelope.Data, &tile); err != nil {
			return StreamMessage{}, false
		}
		if tile.Symbol == "" {
			return StreamMessage{}, false
		}
		return StreamMessage{Type: MsgTile, Tile: &tile}, true
	default:
		return StreamMessage{}, false
	}
}
