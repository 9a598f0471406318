package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame types accepted from clients (C2S).
const (
	TypeJoinRoom     = "join-room"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
)

// Frame types pushed to clients (S2C).
const (
	TypeRoomJoined = "room-joined"
	TypeUserJoined = "user-joined"
	TypeUserLeft   = "user-left"
	TypeRoomClosed = "room-closed"
	TypeError      = "error"
)

// ErrUnknownType marks a frame whose type field is none of the accepted
// signaling types. The connection survives it; the sender gets an error
// frame back.
var ErrUnknownType = errors.New("unknown frame type")

// Frame is the single wire shape for all C2S and S2C websocket messages.
// Which fields are populated depends on Type; Data carries the SDP/ICE
// payload for offer/answer/ice-candidate and is never inspected by the
// server.
type Frame struct {
	Type         string          `json:"type"`
	RoomID       string          `json:"room_id,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	FromUser     string          `json:"from_user,omitempty"`
	Participants []string        `json:"participants,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// ParseFrame decodes one inbound frame and validates the fields its type
// requires. A frame that fails here has not touched any registry state.
func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Type {
	case TypeJoinRoom:
		if f.RoomID == "" {
			return nil, errors.New("join-room frame is missing room_id")
		}
	case TypeOffer, TypeAnswer, TypeICECandidate:
		if len(f.Data) == 0 {
			return nil, fmt.Errorf("%s frame is missing data", f.Type)
		}
	case "":
		return nil, errors.New("frame is missing type")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}

	return &f, nil
}

// errorFrame builds the S2C error frame sent back for rejected input.
func errorFrame(detail string) *Frame {
	return &Frame{Type: TypeError, Error: detail}
}
