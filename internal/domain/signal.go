package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMalformedPayload   = errors.New("malformed payload")
)

// MessageType is the closed set of control-plane events.
type MessageType uint8

const (
	TypeUnknown MessageType = iota
	TypeOffer
	TypeAnswer
	TypeICECandidate
	TypeJoinRoom
	TypeLeaveRoom
	TypeUserJoined
	TypeUserLeft
	TypeChatMessage
	TypeHostAction
	TypeMuteParticipant
	TypeKickParticipant
	TypeRecordingStart
	TypeRecordingStop
)

var typeNames = map[MessageType]string{
	TypeOffer:           "OFFER",
	TypeAnswer:          "ANSWER",
	TypeICECandidate:    "ICE_CANDIDATE",
	TypeJoinRoom:        "JOIN_ROOM",
	TypeLeaveRoom:       "LEAVE_ROOM",
	TypeUserJoined:      "USER_JOINED",
	TypeUserLeft:        "USER_LEFT",
	TypeChatMessage:     "CHAT_MESSAGE",
	TypeHostAction:      "HOST_ACTION",
	TypeMuteParticipant: "MUTE_PARTICIPANT",
	TypeKickParticipant: "KICK_PARTICIPANT",
	TypeRecordingStart:  "RECORDING_START",
	TypeRecordingStop:   "RECORDING_STOP",
}

var typeByName = func() map[string]MessageType {
	m := make(map[string]MessageType, len(typeNames))
	for t, n := range typeNames {
		m[n] = t
	}
	return m
}()

func ParseMessageType(s string) (MessageType, error) {
	if t, ok := typeByName[s]; ok {
		return t, nil
	}
	return TypeUnknown, fmt.Errorf("%w: %q", ErrUnknownMessageType, s)
}

func (t MessageType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// ServerOnly reports types that only the router may construct.
func (t MessageType) ServerOnly() bool {
	return t == TypeUserJoined || t == TypeUserLeft
}

func (t MessageType) MarshalJSON() ([]byte, error) {
	n, ok := typeNames[t]
	if !ok {
		return nil, ErrUnknownMessageType
	}
	return json.Marshal(n)
}

func (t *MessageType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMessageType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SignalingMessage is a control-plane event. Data is kept verbatim so
// relayed messages leave the router exactly as they arrived.
type SignalingMessage struct {
	Type         MessageType     `json:"type"`
	Data         json.RawMessage `json:"data,omitempty"`
	RoomID       RoomID          `json:"roomId"`
	UserID       UserID          `json:"userId"`
	TargetUserID UserID          `json:"targetUserId,omitempty"`
}

// DecodeSignalingMessage parses one inbound frame.
func DecodeSignalingMessage(b []byte) (SignalingMessage, error) {
	var m SignalingMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return SignalingMessage{}, err
	}
	if m.Type == TypeUnknown {
		return SignalingMessage{}, ErrUnknownMessageType
	}
	return m, nil
}

// EncodeFrame renders m for the wire. Data is written byte for byte and
// strings are not HTML-escaped.
func (m SignalingMessage) EncodeFrame() ([]byte, error) {
	name, ok := typeNames[m.Type]
	if !ok {
		return nil, ErrUnknownMessageType
	}
	if len(m.Data) > 0 && !json.Valid(m.Data) {
		return nil, fmt.Errorf("%w: data is not valid json", ErrMalformedPayload)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	field := func(key, value string) error {
		buf.WriteString(key)
		if err := enc.Encode(value); err != nil {
			return err
		}
		buf.Truncate(buf.Len() - 1) // Encode appends a newline
		return nil
	}

	if err := field(`{"type":`, name); err != nil {
		return nil, err
	}
	if len(m.Data) > 0 {
		buf.WriteString(`,"data":`)
		buf.Write(m.Data)
	}
	if err := field(`,"roomId":`, string(m.RoomID)); err != nil {
		return nil, err
	}
	if err := field(`,"userId":`, string(m.UserID)); err != nil {
		return nil, err
	}
	if m.TargetUserID != "" {
		if err := field(`,"targetUserId":`, string(m.TargetUserID)); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NewUserJoined builds the router-constructed presence event for a join.
func NewUserJoined(room RoomID, user UserID, isHost bool) SignalingMessage {
	return newPresence(TypeUserJoined, room, user, PresencePayload{UserID: user, IsHost: &isHost})
}

// NewUserLeft builds the router-constructed presence event for a leave.
func NewUserLeft(room RoomID, user UserID) SignalingMessage {
	return newPresence(TypeUserLeft, room, user, PresencePayload{UserID: user})
}

func newPresence(t MessageType, room RoomID, user UserID, p PresencePayload) SignalingMessage {
	data, _ := json.Marshal(p)
	return SignalingMessage{Type: t, Data: data, RoomID: room, UserID: user}
}
