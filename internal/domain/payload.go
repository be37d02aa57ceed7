package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is the typed view of SignalingMessage.Data; the concrete
// variant is selected by the message type.
type Payload interface {
	isPayload()
}

type ChatPayload struct {
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp,omitempty"`
}

type HostActionPayload struct {
	Action       string `json:"action"`
	TargetUserID UserID `json:"targetUserId,omitempty"`
}

// PresencePayload is carried by USER_JOINED (with IsHost) and USER_LEFT.
type PresencePayload struct {
	UserID UserID `json:"userId"`
	IsHost *bool  `json:"isHost,omitempty"`
}

// MembershipPayload is the optional body of JOIN_ROOM / LEAVE_ROOM.
type MembershipPayload struct {
	t           MessageType
	DisplayName string `json:"displayName,omitempty"`
}

// OpaquePayload is relayed between peers without inspection.
type OpaquePayload struct {
	t   MessageType
	Raw json.RawMessage
}

func (ChatPayload) isPayload()       {}
func (HostActionPayload) isPayload() {}
func (PresencePayload) isPayload()   {}
func (MembershipPayload) isPayload() {}
func (OpaquePayload) isPayload()     {}

// Type reports which membership event carried the payload.
func (p MembershipPayload) Type() MessageType { return p.t }

// Type reports which pass-through event carried the payload.
func (p OpaquePayload) Type() MessageType { return p.t }

// Payload decodes Data into the variant that belongs to m.Type.
func (m SignalingMessage) Payload() (Payload, error) {
	switch m.Type {
	case TypeChatMessage:
		return m.ChatPayload()
	case TypeHostAction:
		var p HostActionPayload
		if err := decodeData(m.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeUserJoined, TypeUserLeft:
		var p PresencePayload
		if err := decodeData(m.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeJoinRoom, TypeLeaveRoom:
		p := MembershipPayload{t: m.Type}
		if len(m.Data) > 0 && string(m.Data) != "null" {
			// Membership bodies are optional and never required for dispatch.
			_ = json.Unmarshal(m.Data, &p)
		}
		return p, nil
	case TypeUnknown:
		return nil, ErrUnknownMessageType
	default:
		return OpaquePayload{t: m.Type, Raw: m.Data}, nil
	}
}

// ChatPayload requires both senderName and content.
func (m SignalingMessage) ChatPayload() (ChatPayload, error) {
	var p ChatPayload
	if err := decodeData(m.Data, &p); err != nil {
		return ChatPayload{}, err
	}
	if strings.TrimSpace(p.SenderName) == "" {
		return ChatPayload{}, fmt.Errorf("%w: senderName missing", ErrMalformedPayload)
	}
	if strings.TrimSpace(p.Content) == "" {
		return ChatPayload{}, fmt.Errorf("%w: content missing", ErrMalformedPayload)
	}
	if len(p.SenderName) > MaxSenderNameLen {
		return ChatPayload{}, fmt.Errorf("%w: senderName too long", ErrMalformedPayload)
	}
	if err := ValidateChatContent(p.Content); err != nil {
		return ChatPayload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: data missing", ErrMalformedPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
