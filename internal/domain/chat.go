package domain

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

const MaxChatContentLen = 1000

var (
	ErrChatContentTooLong = errors.New("chat content too long")
	ErrUnknownChatKind    = errors.New("unknown chat kind")
)

type ChatKind string

const (
	ChatKindText   ChatKind = "TEXT"
	ChatKindSystem ChatKind = "SYSTEM"
	ChatKindFile   ChatKind = "FILE"
)

func ParseChatKind(s string) (ChatKind, error) {
	switch k := ChatKind(s); k {
	case ChatKindText, ChatKindSystem, ChatKindFile:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChatKind, s)
}

// ChatMessage is a persisted chat line; Timestamp is assigned by the store.
type ChatMessage struct {
	ID         int64     `json:"id"`
	RoomID     RoomID    `json:"roomId"`
	SenderID   UserID    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Kind       ChatKind  `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
}

func ValidateChatContent(content string) error {
	if utf8.RuneCountInString(content) > MaxChatContentLen {
		return ErrChatContentTooLong
	}
	return nil
}
