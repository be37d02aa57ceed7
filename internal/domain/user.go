// Package domain contains entities without transport or storage logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen     = 64
	MaxSenderNameLen = 64
)

var (
	ErrUserIDTooLong = errors.New("user id too long")
	ErrUserIDEmpty   = errors.New("user id empty")
)

type UserID string

// NewUserID issues a fresh opaque identity for an anonymous connection.
func NewUserID() UserID {
	return UserID(uuid.NewString())
}

func (u UserID) Validate() error {
	if len(u) == 0 {
		return ErrUserIDEmpty
	}
	if len(u) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	return nil
}
