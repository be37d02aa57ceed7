package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChatKind(t *testing.T) {
	for _, k := range []ChatKind{ChatKindText, ChatKindSystem, ChatKindFile} {
		got, err := ParseChatKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseChatKind("VIDEO")
	assert.ErrorIs(t, err, ErrUnknownChatKind)
}

func TestValidateChatContent(t *testing.T) {
	assert.NoError(t, ValidateChatContent(strings.Repeat("é", MaxChatContentLen)), "limit counts runes")
	assert.ErrorIs(t, ValidateChatContent(strings.Repeat("a", MaxChatContentLen+1)), ErrChatContentTooLong)
}
