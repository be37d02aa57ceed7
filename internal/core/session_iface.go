package core

// SessionID identifies one live signaling connection.
type SessionID string
