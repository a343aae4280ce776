package model

import (
	"time"
)

// Identity is the Telegram user vouched for by a verified payload.
type Identity struct {
	Bot          string
	Flow         string
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	PhotoURL     string
	LanguageCode string
	IsPremium    bool
	QueryID      string
	StartParam   string
	AuthDate     time.Time
}

// Session is a signed token handed back after a successful check.
type Session struct {
	Token     string
	ExpiresAt time.Time
	JTI       string
}

type Result struct {
	Identity Identity
	// nil when sessions are disabled
	Session *Session
}
