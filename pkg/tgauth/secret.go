package tgauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"regexp"
	"sync"
)

// Flow selects which secret-derivation formula a payload was signed with.
type Flow int

const (
	// FlowWebApp is Mini App init data: key = HMAC-SHA256("WebAppData", token).
	FlowWebApp Flow = iota
	// FlowOAuth is the Login Widget: key = SHA-256(token).
	FlowOAuth
)

func (f Flow) String() string {
	switch f {
	case FlowWebApp:
		return "init_data"
	case FlowOAuth:
		return "oauth"
	default:
		return "unknown"
	}
}

var webAppDataKey = []byte("WebAppData")

var botTokenRe = regexp.MustCompile(`^[0-9]+:[A-Za-z0-9_-]+$`)

// CheckBotToken rejects tokens that do not look like "<bot id>:<secret>".
func CheckBotToken(token string) error {
	if token == "" {
		return wrapf(ErrInvalidBotToken, "token is empty")
	}
	if !botTokenRe.MatchString(token) {
		return wrapf(ErrInvalidBotToken, "token does not match <id>:<secret>")
	}
	return nil
}

// DeriveSecret computes the HMAC key used to sign payloads of the given flow.
func DeriveSecret(botToken string, flow Flow) ([]byte, error) {
	if err := CheckBotToken(botToken); err != nil {
		return nil, err
	}

	switch flow {
	case FlowWebApp:
		// the literal is the key, the token is the message
		mac := hmac.New(sha256.New, webAppDataKey)
		mac.Write([]byte(botToken))
		return mac.Sum(nil), nil
	case FlowOAuth:
		sum := sha256.Sum256([]byte(botToken))
		return sum[:], nil
	default:
		return nil, wrapf(ErrInvalidBotToken, "unknown flow %d", int(flow))
	}
}

// secretCell derives the secret at most once. Concurrent first callers wait
// for the same in-flight derivation.
type secretCell struct {
	get func() ([]byte, error)
}

func newSecretCell(derive func() ([]byte, error)) *secretCell {
	return &secretCell{get: sync.OnceValues(derive)}
}

func (c *secretCell) secret() ([]byte, error) {
	return c.get()
}
