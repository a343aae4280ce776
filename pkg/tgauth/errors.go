package tgauth

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPayload      = errors.New("payload is empty")
	ErrMalformedPair     = errors.New("malformed query pair")
	ErrMissingHash       = errors.New("hash field not found")
	ErrEmptyHash         = errors.New("hash is empty")
	ErrInvalidHashFormat = errors.New("invalid hash format")
	ErrHashMismatch      = errors.New("hash verification failed")
	ErrExpired           = errors.New("data has expired")
	ErrInvalidBotToken   = errors.New("invalid bot token")
	ErrInvalidUserShape  = errors.New("invalid user shape")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrEmptyPayload, "empty_payload"},
	{ErrMalformedPair, "malformed_pair"},
	{ErrMissingHash, "missing_hash"},
	{ErrEmptyHash, "empty_hash"},
	{ErrInvalidHashFormat, "invalid_hash_format"},
	{ErrHashMismatch, "hash_mismatch"},
	{ErrExpired, "expired"},
	{ErrInvalidBotToken, "invalid_bot_token"},
	{ErrInvalidUserShape, "invalid_user_shape"},
}

func wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// KindOf returns a stable snake_case name of the validation failure carried by
// err, "" for nil and "unknown" for errors that did not come from this package.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}

func IsExpired(err error) bool {
	return errors.Is(err, ErrExpired)
}

func IsHashMismatch(err error) bool {
	return errors.Is(err, ErrHashMismatch)
}

func IsInvalidBotToken(err error) bool {
	return errors.Is(err, ErrInvalidBotToken)
}

// IsStructural reports whether err was raised before any signature work, i.e.
// the payload could not even be canonicalized.
func IsStructural(err error) bool {
	return errors.Is(err, ErrEmptyPayload) ||
		errors.Is(err, ErrMalformedPair) ||
		errors.Is(err, ErrMissingHash)
}
