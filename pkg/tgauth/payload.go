package tgauth

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	HashKey     = "hash"
	AuthDateKey = "auth_date"
	UserKey     = "user"
)

// Pair is a single key=value entry of a signed payload. Values are kept
// verbatim: they are never re-encoded before signing.
type Pair struct {
	Key   string
	Value string
}

// Payload is an ordered multiset of pairs. Repeated keys are preserved.
type Payload []Pair

// Get returns the value of the first pair with the given key.
func (p Payload) Get(key string) (string, bool) {
	for _, pair := range p {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return "", false
}

// Canonical is the result of canonicalization: the exact string Telegram signed
// plus the supplied signature and the parsed auth_date.
type Canonical struct {
	DataCheckString string
	Hash            string
	AuthDate        int64
	HasAuthDate     bool
}

// ParseQuery turns raw init data into a Payload.
//
// The whole string is percent-decoded once before it is split on '&', because
// that is how the Telegram client builds the signed bytes. '+' stays literal.
// A string that cannot be decoded is used as is; its signature will not match.
// Every pair is cut on its first '=', so values may contain '='.
func ParseQuery(raw string) (Payload, error) {
	if raw == "" {
		return nil, ErrEmptyPayload
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}

	segments := strings.Split(decoded, "&")
	p := make(Payload, 0, len(segments))
	for i, seg := range segments {
		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			return nil, wrapf(ErrMalformedPair, "pair #%d has no '='", i)
		}
		if key == "" {
			return nil, wrapf(ErrMalformedPair, "pair #%d has an empty key", i)
		}
		p = append(p, Pair{Key: key, Value: value})
	}
	return p, nil
}

// PayloadFromValues flattens url.Values into a Payload. Keys are emitted in
// sorted order so the result does not depend on map iteration.
func PayloadFromValues(values url.Values) Payload {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := make(Payload, 0, len(keys))
	for _, k := range keys {
		for _, v := range values[k] {
			p = append(p, Pair{Key: k, Value: v})
		}
	}
	return p
}

// Canonicalize builds the data-check-string of p.
//
// Only the first pair keyed exactly "hash" is treated as the signature; any
// later "hash" pair is ordinary data. Lines are sorted on the whole "key=value"
// string, not on the key alone.
func Canonicalize(p Payload) (Canonical, error) {
	if len(p) == 0 {
		return Canonical{}, ErrEmptyPayload
	}

	hashAt := -1
	for i, pair := range p {
		if pair.Key == HashKey {
			hashAt = i
			break
		}
	}
	if hashAt < 0 {
		return Canonical{}, ErrMissingHash
	}

	c := Canonical{Hash: p[hashAt].Value}
	lines := make([]string, 0, len(p)-1)
	for i, pair := range p {
		if pair.Key == "" {
			return Canonical{}, wrapf(ErrMalformedPair, "pair #%d has an empty key", i)
		}
		if i == hashAt {
			continue
		}
		if pair.Key == AuthDateKey && !c.HasAuthDate {
			ts, err := strconv.ParseUint(pair.Value, 10, 63)
			if err != nil {
				return Canonical{}, wrapf(ErrMalformedPair, "auth_date %q is not a unix timestamp", pair.Value)
			}
			c.AuthDate, c.HasAuthDate = int64(ts), true
		}
		lines = append(lines, pair.Key+"="+pair.Value)
	}

	sort.Strings(lines)
	c.DataCheckString = strings.Join(lines, "\n")
	return c, nil
}
