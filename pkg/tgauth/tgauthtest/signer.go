// Package tgauthtest builds correctly signed Telegram payloads for tests and
// local tooling.
package tgauthtest

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth"
)

const tokenChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// InitDataParams are the fields of a Mini App launch. User may be a string
// (used verbatim) or any value that marshals to JSON.
type InitDataParams struct {
	QueryID  string
	User     any
	AuthDate int64
	Extra    map[string]string
}

// SignPayload signs p with the secret of the given flow and returns it with
// the hash pair appended.
func SignPayload(botToken string, flow tgauth.Flow, p tgauth.Payload) (tgauth.Payload, string, error) {
	secret, err := tgauth.DeriveSecret(botToken, flow)
	if err != nil {
		return nil, "", err
	}
	c, err := tgauth.Canonicalize(append(p[:len(p):len(p)], tgauth.Pair{Key: tgauth.HashKey}))
	if err != nil {
		return nil, "", err
	}
	hash := tgauth.Sign(secret, c.DataCheckString)
	out := append(p[:len(p):len(p)], tgauth.Pair{Key: tgauth.HashKey, Value: hash})
	return out, hash, nil
}

// Encode renders p as a query string, percent-encoding every value.
func Encode(p tgauth.Payload) string {
	parts := make([]string, 0, len(p))
	for _, pair := range p {
		parts = append(parts, pair.Key+"="+url.QueryEscape(pair.Value))
	}
	// QueryEscape turns spaces into '+', which init data keeps literal
	return strings.ReplaceAll(strings.Join(parts, "&"), "+", "%20")
}

// SignInitData returns a signed, percent-encoded init data string.
func SignInitData(botToken string, params InitDataParams) (string, error) {
	p := tgauth.Payload{
		{Key: tgauth.AuthDateKey, Value: strconv.FormatInt(params.AuthDate, 10)},
	}
	if params.QueryID != "" {
		p = append(p, tgauth.Pair{Key: "query_id", Value: params.QueryID})
	}
	if params.User != nil {
		user, ok := params.User.(string)
		if !ok {
			raw, err := json.Marshal(params.User)
			if err != nil {
				return "", fmt.Errorf("marshal user: %w", err)
			}
			user = string(raw)
		}
		p = append(p, tgauth.Pair{Key: tgauth.UserKey, Value: user})
	}
	for k, v := range params.Extra {
		p = append(p, tgauth.Pair{Key: k, Value: v})
	}

	signed, _, err := SignPayload(botToken, tgauth.FlowWebApp, p)
	if err != nil {
		return "", err
	}
	return Encode(signed), nil
}

// SignOAuthUser fills u.Hash with the Login Widget signature of u.
func SignOAuthUser(botToken string, u *tgauth.OAuthUser) error {
	u.Hash = ""
	p := u.Payload()
	_, hash, err := SignPayload(botToken, tgauth.FlowOAuth, p)
	if err != nil {
		return err
	}
	u.Hash = hash
	return nil
}

// SignValues adds a Login Widget "hash" parameter to values.
func SignValues(botToken string, values url.Values) error {
	values.Del(tgauth.HashKey)
	_, hash, err := SignPayload(botToken, tgauth.FlowOAuth, tgauth.PayloadFromValues(values))
	if err != nil {
		return err
	}
	values.Set(tgauth.HashKey, hash)
	return nil
}

// RandomBotToken returns a token shaped like the ones BotFather issues.
func RandomBotToken() string {
	var sb strings.Builder
	for i := 0; i < 35; i++ {
		sb.WriteByte(tokenChars[rand.IntN(len(tokenChars))])
	}
	return fmt.Sprintf("%d:%s", RandomBotID(), sb.String())
}

func RandomBotID() int64 {
	return 10_000_000 + rand.Int64N(9_990_000_000)
}

var (
	firstNames = []string{"John", "Anna", "Иван", "Мария", "Li", "Zoë"}
	lastNames  = []string{"Doe", "Smith", "Петров", "", "O'Neil"}
)

func randomUser() tgauth.WebAppUser {
	first := firstNames[rand.IntN(len(firstNames))]
	return tgauth.WebAppUser{
		ID:           1 + rand.Int64N(9_999_999_999),
		FirstName:    first,
		LastName:     lastNames[rand.IntN(len(lastNames))],
		Username:     strings.ToLower(fmt.Sprintf("user%d", rand.IntN(100000))),
		LanguageCode: "en",
	}
}

// RandomInitData returns valid init data for a random user, signed now.
func RandomInitData(botToken string) (string, error) {
	return SignInitData(botToken, InitDataParams{
		QueryID:  fmt.Sprintf("AA%d", rand.Int64()),
		User:     randomUser(),
		AuthDate: time.Now().Unix(),
	})
}

// RandomOAuthUser returns a signed widget payload for a random user.
func RandomOAuthUser(botToken string) (*tgauth.OAuthUser, error) {
	wu := randomUser()
	u := &tgauth.OAuthUser{
		ID:        wu.ID,
		FirstName: wu.FirstName,
		LastName:  wu.LastName,
		Username:  wu.Username,
		PhotoURL:  fmt.Sprintf("https://t.me/i/userpic/320/%s.jpg", wu.Username),
		AuthDate:  time.Now().Unix(),
	}
	if err := SignOAuthUser(botToken, u); err != nil {
		return nil, err
	}
	return u, nil
}
