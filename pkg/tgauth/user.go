package tgauth

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// WebAppUser is the JSON object carried in the "user" and "receiver" fields
// of init data.
type WebAppUser struct {
	ID                    int64  `json:"id" validate:"gt=0"`
	IsBot                 bool   `json:"is_bot,omitempty"`
	FirstName             string `json:"first_name" validate:"required,max=256"`
	LastName              string `json:"last_name,omitempty" validate:"max=256"`
	Username              string `json:"username,omitempty" validate:"max=32"`
	LanguageCode          string `json:"language_code,omitempty" validate:"max=35"`
	IsPremium             bool   `json:"is_premium,omitempty"`
	AddedToAttachmentMenu bool   `json:"added_to_attachment_menu,omitempty"`
	AllowsWriteToPM       bool   `json:"allows_write_to_pm,omitempty"`
	PhotoURL              string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

// WebAppChat is the JSON object carried in the "chat" field of init data.
type WebAppChat struct {
	ID       int64  `json:"id" validate:"required"`
	Type     string `json:"type" validate:"oneof=group supergroup channel"`
	Title    string `json:"title" validate:"required"`
	Username string `json:"username,omitempty"`
	PhotoURL string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

// InitData is verified Mini App init data with its well-known fields decoded.
type InitData struct {
	QueryID      string
	User         *WebAppUser
	Receiver     *WebAppUser
	Chat         *WebAppChat
	ChatType     string
	ChatInstance string
	StartParam   string
	CanSendAfter time.Duration
	AuthDate     time.Time
	Hash         string
}

// OAuthUser is the object produced by the Telegram Login Widget.
type OAuthUser struct {
	ID        int64  `json:"id" validate:"gt=0"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty" validate:"max=32"`
	PhotoURL  string `json:"photo_url,omitempty" validate:"omitempty,url"`
	AuthDate  int64  `json:"auth_date" validate:"gt=0"`
	Hash      string `json:"hash" validate:"required"`
}

// Payload renders the non-empty fields of u as signed pairs.
func (u *OAuthUser) Payload() Payload {
	if u == nil {
		return nil
	}
	p := make(Payload, 0, 7)
	add := func(k, v string) {
		if v != "" {
			p = append(p, Pair{Key: k, Value: v})
		}
	}
	if u.ID != 0 {
		add("id", strconv.FormatInt(u.ID, 10))
	}
	add("first_name", u.FirstName)
	add("last_name", u.LastName)
	add("username", u.Username)
	add("photo_url", u.PhotoURL)
	if u.AuthDate != 0 {
		add(AuthDateKey, strconv.FormatInt(u.AuthDate, 10))
	}
	add(HashKey, u.Hash)
	return p
}

var shape = validator.New()

func checkShape(v any) error {
	if err := shape.Struct(v); err != nil {
		return wrapf(ErrInvalidUserShape, "%v", err)
	}
	return nil
}

func decodeUser(field, raw string) (*WebAppUser, error) {
	var u WebAppUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, wrapf(ErrInvalidUserShape, "%s is not a JSON object: %v", field, err)
	}
	return &u, nil
}

func decodeChat(raw string) (*WebAppChat, error) {
	var c WebAppChat
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, wrapf(ErrInvalidUserShape, "chat is not a JSON object: %v", err)
	}
	return &c, nil
}

// checkInitDataShape decodes and validates "user" and "receiver" when present.
func checkInitDataShape(p Payload) error {
	for _, field := range []string{UserKey, "receiver"} {
		raw, ok := p.Get(field)
		if !ok {
			continue
		}
		u, err := decodeUser(field, raw)
		if err != nil {
			return err
		}
		if err := checkShape(u); err != nil {
			return err
		}
	}
	return nil
}
