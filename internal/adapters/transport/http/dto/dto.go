package dto

import (
	"time"

	"github.com/Miraines/MoonyAndStarry/tgauth/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth"
)

type InitDataDTO struct {
	InitData string `json:"init_data" binding:"required"`
}

// TelegramAuthDTO is the object the Login Widget hands to its callback.
type TelegramAuthDTO struct {
	ID        int64  `json:"id" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
	AuthDate  int64  `json:"auth_date" binding:"required"`
	Hash      string `json:"hash" binding:"required"`
}

func (d TelegramAuthDTO) User() *tgauth.OAuthUser {
	return &tgauth.OAuthUser{
		ID:        d.ID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Username:  d.Username,
		PhotoURL:  d.PhotoURL,
		AuthDate:  d.AuthDate,
		Hash:      d.Hash,
	}
}

type UserResponse struct {
	ID           int64  `json:"id"`
	Username     string `json:"username,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

type SessionResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	ExpiresIn int    `json:"expires_in"`
}

type AuthResponse struct {
	Bot        string           `json:"bot"`
	Flow       string           `json:"flow"`
	User       *UserResponse    `json:"user,omitempty"`
	QueryID    string           `json:"query_id,omitempty"`
	StartParam string           `json:"start_param,omitempty"`
	AuthDate   int64            `json:"auth_date"`
	Session    *SessionResponse `json:"session,omitempty"`
}

type SessionClaimsResponse struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username,omitempty"`
	Bot        string `json:"bot"`
	Flow       string `json:"flow"`
	ExpiresAt  int64  `json:"expires_at"`
	JTI        string `json:"jti"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func NewAuthResponse(res model.Result, now time.Time) AuthResponse {
	id := res.Identity
	out := AuthResponse{
		Bot:        id.Bot,
		Flow:       id.Flow,
		QueryID:    id.QueryID,
		StartParam: id.StartParam,
	}
	if !id.AuthDate.IsZero() {
		out.AuthDate = id.AuthDate.Unix()
	}
	if id.TelegramID != 0 {
		out.User = &UserResponse{
			ID:           id.TelegramID,
			Username:     id.Username,
			FirstName:    id.FirstName,
			LastName:     id.LastName,
			PhotoURL:     id.PhotoURL,
			LanguageCode: id.LanguageCode,
			IsPremium:    id.IsPremium,
		}
	}
	if s := res.Session; s != nil {
		out.Session = &SessionResponse{
			Token:     s.Token,
			ExpiresAt: s.ExpiresAt.Unix(),
			ExpiresIn: int(s.ExpiresAt.Sub(now).Seconds()),
		}
	}
	return out
}
