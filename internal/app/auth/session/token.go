package session

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	customErrors "github.com/Miraines/MoonyAndStarry/tgauth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tgauth/internal/domain/auth/model"
)

type Claims struct {
	jwt.RegisteredClaims
	TelegramID int64  `json:"tg_id"`
	Username   string `json:"username,omitempty"`
	Bot        string `json:"bot"`
	Flow       string `json:"flow"`
}

// Issuer signs short-lived HS256 session tokens for verified identities.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, issuer string) (*Issuer, error) {
	if secret == "" {
		return nil, customErrors.NewInvalidArgument("session secret is empty")
	}
	if ttl <= 0 {
		return nil, customErrors.NewInvalidArgument("session ttl must be positive")
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

func (i *Issuer) Issue(id model.Identity) (token string, exp time.Time, jti string, err error) {
	jti = uuid.NewString()
	now := i.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.TelegramID, 10),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{id.Bot},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        jti,
		},
		TelegramID: id.TelegramID,
		Username:   id.Username,
		Bot:        id.Bot,
		Flow:       id.Flow,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, "", customErrors.WrapInternal(err, "sign session token")
	}

	return signed, claims.ExpiresAt.Time, jti, nil
}

func (i *Issuer) Validate(raw string) (Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, customErrors.ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithIssuedAt(), jwt.WithLeeway(30*time.Second), jwt.WithTimeFunc(i.now))

	if err != nil || !token.Valid {
		return Claims{}, customErrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Claims{}, customErrors.WrapInternal(
			errors.New("claims not session.Claims"), "Validate",
		)
	}

	if i.issuer != "" && claims.Issuer != i.issuer {
		return Claims{}, customErrors.ErrInvalidToken
	}
	if claims.Subject != strconv.FormatInt(claims.TelegramID, 10) {
		return Claims{}, customErrors.ErrInvalidToken
	}

	return *claims, nil
}
