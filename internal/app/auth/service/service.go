package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Miraines/MoonyAndStarry/tgauth/internal/app/auth/session"
	customErrors "github.com/Miraines/MoonyAndStarry/tgauth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tgauth/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/tgauth/internal/infra/metrics"
	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth"
)

type Service interface {
	InitData(ctx context.Context, bot, raw string) (model.Result, error)
	OAuth(ctx context.Context, bot string, user *tgauth.OAuthUser) (model.Result, error)
	OAuthCallback(ctx context.Context, bot string, query url.Values) (model.Result, error)
	Session(ctx context.Context, token string) (session.Claims, error)
}

type authService struct {
	registry *tgauth.Registry
	bots     map[string]string
	issuer   *session.Issuer
	metrics  *metrics.Validation
	log      *zap.Logger
}

// New wires the validators for the configured bots. issuer and m may be nil:
// sessions and metrics are then disabled.
func New(
	registry *tgauth.Registry,
	bots map[string]string,
	issuer *session.Issuer,
	m *metrics.Validation,
	log *zap.Logger,
) Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &authService{
		registry: registry,
		bots:     bots,
		issuer:   issuer,
		metrics:  m,
		log:      log,
	}
}

func (s *authService) InitData(ctx context.Context, bot, raw string) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, err
	}
	if raw == "" {
		return model.Result{}, customErrors.WrapInvalidArgument(tgauth.ErrEmptyPayload)
	}
	token, err := s.token(bot)
	if err != nil {
		return model.Result{}, err
	}
	v, err := s.registry.InitData(token)
	if err != nil {
		return model.Result{}, customErrors.WrapInternal(err, "init data validator")
	}

	start := time.Now()
	data, err := v.Parse(raw)
	s.metrics.Observe(tgauth.FlowWebApp, err, time.Since(start))
	if err != nil {
		return model.Result{}, s.reject(bot, tgauth.FlowWebApp, err)
	}

	id := model.Identity{
		Bot:        bot,
		Flow:       tgauth.FlowWebApp.String(),
		QueryID:    data.QueryID,
		StartParam: data.StartParam,
		AuthDate:   data.AuthDate,
	}
	if u := data.User; u != nil {
		id.TelegramID = u.ID
		id.Username = u.Username
		id.FirstName = u.FirstName
		id.LastName = u.LastName
		id.PhotoURL = u.PhotoURL
		id.LanguageCode = u.LanguageCode
		id.IsPremium = u.IsPremium
	}
	return s.accept(id)
}

func (s *authService) OAuth(ctx context.Context, bot string, user *tgauth.OAuthUser) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, err
	}
	if user == nil {
		return model.Result{}, customErrors.WrapInvalidArgument(tgauth.ErrEmptyPayload)
	}
	v, err := s.oauthValidator(bot)
	if err != nil {
		return model.Result{}, err
	}

	start := time.Now()
	err = v.Validate(user)
	s.metrics.Observe(tgauth.FlowOAuth, err, time.Since(start))
	if err != nil {
		return model.Result{}, s.reject(bot, tgauth.FlowOAuth, err)
	}
	return s.accept(oauthIdentity(bot, user))
}

func (s *authService) OAuthCallback(ctx context.Context, bot string, query url.Values) (model.Result, error) {
	if err := ctx.Err(); err != nil {
		return model.Result{}, err
	}
	v, err := s.oauthValidator(bot)
	if err != nil {
		return model.Result{}, err
	}

	start := time.Now()
	err = v.ValidateValues(query)
	s.metrics.Observe(tgauth.FlowOAuth, err, time.Since(start))
	if err != nil {
		return model.Result{}, s.reject(bot, tgauth.FlowOAuth, err)
	}

	user, err := tgauth.OAuthUserFromValues(query)
	if err != nil {
		return model.Result{}, s.reject(bot, tgauth.FlowOAuth, err)
	}
	return s.accept(oauthIdentity(bot, user))
}

func (s *authService) Session(ctx context.Context, token string) (session.Claims, error) {
	if err := ctx.Err(); err != nil {
		return session.Claims{}, err
	}
	if s.issuer == nil {
		return session.Claims{}, customErrors.NewNotFound("sessions are disabled")
	}
	if token == "" {
		return session.Claims{}, customErrors.ErrInvalidToken
	}
	return s.issuer.Validate(token)
}

func (s *authService) token(bot string) (string, error) {
	token, ok := s.bots[bot]
	if !ok {
		return "", customErrors.NewNotFound("bot " + bot)
	}
	return token, nil
}

func (s *authService) oauthValidator(bot string) (*tgauth.OAuthValidator, error) {
	token, err := s.token(bot)
	if err != nil {
		return nil, err
	}
	v, err := s.registry.OAuth(token)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "oauth validator")
	}
	return v, nil
}

// reject classifies a validation failure: payloads that cannot be read are
// invalid arguments, readable but untrusted ones are invalid credentials.
func (s *authService) reject(bot string, flow tgauth.Flow, err error) error {
	s.log.Warn("telegram payload rejected",
		zap.String("bot", bot),
		zap.Stringer("flow", flow),
		zap.String("kind", tgauth.KindOf(err)),
		zap.Error(err),
	)
	switch {
	case tgauth.IsStructural(err),
		errors.Is(err, tgauth.ErrEmptyHash),
		errors.Is(err, tgauth.ErrInvalidHashFormat):
		return customErrors.WrapInvalidArgument(err)
	case tgauth.IsInvalidBotToken(err):
		return customErrors.WrapInternal(err, "validator")
	default:
		return customErrors.NewInvalidCredentials(err)
	}
}

func (s *authService) accept(id model.Identity) (model.Result, error) {
	res := model.Result{Identity: id}
	if s.issuer != nil && id.TelegramID != 0 {
		token, exp, jti, err := s.issuer.Issue(id)
		if err != nil {
			return model.Result{}, err
		}
		res.Session = &model.Session{Token: token, ExpiresAt: exp, JTI: jti}
	}

	s.log.Info("telegram payload accepted",
		zap.String("bot", id.Bot),
		zap.String("flow", id.Flow),
		zap.Int64("telegram_id", id.TelegramID),
		zap.Bool("session", res.Session != nil),
	)
	return res, nil
}

func oauthIdentity(bot string, u *tgauth.OAuthUser) model.Identity {
	return model.Identity{
		Bot:        bot,
		Flow:       tgauth.FlowOAuth.String(),
		TelegramID: u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		PhotoURL:   u.PhotoURL,
		AuthDate:   time.Unix(u.AuthDate, 0),
	}
}
