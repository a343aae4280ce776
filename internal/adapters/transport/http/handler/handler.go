package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Miraines/MoonyAndStarry/tgauth/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/tgauth/internal/app/auth/service"
	authErrors "github.com/Miraines/MoonyAndStarry/tgauth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tgauth/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth"
)

const (
	sessionCookie = "tg_session"

	// Telegram Mini Apps clients send raw init data as "Authorization: tma <init data>".
	schemeInitData = "tma"
	schemeBearer   = "Bearer"
)

type Handler struct {
	svc          service.Service
	log          *zap.Logger
	cookieDomain string
	now          func() time.Time
}

func New(svc service.Service, log *zap.Logger, cookieDomain string) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log, cookieDomain: cookieDomain, now: time.Now}
}

// Register mounts the auth routes on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/:bot/init-data", h.initData)
	v1.POST("/:bot/oauth", h.oauth)
	v1.GET("/:bot/oauth/callback", h.oauthCallback)
	v1.GET("/session", h.session)
}

func (h *Handler) initData(c *gin.Context) {
	raw, ok := authorization(c, schemeInitData)
	if !ok {
		var body dto.InitDataDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "init_data is required"})
			return
		}
		raw = body.InitData
	}

	res, err := h.svc.InitData(c.Request.Context(), c.Param("bot"), raw)
	if err != nil {
		handleError(c, err)
		return
	}
	h.issue(c, res)
}

func (h *Handler) oauth(c *gin.Context) {
	var body dto.TelegramAuthDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	h.log.Debug("telegram_login_post",
		zap.Int64("telegram_id", body.ID),
		zap.String("origin", c.GetHeader("Origin")),
	)

	res, err := h.svc.OAuth(c.Request.Context(), c.Param("bot"), body.User())
	if err != nil {
		handleError(c, err)
		return
	}
	h.issue(c, res)
}

func (h *Handler) oauthCallback(c *gin.Context) {
	query := c.Request.URL.Query()
	if len(query) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "empty callback query"})
		return
	}

	res, err := h.svc.OAuthCallback(c.Request.Context(), c.Param("bot"), query)
	if err != nil {
		handleError(c, err)
		return
	}
	h.issue(c, res)
}

func (h *Handler) session(c *gin.Context) {
	token, ok := authorization(c, schemeBearer)
	if !ok {
		if cookie, err := c.Cookie(sessionCookie); err == nil {
			token = cookie
		}
	}

	claims, err := h.svc.Session(c.Request.Context(), token)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SessionClaimsResponse{
		TelegramID: claims.TelegramID,
		Username:   claims.Username,
		Bot:        claims.Bot,
		Flow:       claims.Flow,
		ExpiresAt:  claims.ExpiresAt.Unix(),
		JTI:        claims.ID,
	})
}

func (h *Handler) issue(c *gin.Context, res model.Result) {
	now := h.now()
	if s := res.Session; s != nil {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(
			sessionCookie,
			s.Token,
			int(s.ExpiresAt.Sub(now).Seconds()),
			"/",
			h.cookieDomain,
			true, // secure
			true, // httpOnly
		)
	}
	c.JSON(http.StatusOK, dto.NewAuthResponse(res, now))
}

// authorization returns the credentials of an Authorization header using scheme.
func authorization(c *gin.Context, scheme string) (string, bool) {
	h := c.GetHeader("Authorization")
	prefix, rest, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(prefix, scheme) {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	return rest, rest != ""
}

func handleError(c *gin.Context, err error) {
	kind := tgauth.KindOf(err)
	if kind == "unknown" {
		kind = ""
	}

	switch {
	case authErrors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Kind: kind})
	case authErrors.IsInvalidCredentials(err):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid credentials", Kind: kind})
	case authErrors.IsInvalidToken(err):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid token"})
	case authErrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
}
