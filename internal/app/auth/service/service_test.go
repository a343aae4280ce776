package service_test

import (
	"context"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Miraines/MoonyAndStarry/tgauth/internal/app/auth/service"
	"github.com/Miraines/MoonyAndStarry/tgauth/internal/app/auth/session"
	customErrors "github.com/Miraines/MoonyAndStarry/tgauth/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/tgauth/internal/infra/metrics"
	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth"
	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth/tgauthtest"
)

const botToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

func newService(t *testing.T, withSessions bool, opts ...tgauth.Option) service.Service {
	t.Helper()
	reg, err := tgauth.NewRegistry(8, opts...)
	require.NoError(t, err)
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	var iss *session.Issuer
	if withSessions {
		iss, err = session.NewIssuer("secret", time.Minute, "test")
		require.NoError(t, err)
	}
	bots := map[string]string{"default": botToken, "shop": "42:shop_secret"}
	return service.New(reg, bots, iss, m, zap.NewNop())
}

func signedInitData(t *testing.T, token string) string {
	t.Helper()
	raw, err := tgauthtest.SignInitData(token, tgauthtest.InitDataParams{
		QueryID:  "AAHdF6IQAAAAAN0XohDhrOrc",
		User:     tgauth.WebAppUser{ID: 279058397, FirstName: "Vladislav", Username: "vdkfrost", LanguageCode: "ru"},
		AuthDate: time.Now().Unix(),
		Extra:    map[string]string{"start_param": "ref42"},
	})
	require.NoError(t, err)
	return raw
}

func TestInitData_Success(t *testing.T) {
	svc := newService(t, true)

	res, err := svc.InitData(context.Background(), "default", signedInitData(t, botToken))
	require.NoError(t, err)

	id := res.Identity
	require.Equal(t, "default", id.Bot)
	require.Equal(t, "init_data", id.Flow)
	require.Equal(t, int64(279058397), id.TelegramID)
	require.Equal(t, "vdkfrost", id.Username)
	require.Equal(t, "ru", id.LanguageCode)
	require.Equal(t, "AAHdF6IQAAAAAN0XohDhrOrc", id.QueryID)
	require.Equal(t, "ref42", id.StartParam)

	require.NotNil(t, res.Session)
	claims, err := svc.Session(context.Background(), res.Session.Token)
	require.NoError(t, err)
	require.Equal(t, int64(279058397), claims.TelegramID)
	require.Equal(t, "init_data", claims.Flow)
	require.Equal(t, res.Session.JTI, claims.ID)
}

func TestInitData_PerBotSecrets(t *testing.T) {
	svc := newService(t, false)

	raw := signedInitData(t, "42:shop_secret")
	res, err := svc.InitData(context.Background(), "shop", raw)
	require.NoError(t, err)
	require.Nil(t, res.Session)

	_, err = svc.InitData(context.Background(), "default", raw)
	require.True(t, customErrors.IsInvalidCredentials(err))
	require.ErrorIs(t, err, tgauth.ErrHashMismatch)
}

func TestInitData_Errors(t *testing.T) {
	svc := newService(t, false)
	ctx := context.Background()

	_, err := svc.InitData(ctx, "nope", signedInitData(t, botToken))
	require.True(t, customErrors.IsNotFound(err))

	_, err = svc.InitData(ctx, "default", "")
	require.True(t, customErrors.IsInvalidArgument(err))

	_, err = svc.InitData(ctx, "default", "query_id=1&user=x")
	require.True(t, customErrors.IsInvalidArgument(err))
	require.ErrorIs(t, err, tgauth.ErrMissingHash)

	_, err = svc.InitData(ctx, "default", "auth_date=1&hash=abc")
	require.True(t, customErrors.IsInvalidArgument(err))
	require.ErrorIs(t, err, tgauth.ErrInvalidHashFormat)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.InitData(cancelled, "default", signedInitData(t, botToken))
	require.ErrorIs(t, err, context.Canceled)
}

func TestInitData_Expired(t *testing.T) {
	svc := newService(t, false, tgauth.WithHashExpiration(time.Minute))

	raw, err := tgauthtest.SignInitData(botToken, tgauthtest.InitDataParams{
		User:     tgauth.WebAppUser{ID: 1, FirstName: "A"},
		AuthDate: time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)

	_, err = svc.InitData(context.Background(), "default", raw)
	require.True(t, customErrors.IsInvalidCredentials(err))
	require.True(t, tgauth.IsExpired(err))
}

func TestInitData_NoUserNoSession(t *testing.T) {
	svc := newService(t, true)

	raw, err := tgauthtest.SignInitData(botToken, tgauthtest.InitDataParams{AuthDate: time.Now().Unix()})
	require.NoError(t, err)

	res, err := svc.InitData(context.Background(), "default", raw)
	require.NoError(t, err)
	require.Zero(t, res.Identity.TelegramID)
	require.Nil(t, res.Session)
}

func TestOAuth(t *testing.T) {
	svc := newService(t, true)
	ctx := context.Background()

	user, err := tgauthtest.RandomOAuthUser(botToken)
	require.NoError(t, err)

	res, err := svc.OAuth(ctx, "default", user)
	require.NoError(t, err)
	require.Equal(t, "oauth", res.Identity.Flow)
	require.Equal(t, user.ID, res.Identity.TelegramID)
	require.Equal(t, user.AuthDate, res.Identity.AuthDate.Unix())
	require.NotNil(t, res.Session)

	user.FirstName += "x"
	_, err = svc.OAuth(ctx, "default", user)
	require.True(t, customErrors.IsInvalidCredentials(err))

	_, err = svc.OAuth(ctx, "default", nil)
	require.True(t, customErrors.IsInvalidArgument(err))

	_, err = svc.OAuth(ctx, "missing", user)
	require.True(t, customErrors.IsNotFound(err))
}

func TestOAuthCallback(t *testing.T) {
	svc := newService(t, false)

	values := url.Values{
		"id":         {"42"},
		"first_name": {"Ann"},
		"username":   {"ann"},
		"auth_date":  {strconv.FormatInt(time.Now().Unix(), 10)},
	}
	require.NoError(t, tgauthtest.SignValues(botToken, values))

	res, err := svc.OAuthCallback(context.Background(), "default", values)
	require.NoError(t, err)
	require.Equal(t, int64(42), res.Identity.TelegramID)
	require.Equal(t, "ann", res.Identity.Username)

	values.Set("username", "mallory")
	_, err = svc.OAuthCallback(context.Background(), "default", values)
	require.True(t, customErrors.IsInvalidCredentials(err))
	require.ErrorIs(t, err, tgauth.ErrHashMismatch)
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	disabled := newService(t, false)
	_, err := disabled.Session(ctx, "x")
	require.True(t, customErrors.IsNotFound(err))

	enabled := newService(t, true)
	_, err = enabled.Session(ctx, "")
	require.True(t, customErrors.IsInvalidToken(err))
	_, err = enabled.Session(ctx, "garbage")
	require.True(t, customErrors.IsInvalidToken(err))
}
