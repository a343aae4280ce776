package tgauth_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	telegramloginwidget "github.com/LipsarHQ/go-telegram-login-widget"
	"github.com/stretchr/testify/require"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth"
	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth/tgauthtest"
)

const botToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

// webAppHash signs dcs without going through the package under test.
func webAppHash(token, dcs string) string {
	key := hmac.New(sha256.New, []byte("WebAppData"))
	key.Write([]byte(token))
	mac := hmac.New(sha256.New, key.Sum(nil))
	mac.Write([]byte(dcs))
	return hex.EncodeToString(mac.Sum(nil))
}

func oauthHash(token, dcs string) string {
	key := sha256.Sum256([]byte(token))
	mac := hmac.New(sha256.New, key[:])
	mac.Write([]byte(dcs))
	return hex.EncodeToString(mac.Sum(nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Tick(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newInitData(t *testing.T, opts ...tgauth.Option) *tgauth.InitDataValidator {
	t.Helper()
	v, err := tgauth.NewInitDataValidator(botToken, opts...)
	require.NoError(t, err)
	return v
}

func newOAuth(t *testing.T, opts ...tgauth.Option) *tgauth.OAuthValidator {
	t.Helper()
	v, err := tgauth.NewOAuthValidator(botToken, opts...)
	require.NoError(t, err)
	return v
}

func TestInitData_Scenarios(t *testing.T) {
	v := newInitData(t)
	good := webAppHash(botToken, "auth_date=1\nquery_id=Q\nuser={\"id\":1}")
	base := "auth_date=1&query_id=Q&user=%7B%22id%22%3A1%7D&hash="

	t.Run("correctly signed", func(t *testing.T) {
		require.NoError(t, v.Validate(base+good))
		require.True(t, v.IsValid(base+good))
	})

	t.Run("zero hash", func(t *testing.T) {
		err := v.Validate(base + strings.Repeat("0", 64))
		require.ErrorIs(t, err, tgauth.ErrHashMismatch)
		require.False(t, v.IsValid(base+strings.Repeat("0", 64)))
	})

	t.Run("short hash", func(t *testing.T) {
		err := v.Validate("query_id=test&hash=abc123")
		require.ErrorIs(t, err, tgauth.ErrInvalidHashFormat)
		require.Contains(t, err.Error(), "hash length is 6, expected 64")
	})

	t.Run("pair without equals", func(t *testing.T) {
		err := v.Validate("query_id&user=test&hash=" + strings.Repeat("a", 64))
		require.ErrorIs(t, err, tgauth.ErrMalformedPair)
	})

	t.Run("empty input", func(t *testing.T) {
		require.ErrorIs(t, v.Validate(""), tgauth.ErrEmptyPayload)
		require.False(t, v.IsValid(""))
	})

	t.Run("empty hash", func(t *testing.T) {
		require.ErrorIs(t, v.Validate("query_id=test&hash="), tgauth.ErrEmptyHash)
	})

	t.Run("missing hash", func(t *testing.T) {
		require.ErrorIs(t, v.Validate("query_id=test&auth_date=1"), tgauth.ErrMissingHash)
	})

	t.Run("hash as first parameter", func(t *testing.T) {
		raw := "hash=" + good + "&auth_date=1&query_id=Q&user=%7B%22id%22%3A1%7D"
		require.NoError(t, v.Validate(raw))
	})

	t.Run("duplicate hash keeps the first", func(t *testing.T) {
		err := v.Validate("hash=invalid&hash=" + strings.Repeat("0", 64))
		require.ErrorIs(t, err, tgauth.ErrInvalidHashFormat)
	})

	t.Run("undecodable escape fails the signature", func(t *testing.T) {
		err := v.Validate("query_id=test&user=%invalid%&hash=" + strings.Repeat("0", 64))
		require.ErrorIs(t, err, tgauth.ErrHashMismatch)
	})

	t.Run("not a query", func(t *testing.T) {
		require.False(t, v.IsValid("invalid_data"))
	})
}

func TestInitData_Deterministic(t *testing.T) {
	v := newInitData(t)
	for _, raw := range []string{
		"",
		"query_id=test&hash=abc123",
		"query_id=test&hash=" + strings.Repeat("0", 64),
	} {
		first := v.Validate(raw)
		second := v.Validate(raw)
		require.Equal(t, tgauth.KindOf(first), tgauth.KindOf(second))
		require.Equal(t, first.Error(), second.Error())
	}
}

func TestInitData_RoundTrip(t *testing.T) {
	raw, err := tgauthtest.RandomInitData(botToken)
	require.NoError(t, err)

	require.NoError(t, newInitData(t).Validate(raw))

	other, err := tgauth.NewInitDataValidator(tgauthtest.RandomBotToken())
	require.NoError(t, err)
	require.ErrorIs(t, other.Validate(raw), tgauth.ErrHashMismatch)

	// the Login Widget secret must not validate init data
	oauth := newOAuth(t)
	p, err := tgauth.ParseQuery(raw)
	require.NoError(t, err)
	values := url.Values{}
	for _, pair := range p {
		values.Add(pair.Key, pair.Value)
	}
	require.ErrorIs(t, oauth.ValidateValues(values), tgauth.ErrHashMismatch)
}

func TestInitData_AgreesWithThirdPartyValidator(t *testing.T) {
	raw, err := tgauthtest.SignInitData(botToken, tgauthtest.InitDataParams{
		QueryID:  "AAHdF6IQAAAAAN0XohDhrOrc",
		User:     tgauth.WebAppUser{ID: 279058397, FirstName: "Vladislav", LastName: "Kibenko", Username: "vdkfrost", LanguageCode: "ru", IsPremium: true},
		AuthDate: time.Now().Unix(),
	})
	require.NoError(t, err)

	require.NoError(t, newInitData(t).Validate(raw))
	require.NoError(t, initdata.Validate(raw, botToken, time.Hour))
}

func TestOAuth_AgreesWithThirdPartyValidator(t *testing.T) {
	values := url.Values{
		"id":         {"279058397"},
		"first_name": {"Vladislav"},
		"last_name":  {"Kibenko"},
		"username":   {"vdkfrost"},
		"photo_url":  {"https://t.me/i/userpic/320/vdkfrost.jpg"},
		"auth_date":  {strconv.FormatInt(time.Now().Unix(), 10)},
	}
	require.NoError(t, tgauthtest.SignValues(botToken, values))

	ours := newOAuth(t)
	require.NoError(t, ours.ValidateValues(values))
	authData, err := telegramloginwidget.NewFromQuery(values)
	require.NoError(t, err)
	require.NoError(t, authData.Check(botToken))

	tampered := url.Values{}
	for k, v := range values {
		tampered[k] = append([]string(nil), v...)
	}
	tampered.Set("username", "mallory")
	require.ErrorIs(t, ours.ValidateValues(tampered), tgauth.ErrHashMismatch)
	authData, err = telegramloginwidget.NewFromQuery(tampered)
	require.NoError(t, err)
	require.Error(t, authData.Check(botToken))
}

func TestInitData_TrailingAmpersand(t *testing.T) {
	raw, err := tgauthtest.RandomInitData(botToken)
	require.NoError(t, err)
	v := newInitData(t)

	require.NoError(t, v.Validate(raw))
	err = v.Validate(raw + "&")
	require.ErrorIs(t, err, tgauth.ErrMalformedPair)
	require.True(t, tgauth.IsStructural(err))
}

func TestInitData_LargeUser(t *testing.T) {
	raw, err := tgauthtest.SignInitData(botToken, tgauthtest.InitDataParams{
		QueryID: "test123",
		User: map[string]any{
			"id":         123456789,
			"first_name": strings.Repeat("A", 1000),
			"last_name":  strings.Repeat("B", 1000),
			"username":   strings.Repeat("C", 100),
		},
		AuthDate: time.Now().Unix(),
	})
	require.NoError(t, err)
	require.NoError(t, newInitData(t).Validate(raw))
}

func TestInitData_Expiry(t *testing.T) {
	start := time.Unix(1_707_000_000, 0)
	raw, err := tgauthtest.SignInitData(botToken, tgauthtest.InitDataParams{
		QueryID:  "test123",
		User:     tgauth.WebAppUser{ID: 123456789, FirstName: "Test"},
		AuthDate: start.Unix(),
	})
	require.NoError(t, err)

	t.Run("boundary is expired", func(t *testing.T) {
		clock := &fakeClock{now: start}
		v := newInitData(t, tgauth.WithHashExpiration(60*time.Second), tgauth.WithClock(clock))

		require.True(t, v.IsValid(raw))
		clock.Tick(59 * time.Second)
		require.True(t, v.IsValid(raw))
		clock.Tick(time.Second)
		require.ErrorIs(t, v.Validate(raw), tgauth.ErrExpired)
	})

	t.Run("disabled", func(t *testing.T) {
		clock := &fakeClock{now: start}
		v := newInitData(t, tgauth.WithHashExpiration(0), tgauth.WithClock(clock))
		clock.Tick(365 * 24 * time.Hour)
		require.True(t, v.IsValid(raw))

		plain := newInitData(t, tgauth.WithClock(clock))
		require.True(t, plain.IsValid(raw))
	})

	t.Run("sub-second limit accepts a payload signed this second", func(t *testing.T) {
		clock := &fakeClock{now: start}
		v := newInitData(t, tgauth.WithHashExpiration(500*time.Millisecond), tgauth.WithClock(clock))

		require.NoError(t, v.Validate(raw))
		clock.Tick(time.Second)
		require.ErrorIs(t, v.Validate(raw), tgauth.ErrExpired)
	})

	t.Run("mismatch is reported before expiry", func(t *testing.T) {
		clock := &fakeClock{now: start.Add(time.Hour)}
		v := newInitData(t, tgauth.WithHashExpiration(time.Minute), tgauth.WithClock(clock))
		tampered := strings.Replace(raw, "query_id=test123", "query_id=test124", 1)
		require.ErrorIs(t, v.Validate(tampered), tgauth.ErrHashMismatch)
	})
}

func TestInitData_UserShape(t *testing.T) {
	sign := func(user any) string {
		raw, err := tgauthtest.SignInitData(botToken, tgauthtest.InitDataParams{
			QueryID: "q", User: user, AuthDate: time.Now().Unix(),
		})
		require.NoError(t, err)
		return raw
	}

	strict := newInitData(t, tgauth.WithUserShapeCheck())
	lax := newInitData(t)

	good := sign(tgauth.WebAppUser{ID: 1, FirstName: "John"})
	require.NoError(t, strict.Validate(good))

	noID := sign(map[string]any{"first_name": "John"})
	require.NoError(t, lax.Validate(noID))
	require.ErrorIs(t, strict.Validate(noID), tgauth.ErrInvalidUserShape)

	notJSON := sign("test")
	require.NoError(t, lax.Validate(notJSON))
	require.ErrorIs(t, strict.Validate(notJSON), tgauth.ErrInvalidUserShape)
}

func TestInitData_Parse(t *testing.T) {
	authDate := time.Now().Unix()
	raw, err := tgauthtest.SignInitData(botToken, tgauthtest.InitDataParams{
		QueryID:  "AAHdF6IQAAAAAN0XohDhrOrc",
		User:     tgauth.WebAppUser{ID: 42, FirstName: "John", Username: "johndoe"},
		AuthDate: authDate,
		Extra: map[string]string{
			"start_param":    "ref=abc",
			"chat_type":      "supergroup",
			"chat_instance":  "-9019123",
			"can_send_after": "30",
			"chat":           `{"id":-100,"type":"supergroup","title":"Room"}`,
		},
	})
	require.NoError(t, err)

	got, err := newInitData(t).Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "AAHdF6IQAAAAAN0XohDhrOrc", got.QueryID)
	require.NotNil(t, got.User)
	require.Equal(t, int64(42), got.User.ID)
	require.Equal(t, "johndoe", got.User.Username)
	require.Equal(t, "ref=abc", got.StartParam)
	require.Equal(t, "supergroup", got.ChatType)
	require.Equal(t, "-9019123", got.ChatInstance)
	require.Equal(t, 30*time.Second, got.CanSendAfter)
	require.NotNil(t, got.Chat)
	require.Equal(t, "Room", got.Chat.Title)
	require.Equal(t, authDate, got.AuthDate.Unix())
	require.Len(t, got.Hash, tgauth.HashLength)

	_, err = newInitData(t).Parse("query_id=test&hash=abc123")
	require.ErrorIs(t, err, tgauth.ErrInvalidHashFormat)
}

func TestInitData_Concurrent(t *testing.T) {
	v := newInitData(t, tgauth.WithHashExpiration(time.Hour))
	raw, err := tgauthtest.RandomInitData(botToken)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 64)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = v.IsValid(raw)
		}(i)
	}
	wg.Wait()
	for _, ok := range results {
		require.True(t, ok)
	}
}

func TestNewValidator_InvalidToken(t *testing.T) {
	_, err := tgauth.NewInitDataValidator("")
	require.ErrorIs(t, err, tgauth.ErrInvalidBotToken)
	require.Contains(t, err.Error(), "invalid bot token")

	_, err = tgauth.NewOAuthValidator("not-a-token")
	require.ErrorIs(t, err, tgauth.ErrInvalidBotToken)

	var nilValidator *tgauth.InitDataValidator
	require.False(t, nilValidator.IsValid("a=1&hash=x"))
}

func TestOAuth_Validate(t *testing.T) {
	v := newOAuth(t)

	t.Run("random user", func(t *testing.T) {
		u, err := tgauthtest.RandomOAuthUser(botToken)
		require.NoError(t, err)
		require.NoError(t, v.Validate(u))
		require.True(t, v.IsValid(u))
	})

	t.Run("independent signature", func(t *testing.T) {
		u := &tgauth.OAuthUser{ID: 123456789, FirstName: "Test", Username: "tester", AuthDate: 1234567890}
		u.Hash = oauthHash(botToken, "auth_date=1234567890\nfirst_name=Test\nid=123456789\nusername=tester")
		require.NoError(t, v.Validate(u))
	})

	t.Run("missing hash", func(t *testing.T) {
		u := &tgauth.OAuthUser{ID: 123456789, FirstName: "Test", AuthDate: 1234567890}
		require.ErrorIs(t, v.Validate(u), tgauth.ErrMissingHash)
		require.False(t, v.IsValid(u))
	})

	t.Run("empty and nil", func(t *testing.T) {
		require.ErrorIs(t, v.Validate(&tgauth.OAuthUser{}), tgauth.ErrEmptyPayload)
		require.ErrorIs(t, v.Validate(nil), tgauth.ErrEmptyPayload)
		require.False(t, v.IsValid(nil))
	})

	t.Run("non-hex hash", func(t *testing.T) {
		u := &tgauth.OAuthUser{ID: 1, FirstName: "Test", AuthDate: 1, Hash: strings.Repeat("g", 64)}
		require.ErrorIs(t, v.Validate(u), tgauth.ErrInvalidHashFormat)
	})

	t.Run("tampered", func(t *testing.T) {
		u, err := tgauthtest.RandomOAuthUser(botToken)
		require.NoError(t, err)
		u.Username = "someone_else"
		require.ErrorIs(t, v.Validate(u), tgauth.ErrHashMismatch)
	})

	t.Run("other bot", func(t *testing.T) {
		u, err := tgauthtest.RandomOAuthUser(tgauthtest.RandomBotToken())
		require.NoError(t, err)
		require.ErrorIs(t, v.Validate(u), tgauth.ErrHashMismatch)
	})
}

func TestOAuth_Expiry(t *testing.T) {
	start := time.Unix(1_707_000_000, 0)
	clock := &fakeClock{now: start}
	v := newOAuth(t, tgauth.WithHashExpiration(3600*time.Second), tgauth.WithClock(clock))

	u := &tgauth.OAuthUser{ID: 123456789, FirstName: "Test", LastName: "User", Username: "testuser", AuthDate: start.Unix()}
	require.NoError(t, tgauthtest.SignOAuthUser(botToken, u))

	require.NoError(t, v.Validate(u))
	clock.Tick(1800 * time.Second)
	require.NoError(t, v.Validate(u))
	clock.Tick(1800 * time.Second)
	require.ErrorIs(t, v.Validate(u), tgauth.ErrExpired)
}

func TestOAuth_ValidateValues(t *testing.T) {
	v := newOAuth(t, tgauth.WithUserShapeCheck())

	values := url.Values{
		"id":         {"42"},
		"first_name": {"John"},
		"username":   {"johndoe"},
		"photo_url":  {"https://t.me/i/userpic/320/johndoe.jpg"},
		"auth_date":  {"1700000000"},
		// unknown fields are signed too
		"allows_write_to_pm": {"true"},
	}
	require.NoError(t, tgauthtest.SignValues(botToken, values))
	require.NoError(t, v.ValidateValues(values))
	require.True(t, v.IsValidValues(values))

	u, err := tgauth.OAuthUserFromValues(values)
	require.NoError(t, err)
	require.Equal(t, int64(42), u.ID)
	require.Equal(t, int64(1700000000), u.AuthDate)

	values.Set("username", "mallory")
	require.ErrorIs(t, v.ValidateValues(values), tgauth.ErrHashMismatch)

	require.ErrorIs(t, v.ValidateValues(url.Values{}), tgauth.ErrEmptyPayload)

	noID := url.Values{"first_name": {"John"}, "auth_date": {"1700000000"}}
	require.NoError(t, tgauthtest.SignValues(botToken, noID))
	require.ErrorIs(t, v.ValidateValues(noID), tgauth.ErrInvalidUserShape)
}
