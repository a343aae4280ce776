package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/Miraines/MoonyAndStarry/tgauth/pkg/tgauth"
)

// DefaultBot is the name under which TELEGRAM_BOT_TOKEN is registered.
const DefaultBot = "default"

type Config struct {
	// bot name -> token; always contains DefaultBot
	Bots map[string]string

	HashExpiration     time.Duration
	UserShapeCheck     bool
	ValidatorCacheSize int

	HTTPAddress string

	SessionSecret string
	SessionTTL    time.Duration
	SessionIssuer string

	AllowedOrigins   []string
	AllowCredentials bool

	LogLevel string
}

var envKeys = []string{
	"TELEGRAM_BOT_TOKEN",
	"TELEGRAM_BOTS",
	"HASH_EXPIRATION",
	"USER_SHAPE_CHECK",
	"VALIDATOR_CACHE_SIZE",
	"HTTP_ADDRESS",
	"SESSION_SECRET",
	"SESSION_TTL",
	"SESSION_ISSUER",
	"ALLOWED_ORIGINS",
	"ALLOW_CREDENTIALS",
	"LOG_LEVEL",
}

// Load reads config.json from the working directory (if any) and lets the
// environment override every key.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	v.SetDefault("HASH_EXPIRATION", "24h")
	v.SetDefault("USER_SHAPE_CHECK", false)
	v.SetDefault("VALIDATOR_CACHE_SIZE", tgauth.DefaultRegistrySize)
	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("SESSION_TTL", "15m")
	v.SetDefault("SESSION_ISSUER", "tgauth")
	v.SetDefault("ALLOW_CREDENTIALS", false)
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	bots, err := parseBots(v.GetString("TELEGRAM_BOT_TOKEN"), v.GetString("TELEGRAM_BOTS"))
	if err != nil {
		return nil, err
	}

	expiry, err := parseExpiration(v.GetString("HASH_EXPIRATION"))
	if err != nil {
		return nil, err
	}

	sessionTTL, err := time.ParseDuration(v.GetString("SESSION_TTL"))
	if err != nil || sessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL %q is not a positive duration", v.GetString("SESSION_TTL"))
	}

	origins, err := parseOrigins(v.GetString("ALLOWED_ORIGINS"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Bots:               bots,
		HashExpiration:     expiry,
		UserShapeCheck:     v.GetBool("USER_SHAPE_CHECK"),
		ValidatorCacheSize: v.GetInt("VALIDATOR_CACHE_SIZE"),
		HTTPAddress:        v.GetString("HTTP_ADDRESS"),
		SessionSecret:      v.GetString("SESSION_SECRET"),
		SessionTTL:         sessionTTL,
		SessionIssuer:      v.GetString("SESSION_ISSUER"),
		AllowedOrigins:     origins,
		AllowCredentials:   v.GetBool("ALLOW_CREDENTIALS"),
		LogLevel:           v.GetString("LOG_LEVEL"),
	}, nil
}

// TokenCount returns how many distinct bot tokens are configured.
func (c *Config) TokenCount() int {
	seen := make(map[string]struct{}, len(c.Bots))
	for _, token := range c.Bots {
		seen[token] = struct{}{}
	}
	return len(seen)
}

func parseBots(defaultToken, extra string) (map[string]string, error) {
	if defaultToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN не задан")
	}
	if err := tgauth.CheckBotToken(defaultToken); err != nil {
		return nil, errors.Wrap(err, "TELEGRAM_BOT_TOKEN")
	}

	bots := map[string]string{DefaultBot: defaultToken}
	if strings.TrimSpace(extra) == "" {
		return bots, nil
	}

	var named map[string]string
	if err := json.Unmarshal([]byte(extra), &named); err != nil {
		return nil, errors.Wrap(err, "TELEGRAM_BOTS must be a JSON object")
	}
	for name, token := range named {
		if name == "" || name == DefaultBot {
			return nil, fmt.Errorf("TELEGRAM_BOTS: bot name %q is reserved", name)
		}
		if err := tgauth.CheckBotToken(token); err != nil {
			return nil, errors.Wrapf(err, "TELEGRAM_BOTS[%s]", name)
		}
		bots[name] = token
	}
	return bots, nil
}

// parseExpiration accepts a Go duration of at least 1s or a bare number of seconds.
func parseExpiration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("HASH_EXPIRATION %q is not a duration", raw)
	}
	if d > 0 && d < time.Second {
		return 0, fmt.Errorf("HASH_EXPIRATION %q is below auth_date resolution of 1s", raw)
	}
	return d, nil
}

// parseOrigins accepts a JSON array or a comma-separated list.
func parseOrigins(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, errors.Wrap(err, "ALLOWED_ORIGINS")
		}
		return out, nil
	}
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out, nil
}
