package tgauth

import (
	"net/url"
	"strconv"
	"time"
)

type options struct {
	expiration time.Duration
	clock      Clock
	checkShape bool
}

// Option configures a validator.
type Option func(*options)

// WithHashExpiration rejects payloads whose auth_date is at least d old.
// Zero or negative d disables the check, which is the default. Positive values
// below one second are raised to one second.
func WithHashExpiration(d time.Duration) Option {
	return func(o *options) {
		if d > 0 && d < time.Second {
			d = time.Second
		}
		o.expiration = d
	}
}

// WithClock replaces the wall clock used for expiry checks.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithUserShapeCheck enables structural validation of the user object after
// the signature has been verified.
func WithUserShapeCheck() Option {
	return func(o *options) { o.checkShape = true }
}

// engine is the pipeline shared by both flows:
// canonicalize -> hash format -> signature -> expiry.
type engine struct {
	secret *secretCell
	opts   options
}

func newEngine(botToken string, flow Flow, opts []Option) (*engine, error) {
	if err := CheckBotToken(botToken); err != nil {
		return nil, err
	}
	o := options{clock: systemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	derive := func() ([]byte, error) { return DeriveSecret(botToken, flow) }
	return &engine{secret: newSecretCell(derive), opts: o}, nil
}

func (e *engine) verify(p Payload) (Canonical, error) {
	c, err := Canonicalize(p)
	if err != nil {
		return Canonical{}, err
	}
	if err := CheckHashFormat(c.Hash); err != nil {
		return Canonical{}, err
	}
	secret, err := e.secret.secret()
	if err != nil {
		return Canonical{}, err
	}
	if err := Verify(c.DataCheckString, c.Hash, secret); err != nil {
		return Canonical{}, err
	}
	if err := CheckExpiry(c.AuthDate, c.HasAuthDate, e.opts.expiration, e.opts.clock.Now()); err != nil {
		return Canonical{}, err
	}
	return c, nil
}

// InitDataValidator verifies Mini App init data for one bot. It is safe for
// concurrent use.
type InitDataValidator struct {
	e *engine
}

func NewInitDataValidator(botToken string, opts ...Option) (*InitDataValidator, error) {
	e, err := newEngine(botToken, FlowWebApp, opts)
	if err != nil {
		return nil, err
	}
	return &InitDataValidator{e: e}, nil
}

// Validate returns the first failed check, or nil when initData is authentic
// and fresh.
func (v *InitDataValidator) Validate(initData string) error {
	_, _, err := v.validate(initData)
	return err
}

// IsValid is Validate with every failure collapsed to false.
func (v *InitDataValidator) IsValid(initData string) bool {
	if v == nil {
		return false
	}
	return v.Validate(initData) == nil
}

// Parse validates initData and decodes its well-known fields.
func (v *InitDataValidator) Parse(initData string) (InitData, error) {
	p, c, err := v.validate(initData)
	if err != nil {
		return InitData{}, err
	}

	out := InitData{Hash: c.Hash}
	if c.HasAuthDate {
		out.AuthDate = time.Unix(c.AuthDate, 0)
	}
	for _, pair := range p {
		switch pair.Key {
		case "query_id":
			out.QueryID = pair.Value
		case UserKey:
			if out.User, err = decodeUser(pair.Key, pair.Value); err != nil {
				return InitData{}, err
			}
		case "receiver":
			if out.Receiver, err = decodeUser(pair.Key, pair.Value); err != nil {
				return InitData{}, err
			}
		case "chat":
			if out.Chat, err = decodeChat(pair.Value); err != nil {
				return InitData{}, err
			}
		case "chat_type":
			out.ChatType = pair.Value
		case "chat_instance":
			out.ChatInstance = pair.Value
		case "start_param":
			out.StartParam = pair.Value
		case "can_send_after":
			secs, err := strconv.ParseInt(pair.Value, 10, 64)
			if err != nil {
				return InitData{}, wrapf(ErrMalformedPair, "can_send_after %q is not a number", pair.Value)
			}
			out.CanSendAfter = time.Duration(secs) * time.Second
		}
	}
	return out, nil
}

func (v *InitDataValidator) validate(initData string) (Payload, Canonical, error) {
	if v == nil || v.e == nil {
		return nil, Canonical{}, ErrInvalidBotToken
	}
	p, err := ParseQuery(initData)
	if err != nil {
		return nil, Canonical{}, err
	}
	c, err := v.e.verify(p)
	if err != nil {
		return nil, Canonical{}, err
	}
	if v.e.opts.checkShape {
		if err := checkInitDataShape(p); err != nil {
			return nil, Canonical{}, err
		}
	}
	return p, c, nil
}

// OAuthValidator verifies Login Widget payloads for one bot. It is safe for
// concurrent use.
type OAuthValidator struct {
	e *engine
}

func NewOAuthValidator(botToken string, opts ...Option) (*OAuthValidator, error) {
	e, err := newEngine(botToken, FlowOAuth, opts)
	if err != nil {
		return nil, err
	}
	return &OAuthValidator{e: e}, nil
}

// Validate checks a widget object. Empty optional fields are not part of the
// signed data.
func (v *OAuthValidator) Validate(user *OAuthUser) error {
	if v == nil || v.e == nil {
		return ErrInvalidBotToken
	}
	if user == nil {
		return ErrEmptyPayload
	}
	if _, err := v.e.verify(user.Payload()); err != nil {
		return err
	}
	if v.e.opts.checkShape {
		return checkShape(user)
	}
	return nil
}

func (v *OAuthValidator) IsValid(user *OAuthUser) bool {
	if v == nil {
		return false
	}
	return v.Validate(user) == nil
}

// ValidateValues checks the query of a widget redirect. Every parameter takes
// part in the signature, including ones this package does not know about.
func (v *OAuthValidator) ValidateValues(values url.Values) error {
	if v == nil || v.e == nil {
		return ErrInvalidBotToken
	}
	if _, err := v.e.verify(PayloadFromValues(values)); err != nil {
		return err
	}
	if v.e.opts.checkShape {
		u, err := OAuthUserFromValues(values)
		if err != nil {
			return err
		}
		return checkShape(u)
	}
	return nil
}

func (v *OAuthValidator) IsValidValues(values url.Values) bool {
	if v == nil {
		return false
	}
	return v.ValidateValues(values) == nil
}

// OAuthUserFromValues decodes the widget fields of a redirect query.
func OAuthUserFromValues(values url.Values) (*OAuthUser, error) {
	u := &OAuthUser{
		FirstName: values.Get("first_name"),
		LastName:  values.Get("last_name"),
		Username:  values.Get("username"),
		PhotoURL:  values.Get("photo_url"),
		Hash:      values.Get(HashKey),
	}
	var err error
	if raw := values.Get("id"); raw != "" {
		if u.ID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, wrapf(ErrInvalidUserShape, "id %q is not a number", raw)
		}
	}
	if raw := values.Get(AuthDateKey); raw != "" {
		if u.AuthDate, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, wrapf(ErrMalformedPair, "auth_date %q is not a unix timestamp", raw)
		}
	}
	return u, nil
}
