// Package tgauth verifies data signed by Telegram for a bot: Mini App init
// data and Login Widget payloads.
//
// Both flows canonicalize the payload into a data-check-string (every pair
// except "hash", rendered as key=value, sorted, joined with '\n') and compare
// hex(HMAC-SHA256(secret, data-check-string)) with the supplied hash. They
// differ only in the secret:
//
//	init data:    secret = HMAC-SHA256(key="WebAppData", msg=bot_token)
//	login widget: secret = SHA-256(bot_token)
//
// Validators are built once per bot token and reused:
//
//	v, err := tgauth.NewInitDataValidator(token, tgauth.WithHashExpiration(24*time.Hour))
//	if err != nil {
//		return err
//	}
//	if err := v.Validate(initData); err != nil {
//		// errors.Is(err, tgauth.ErrHashMismatch), tgauth.ErrExpired, ...
//	}
package tgauth
