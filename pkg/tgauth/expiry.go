package tgauth

import "time"

// Clock is the time source used for expiry checks.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// CheckExpiry fails when the payload is at least expiry old. A payload signed
// exactly expiry ago is already expired. Expiry <= 0 or a payload without
// auth_date disables the check. A positive expiry shorter than a second counts
// as one second, since auth_date has second resolution.
func CheckExpiry(authDate int64, hasAuthDate bool, expiry time.Duration, now time.Time) error {
	if expiry <= 0 || !hasAuthDate {
		return nil
	}
	age := now.Unix() - authDate
	limit := int64(expiry / time.Second)
	if limit < 1 {
		limit = 1
	}
	if age >= limit {
		return wrapf(ErrExpired, "auth_date is %ds old, limit is %ds", age, limit)
	}
	return nil
}
