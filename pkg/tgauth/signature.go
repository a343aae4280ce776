package tgauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashLength is the length of a hex-encoded HMAC-SHA256 digest.
const HashLength = sha256.Size * 2

// Sign returns hex(HMAC-SHA256(secret, dataCheckString)) in lower case.
func Sign(secret []byte, dataCheckString string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(dataCheckString))
	return hex.EncodeToString(mac.Sum(nil))
}

// CheckHashFormat validates the supplied signature before any HMAC work.
// Length is checked first, then the lower-case hex alphabet.
func CheckHashFormat(hash string) error {
	if hash == "" {
		return ErrEmptyHash
	}
	if len(hash) != HashLength {
		return wrapf(ErrInvalidHashFormat, "hash length is %d, expected %d", len(hash), HashLength)
	}
	for i := 0; i < len(hash); i++ {
		c := hash[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return wrapf(ErrInvalidHashFormat, "hash contains non-hex characters")
		}
	}
	return nil
}

// Verify recomputes the signature of dataCheckString and compares it to hash
// in constant time.
func Verify(dataCheckString, hash string, secret []byte) error {
	if err := CheckHashFormat(hash); err != nil {
		return err
	}
	expected := Sign(secret, dataCheckString)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(hash)) != 1 {
		return ErrHashMismatch
	}
	return nil
}
