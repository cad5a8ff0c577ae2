// Package signature computes the message authentication code that binds a
// webhook's secret to the exact payload bytes sent over the wire.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header is the HTTP header carrying the signature. Receiving endpoints
// verify it against the generic envelope bytes; changing the name breaks
// existing integrations.
const Header = "X-Papermark-Signature"

// Sign returns the hex-encoded HMAC-SHA256 of payload under secret. The
// payload must be the same byte sequence that is transmitted — any
// re-serialization between signing and sending invalidates the signature.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is a valid signature for payload under secret.
// Comparison is constant-time.
func Verify(secret string, payload []byte, sig string) bool {
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
