package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks a Razorpay webhook signature: the hex-encoded
// HMAC-SHA256 of the exact raw request bytes, keyed by the shared secret.
// Verification must run over the bytes as received; re-serializing a parsed
// payload produces a different digest. Missing secret, header, or body fails
// closed.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" || header == "" || len(body) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	// constant-time compare
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}

// Sign computes the hex HMAC-SHA256 signature for a body. Used by tests and
// by CLI tooling to produce valid deliveries.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
