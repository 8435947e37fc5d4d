package circleevent

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ErrInvalidSignature is returned when a configured secret does not match
// the delivered signature. Nothing may be persisted for such a delivery.
var ErrInvalidSignature = fmt.Errorf("circleevent: invalid webhook signature")

// VerifySignature checks the Circle webhook HMAC: hex-encoded SHA-256 over
// "timestamp.body". An empty configured secret skips verification, which is
// the documented development-mode behavior.
func VerifySignature(secret, signature, timestamp string, body []byte) error {
	if secret == "" {
		return nil
	}
	if signature == "" || timestamp == "" {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
