package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign returns the lowercase hex HMAC-SHA256 of message under secret.
func Sign(message, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the HMAC-SHA256 of message under secret.
// The comparison is constant time. An empty secret or signature never verifies.
func Verify(message, secret []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if len(secret) == 0 || signature == "" {
		return false
	}
	expected := Sign(message, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// ClientMessage is the payload Razorpay signs for the checkout callback.
func ClientMessage(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}
