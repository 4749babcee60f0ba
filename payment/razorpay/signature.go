// Package razorpay verifies gateway signatures and creates payment links.
package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the webhook body signature.
const SignatureHeader = "X-Razorpay-Signature"

// Sign returns the hex HMAC-SHA256 of payload keyed by secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret string, payload []byte, signature string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the signature of a raw webhook body against
// the webhook secret.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	return verify(secret, body, signature)
}

// PaymentLinkPayload is the canonical string signed on the redirect back from
// a payment link.
func PaymentLinkPayload(linkID, paymentID string) []byte {
	return []byte(linkID + "|" + paymentID)
}

// VerifyPaymentLinkSignature checks the redirect signature, keyed by the API
// key secret.
func VerifyPaymentLinkSignature(linkID, paymentID, signature, secret string) bool {
	if linkID == "" || paymentID == "" {
		return false
	}
	return verify(secret, PaymentLinkPayload(linkID, paymentID), signature)
}
