package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const signaturePrefix = "sha256="

// SignPayload computes the X-Hub-Signature-256 value for a payload:
// the hex-encoded HMAC-SHA256 digest with the "sha256=" prefix GitHub
// uses. The forwarder signs outbound deliveries with it.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload under
// secret. The comparison covers the full digest and is constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	if !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// ValidateSignatureHeader checks the X-Hub-Signature-256 header shape
// so admission failures can say what was wrong with it
func ValidateSignatureHeader(header string) error {
	if header == "" {
		return fmt.Errorf("missing X-Hub-Signature-256 header")
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return fmt.Errorf("invalid signature format, expected 'sha256=<hash>'")
	}
	return nil
}
