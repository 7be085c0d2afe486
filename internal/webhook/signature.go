package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	signaturePrefix = "sha256="
	secretPrefix    = "spsec_"
)

// Sign returns the X-Sprida-Signature value for payload: "sha256=" followed by
// the hex HMAC-SHA256 of the payload keyed with secret.
func Sign(payload []byte, secret string) string {
	return signaturePrefix + hex.EncodeToString(mac(payload, secret))
}

// Verify reports whether signature is a valid Sign output for payload.
// Receivers call it on the raw request body.
func Verify(payload []byte, signature, secret string) bool {
	digest, ok := strings.CutPrefix(signature, signaturePrefix)
	if !ok {
		return false
	}
	got, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	return hmac.Equal(got, mac(payload, secret))
}

// GenerateSecret returns a random signing secret.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate webhook secret: %w", err)
	}
	return secretPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

func mac(payload []byte, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return h.Sum(nil)
}
