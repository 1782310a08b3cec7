package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Signer computes and checks webhook signatures:
// base64(HMAC-SHA256(secret, timestamp + rawBody)).
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Sign(body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. An empty secret or signature never verifies.
func (s *Signer) Verify(body []byte, timestamp, signature string) bool {
	if len(s.secret) == 0 || signature == "" {
		return false
	}
	return hmac.Equal([]byte(s.Sign(body, timestamp)), []byte(signature))
}
