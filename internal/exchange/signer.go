package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrNoSecret is returned when a signature is requested without a configured secret.
var ErrNoSecret = errors.New("exchange secret key is not configured")

// Signer produces authenticated request parameters for the exchange.
// The exchange verifies the signature against the exact byte string of the
// query as sent, so parameters are concatenated in send order and never sorted.
type Signer struct {
	now func() time.Time
}

// NewSigner creates a signer. A nil clock falls back to the wall clock.
func NewSigner(now func() time.Time) *Signer {
	if now == nil {
		now = time.Now
	}
	return &Signer{now: now}
}

// Sign returns the hex HMAC-SHA256 signature of query under secret.
func (s *Signer) Sign(secret, query string) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Timestamp returns the current wall-clock time in milliseconds.
func (s *Signer) Timestamp() int64 {
	return s.now().UnixMilli()
}

// SignedQuery appends a fresh timestamp and the resulting signature to query.
// The timestamp is generated immediately before signing; signatures are never
// cached because the exchange rejects stale timestamps.
func (s *Signer) SignedQuery(secret, query string) (string, error) {
	if query != "" {
		query += "&"
	}
	query += fmt.Sprintf("timestamp=%d", s.Timestamp())

	signature, err := s.Sign(secret, query)
	if err != nil {
		return "", err
	}
	return query + "&signature=" + signature, nil
}
