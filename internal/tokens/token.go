package tokens

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// subTokenLen is the number of leading base64 characters kept as the
// confirmation sub-token.
const subTokenLen = 10

// New generates a delivery token: 16 bytes from crypto/rand, hex encoded
// (32 chars, 128 bits of entropy).
func New() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// DeriveSub derives the confirmation sub-token for a token and an epoch-millis
// timestamp: the first 10 characters of base64(token + millis). Deterministic
// and stateless, so the confirmation step recomputes it instead of storing it.
// It is a tamper check on the QR URL, not a security boundary: the main token
// is the secret.
func DeriveSub(token string, millis int64) string {
	b64 := base64.StdEncoding.EncodeToString([]byte(token + strconv.FormatInt(millis, 10)))
	if len(b64) < subTokenLen {
		return b64
	}
	return b64[:subTokenLen]
}

// ValidSub reports whether sub matches the expected derivation for (token,
// millis) and the timestamp is still inside the ttl window at now.
func ValidSub(token, sub string, millis int64, now time.Time, ttl time.Duration) bool {
	if sub != DeriveSub(token, millis) {
		return false
	}
	return now.UnixMilli() <= millis+ttl.Milliseconds()
}
