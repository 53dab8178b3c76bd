package security

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenBytes is the entropy behind every handle and CSRF token.
const TokenBytes = 32

// Token returns 256 bits from the CSPRNG as a 64-character hex string.
// Session handles and CSRF tokens both come from here; they are opaque
// lookup keys, never signed or self-describing.
func Token() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
