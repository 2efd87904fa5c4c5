// Package authn implements the step-up login challenge: after a password
// check, a one-time code is delivered out of band and must be verified
// before tokens are issued.
package authn

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Challenge is a pending one-time code. Only the hash of the code is ever
// stored; the plaintext exists just long enough to hand to the notifier.
type Challenge struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
	CreatedAt time.Time
}

func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// generateCode returns a random 6-digit numeric code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func codeMatches(hash, submitted string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte(hashCode(submitted))) == 1
}
