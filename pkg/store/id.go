package store

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	secretLength = 32
	charset      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	clientIDPrefix = "cli_"
	keyIDPrefix    = "key_"

	// secretPrefix marks raw API key secrets so they are recognizable in
	// logs and support tickets without revealing anything.
	secretPrefix = "pbom_sk_"
)

// NewClientID generates a new client ID with the "cli_" prefix.
func NewClientID() string {
	return clientIDPrefix + uuidHex()
}

// NewKeyID generates a new API key ID with the "key_" prefix.
func NewKeyID() string {
	return keyIDPrefix + uuidHex()
}

// NewSecret generates a new raw API key secret with the "pbom_sk_" prefix
// followed by 32 cryptographically random alphanumeric characters.
func NewSecret() string {
	return secretPrefix + randomAlphanumeric(secretLength)
}

func uuidHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
