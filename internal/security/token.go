package security

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// GenerateTransactionID creates a new UUID for a ledger transfer
func GenerateTransactionID() string {
	return uuid.New().String()
}

// GenerateEventID creates a new UUID for an audit event
func GenerateEventID() string {
	return uuid.New().String()
}

// GenerateRecoveryCode returns an 8-digit numeric verification code
func GenerateRecoveryCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}
