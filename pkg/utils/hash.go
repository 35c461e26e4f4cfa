package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Fingerprint hashes the JSON encoding of parts. Map keys are sorted by
// encoding/json, so equal values always produce equal fingerprints.
func Fingerprint(parts ...any) (string, error) {
	b, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("failed to encode fingerprint input: %w", err)
	}
	return HashString(string(b)), nil
}
