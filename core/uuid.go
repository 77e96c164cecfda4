package core

import (
	"crypto/sha1" //nolint:gosec // identifier derivation, not security
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// UUID derives a stable item identifier: the hex SHA-1 of the parts joined by ":".
// Every part must be non-empty.
func UUID(parts ...string) (string, error) {
	if len(parts) == 0 {
		return "", errors.New("uuid requires at least one value")
	}
	for i, p := range parts {
		if p == "" {
			return "", errors.Errorf("uuid value %d is empty", i)
		}
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":"))) //nolint:gosec
	return hex.EncodeToString(sum[:]), nil
}
