// Package identity derives the anonymous client identity used for throttling.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashIP returns the hex sha256 of "<ip>-<salt>". Raw addresses are never stored.
func HashIP(ip, salt string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(ip) + "-" + salt))
	return hex.EncodeToString(sum[:])
}
