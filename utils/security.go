// jotlet/utils/security.go
package utils

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"
)

const slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Board slugs are 8 lowercase alphanumerics; 6-character slugs (including
// the legacy all-digit ones) are still accepted.
var slugPattern = regexp.MustCompile(`^(?:[a-z0-9]{6}|[a-z0-9]{8})$`)

// GetIPAddress extracts the real IP address from a request, trusting X-Real-IP from a reverse proxy.
func GetIPAddress(r *http.Request) string {
	if cf := r.Header.Get("CF-Connecting-IP"); cf != "" {
		return cf
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ValidSlug reports whether s has the shape of a public board identifier.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// GenerateSlug returns a random slug of n characters from [a-z0-9].
func GenerateSlug(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = slugAlphabet[int(b)%len(slugAlphabet)]
	}
	return string(buf), nil
}

// DeriveKey stretches an arbitrary secret into a 32-byte BLAKE3 key.
func DeriveKey(secret string) []byte {
	sum := blake3.Sum256([]byte(secret))
	return sum[:]
}

// IdentityHash fingerprints an author identity within one board. The same
// identity yields the same hash on one board and unrelated hashes across
// boards, and the raw identity cannot be recovered from it.
func IdentityHash(key []byte, identity string, boardID int64) (string, error) {
	hasher, err := blake3.NewKeyed(key)
	if err != nil {
		return "", fmt.Errorf("init keyed hash: %w", err)
	}
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], uint64(boardID))
	hasher.Write(id[:])
	hasher.Write([]byte(identity))
	return hex.EncodeToString(hasher.Sum(nil)[:16]), nil
}
