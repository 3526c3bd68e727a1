// Package naming builds deterministic resource identifiers shared with the
// provisioning layer, so discovery-by-name lines up with what the stack
// actually created.
package naming

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

// hashLen is the number of digest characters appended when a name has to be
// truncated. Eight hex characters keeps collisions out of reach for the
// handful of resources a single stack creates.
const hashLen = 8

var invalidChars = regexp.MustCompile(`[^a-zA-Z0-9-]+`)

// Sanitize strips characters that AWS resource names reject and collapses
// the result to a single dash between segments.
func Sanitize(name string) string {
	s := invalidChars.ReplaceAllString(name, "-")
	s = strings.Trim(s, "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}

// Prefix joins a stack name and component name and enforces maxLen.
// Short names pass through unchanged. When the joined name exceeds the
// limit it is truncated and a digest of the full name is appended, so two
// distinct long names can never truncate to the same identifier.
func Prefix(stack, component string, maxLen int) string {
	name := Sanitize(stack + "-" + component)
	if len(name) <= maxLen {
		return name
	}
	sum := sha1.Sum([]byte(name))
	suffix := hex.EncodeToString(sum[:])[:hashLen]
	keep := maxLen - hashLen - 1
	if keep < 1 {
		// Degenerate limit: the digest is all that fits.
		return suffix[:min(hashLen, maxLen)]
	}
	return name[:keep] + "-" + suffix
}
