package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// AnonymousUser is the stable identity used when a request carries no user.
// It gets a real bucket like any other user.
const AnonymousUser = "anonymous"

// UserBucket derives the per-user storage namespace from a user identifier.
// The same user always maps to the same bucket; an empty identifier maps to
// the anonymous bucket.
func UserBucket(userID string) string {
	if userID == "" {
		userID = AnonymousUser
	}
	sum := sha256.Sum256([]byte(userID))
	return "users/" + hex.EncodeToString(sum[:])[:12]
}

// ArtifactFilename builds a deterministic filename for a crawl output:
// <safe_host>_<hash8>.<ext>. The hash covers both URL and title so that two
// pages on the same host never collide, while re-crawling the same page
// always overwrites the same object.
func ArtifactFilename(pageURL, title, ext string) string {
	host := SafeHost(pageURL)
	sum := sha256.Sum256([]byte(pageURL + "|" + title))
	hash := hex.EncodeToString(sum[:])[:8]

	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return fmt.Sprintf("%s_%s", host, hash)
	}
	return fmt.Sprintf("%s_%s.%s", host, hash, ext)
}

// SafeHost extracts the host from a URL and normalizes it to a
// filesystem-safe token: lowercase, dots and dashes become underscores.
// Unparseable URLs map to "unknown".
func SafeHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")

	var b strings.Builder
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	safe := b.String()
	if safe == "" {
		return "unknown"
	}
	return safe
}
