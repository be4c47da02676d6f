// Package privacy keeps identities and clinical text out of logs.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Scrub redacts every email address in text.
func Scrub(text string) string {
	return emailRegex.ReplaceAllString(text, "[REDACTED_EMAIL]")
}

// MaskEmail keeps the first character of the local part and the domain:
// "doctor@example.com" becomes "d***@example.com".
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// Email is an address that logs masked.
type Email string

func (e Email) LogValue() slog.Value {
	return slog.StringValue(MaskEmail(string(e)))
}

// Note is clinical text that logs as its length and a short digest, never
// as content.
type Note string

func (n Note) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("len", len(n)),
		slog.String("digest", Digest(string(n))),
	)
}

// Digest is a short, stable correlation handle for text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:6])
}
