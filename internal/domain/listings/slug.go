package listings

import (
	"strings"
	"time"
	"unicode"
)

const maxSlugTitleRunes = 48

// DeriveSlug builds the public slug from the listing title and creation date.
// The date suffix keeps slugs unique across listings sharing a title; the
// repository enforces uniqueness with an index and callers append a short
// discriminator on collision.
func DeriveSlug(title string, createdAt time.Time) string {
	base := slugify(title)
	if base == "" {
		base = "listing"
	}
	return base + "-" + createdAt.UTC().Format("20060102")
}

func slugify(raw string) string {
	var b strings.Builder
	lastDash := true
	count := 0
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if count >= maxSlugTitleRunes {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
			count++
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
			count++
		}
	}
	return strings.Trim(b.String(), "-")
}
