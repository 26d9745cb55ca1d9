// Package model defines wreckit's durable data types: Item, PRD, Index,
// BatchProgress, sandbox Session, and Doctor backup manifests (spec §3).
package model

import (
	"crypto/rand"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID mints a lexically-sortable, collision-resistant identifier for
// values that need one (batch-progress sessions, sandbox sessions, doctor
// backup sessions) but are not item slugs.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

var idSlugPattern = regexp.MustCompile(`^[0-9]{3}-[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug reports whether id looks like a well-formed item directory
// name, e.g. "036-create-wreckit-summarize-command".
func ValidSlug(id string) bool {
	return idSlugPattern.MatchString(strings.ToLower(id))
}

// storyIDPattern implements spec §6: "^US-(?:\d+|\d{3}-\d+)$".
var storyIDPattern = regexp.MustCompile(`^US-(?:\d+|\d{3}-\d+)$`)

// ValidStoryID reports whether id matches the PRD user-story id grammar.
func ValidStoryID(id string) bool {
	return storyIDPattern.MatchString(id)
}

// NumericPrefix extracts the leading numeric component of a slug id, e.g.
// "36" from "036-create-thing", used for ID resolution by numeric prefix.
func NumericPrefix(id string) string {
	i := 0
	for i < len(id) && id[i] >= '0' && id[i] <= '9' {
		i++
	}
	return id[:i]
}

// NowRFC3339 is the canonical timestamp format used across all artifact
// JSON (created_at/updated_at/started_at/...).
func NowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
