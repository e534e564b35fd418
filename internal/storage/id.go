package storage

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// IDShort is the display length used in CLI output.
	IDShort = 8
	// IDMinLen is the minimum prefix length considered for ID matching.
	IDMinLen = 4
)

// IDRegexp matches a full transcript ID.
var IDRegexp = regexp.MustCompile(`\b[0-9a-f]{32}\b`)

// NewID returns a random transcript ID.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ShortID is the prefix of id shown in listings.
func ShortID(id string) string {
	if len(id) <= IDShort {
		return id
	}
	return id[:IDShort]
}
