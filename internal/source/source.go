// Package source turns files, readers and web pages into the plain text an
// agent is asked about.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dotcommander/papermate/internal/errs"
)

// MaxLength caps every text a source returns.
const MaxLength = 200_000

// TextSource produces text on demand.
type TextSource func(ctx context.Context) (string, error)

// FromFile reads the file at path.
func FromFile(path string) TextSource {
	return func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err //nolint:wrapcheck
		}
		f, err := os.Open(path)
		if err != nil {
			return "", errs.Wrapf(err, "Could not open %s.", path)
		}
		defer f.Close() //nolint:errcheck
		return read(f, path)
	}
}

// FromReader reads r until EOF.
func FromReader(r io.Reader) TextSource {
	return func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err //nolint:wrapcheck
		}
		return read(r, "input")
	}
}

// Open picks the source for ref: "-" is stdin, http(s) URLs are fetched as
// web pages, anything else is a file path.
func Open(ref string, stdin io.Reader) TextSource {
	switch {
	case ref == "-":
		return FromReader(stdin)
	case IsURL(ref):
		return FromURL(ref)
	default:
		return FromFile(ref)
	}
}

// IsURL reports whether ref names a web page rather than a file.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func read(r io.Reader, name string) (string, error) {
	bts, err := io.ReadAll(io.LimitReader(r, MaxLength*4))
	if err != nil {
		return "", errs.Wrapf(err, "Could not read %s.", name)
	}
	if !utf8.Valid(bts) {
		return "", errs.Error{Err: fmt.Errorf("%s is not valid UTF-8", name), Reason: "Only text files are supported."}
	}
	text := strings.TrimSpace(string(bts))
	if text == "" {
		return "", errs.Error{Err: fmt.Errorf("%s is empty", name), Reason: "Nothing to read."}
	}
	return truncate(text), nil
}

func truncate(s string) string {
	if len(s) <= MaxLength {
		return s
	}
	cut := MaxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
