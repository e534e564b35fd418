package cmd

import (
	"bytes"
	"context"
	"io"

	"github.com/dotcommander/papermate/internal/source"
)

// readStdin returns the piped input, or "" when nothing was piped.
func readStdin(ctx context.Context, r io.Reader) (string, error) {
	bts, err := io.ReadAll(r)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	if len(bytes.TrimSpace(bts)) == 0 {
		return "", nil
	}
	return source.FromReader(bytes.NewReader(bts))(ctx)
}

// drainStdin exhausts piped input nobody reads, keeping pipes predictable.
func (rt *runtime) drainStdin(r io.Reader) {
	if rt.isInputTTY() {
		return
	}
	_, _ = io.Copy(io.Discard, r)
}
