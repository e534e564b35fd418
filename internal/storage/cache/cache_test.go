package cache

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCache(t *testing.T) {
	base := t.TempDir()
	c, err := New[doc](base, TranscriptCache)
	require.NoError(t, err)

	t.Run("put get", func(t *testing.T) {
		require.NoError(t, c.Put("abcdef", doc{Name: "a", Count: 2}))
		got, err := c.Get("abcdef")
		require.NoError(t, err)
		require.Equal(t, doc{Name: "a", Count: 2}, got)
		require.FileExists(t, filepath.Join(base, string(TranscriptCache), "ab", "abcdef.json"))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, c.Put("abcdef", doc{Name: "b"}))
		got, err := c.Get("abcdef")
		require.NoError(t, err)
		require.Equal(t, "b", got.Name)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := c.Get("zzzz")
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid id", func(t *testing.T) {
		require.Error(t, c.Put("", doc{}))
		_, err := c.Get("")
		require.Error(t, err)
		require.Error(t, c.Delete(""))
	})

	t.Run("failed write keeps old value", func(t *testing.T) {
		require.Error(t, c.Write("abcdef", func(io.Writer) error { return io.ErrUnexpectedEOF }))
		got, err := c.Get("abcdef")
		require.NoError(t, err)
		require.Equal(t, "b", got.Name)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Delete("abcdef"))
		_, err := c.Get("abcdef")
		require.Error(t, err)
		require.Error(t, c.Delete("abcdef"))
	})
}
