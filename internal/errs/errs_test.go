package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Run("falls back to reason", func(t *testing.T) {
		err := Error{Reason: "nope"}
		require.Equal(t, "nope", err.Error())
	})

	t.Run("wrapped error wins", func(t *testing.T) {
		inner := errors.New("boom")
		err := Wrap(inner, "Could not do it.")
		require.Equal(t, "boom", err.Error())
		require.Equal(t, "Could not do it.", err.ReasonText())
		require.ErrorIs(t, err, inner)
	})
}

func TestKindf(t *testing.T) {
	err := Kindf(ErrMissingCredential, "api_key for %q", "deepseek")
	require.ErrorIs(t, err, ErrMissingCredential)
	require.Contains(t, err.Error(), `api_key for "deepseek"`)
	require.True(t, IsConfiguration(err))

	wrapped := Wrap(err, "Could not start the agent.")
	require.True(t, IsConfiguration(wrapped))
	require.False(t, IsConfiguration(errors.New("other")))
}
