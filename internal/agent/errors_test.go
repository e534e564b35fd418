package agent

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/papermate/internal/errs"
	"github.com/dotcommander/papermate/internal/normalize"
	"github.com/dotcommander/papermate/internal/provider"
)

var failureTextTests = map[string]struct {
	err      error
	contains string
}{
	"nil": {
		err:      nil,
		contains: "unknown failure",
	},
	"status": {
		err:      &provider.TransportError{Provider: "deepseek", StatusCode: http.StatusUnauthorized, Message: "bad key"},
		contains: "HTTP 401: bad key",
	},
	"context length": {
		err:      &provider.TransportError{Provider: "openai", StatusCode: http.StatusBadRequest, Message: "context_length_exceeded"},
		contains: "Maximum prompt size exceeded.",
	},
	"refused": {
		err:      &provider.TransportError{Provider: "deepseek", Err: errors.New("connection refused")},
		contains: "deepseek API request failed: connection refused",
	},
	"timeout": {
		err:      &provider.TransportError{Provider: "deepseek", Err: context.DeadlineExceeded},
		contains: "timed out",
	},
	"canceled": {
		err:      &provider.TransportError{Provider: "deepseek", Err: context.Canceled},
		contains: "canceled",
	},
	"normalization": {
		err:      &normalize.Error{Provider: "alibaba", Policy: normalize.PolicySDKJSON, Reason: "missing choices.0.message.content"},
		contains: "alibaba returned a response",
	},
	"user error": {
		err:      errs.Wrap(errors.New("template: bad"), "Could not render the question template."),
		contains: "Could not render the question template.",
	},
}

func TestFailureText(t *testing.T) {
	for name, tc := range failureTextTests {
		t.Run(name, func(t *testing.T) {
			text := FailureText(tc.err)
			require.True(t, IsFailure(text))
			require.Contains(t, text, tc.contains)
		})
	}
}
