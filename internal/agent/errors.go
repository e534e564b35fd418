package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"charm.land/fantasy"

	"github.com/dotcommander/papermate/internal/errs"
	"github.com/dotcommander/papermate/internal/normalize"
	"github.com/dotcommander/papermate/internal/provider"
)

const failurePrefix = "Error: "

// FailureText renders a failed call as the string Ask returns.
func FailureText(err error) string {
	if err == nil {
		return failurePrefix + "unknown failure"
	}
	return failurePrefix + describe(err)
}

// IsFailure reports whether an Ask answer is a rendered failure.
func IsFailure(answer string) bool {
	return strings.HasPrefix(answer, failurePrefix)
}

func describe(err error) string {
	var te *provider.TransportError
	if errors.As(err, &te) {
		return describeTransport(te)
	}
	var ne *normalize.Error
	if errors.As(err, &ne) {
		return fmt.Sprintf("%s returned a response papermate could not read (%s).", ne.Provider, ne.Reason)
	}
	var ue errs.Error
	if errors.As(err, &ue) && ue.Reason != "" {
		return ue.Reason
	}
	return err.Error()
}

func describeTransport(err *provider.TransportError) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s API request timed out.", err.Provider)
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("%s API request was canceled.", err.Provider)
	case err.StatusCode == 0:
		return err.Error()
	case err.StatusCode == http.StatusBadRequest && isContextLengthExceeded(err):
		return "Maximum prompt size exceeded."
	}

	reason := fantasy.ErrorTitleForStatusCode(err.StatusCode)
	if reason == "" {
		reason = fmt.Sprintf("%s API request error", err.Provider)
	}
	return fmt.Sprintf("%s: %s", reason, err.Error())
}

func isContextLengthExceeded(err *provider.TransportError) bool {
	msg := strings.ToLower(err.Message)
	return strings.Contains(msg, "context_length_exceeded") ||
		strings.Contains(msg, "maximum context length")
}
