// Package verify judges semantic GUI tests with vision-language models.
//
// Two families of provider exist. Judges send one screenshot and a prompt
// to a vision chat endpoint and parse a JSON verdict. Agents drive the live
// browser session themselves until they decide whether the expected outcome
// holds, so the caller does not need to capture a screenshot for them.
package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/guitest/pkg/types"
)

// Request describes one semantic check.
type Request struct {
	TestID         string
	Instruction    string
	Expected       string
	ScreenshotPath string
}

// Provider judges whether the expected outcome of a request holds.
//
// Verify returns an error only for transport or provider failures; a
// negative judgment is a Verification with Passed false.
type Provider interface {
	Name() string
	// Agentic reports whether the provider inspects the page itself.
	Agentic() bool
	Verify(ctx context.Context, req Request) (types.Verification, error)
}

var (
	// ErrMissingCredential is returned by New when no API key is configured.
	ErrMissingCredential = fmt.Errorf("%w: missing API key", types.ErrConfig)

	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = fmt.Errorf("%w: unknown provider", types.ErrConfig)
)

// APIError is a non-success response from a provider endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap returns types.ErrProvider.
func (e *APIError) Unwrap() error {
	return types.ErrProvider
}

// IsMissingCredential reports whether err means the provider has no key.
func IsMissingCredential(err error) bool {
	return errors.Is(err, ErrMissingCredential)
}

const screenshotRequired = "Screenshot is required for this provider"

func missingScreenshot() types.Verification {
	return types.Verification{Passed: false, Reasoning: screenshotRequired}
}
