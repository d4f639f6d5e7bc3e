package provider

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/storefront/internal/domain"
)

var (
	ErrUnauthorized = errors.New("provider: credentials rejected")
	ErrMissingKey   = errors.New("provider: secret key is required")
)

// APIError is a non-2xx provider response. Client errors other than auth
// failures and rate limiting match domain.ErrProviderRejected.
type APIError struct {
	StatusCode int
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Param      string `json:"param"`
	RequestID  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("provider error %d", e.StatusCode)
	if e.Type != "" {
		msg += " " + e.Type
	}
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrProviderRejected:
		return e.rejected()
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

func (e *APIError) rejected() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
