// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Error variables for common OpenRouter errors.
var (
	// ErrNotConfigured indicates no API key is set.
	ErrNotConfigured = errors.New("OpenRouter API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrInsufficientCredits indicates the account has insufficient credits.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")
)

// GenericFailureMessage is used when an error response carries no message.
const GenericFailureMessage = "Failed to get response from OpenRouter"

// APIError is a non-success HTTP response from the completion API.
// Error returns the server-provided message verbatim so it can be shown to
// the user as-is.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Is maps well-known status codes onto the sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized
	case ErrInsufficientCredits:
		return e.Status == http.StatusPaymentRequired
	case ErrModelNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// apiErrorResponse covers both error body shapes seen in the wild:
// {"message": "..."} and {"error": {"code": ..., "message": "..."}}.
type apiErrorResponse struct {
	Message string `json:"message"`
	Error   *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

// parseErrorResponse converts an error body into an *APIError.
func parseErrorResponse(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Message: GenericFailureMessage}

	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}
	switch {
	case parsed.Message != "":
		apiErr.Message = parsed.Message
	case parsed.Error != nil && parsed.Error.Message != "":
		apiErr.Message = parsed.Error.Message
	}
	if parsed.Error != nil && len(parsed.Error.Code) > 0 {
		apiErr.Code = strings.Trim(string(parsed.Error.Code), `"`)
	}
	return apiErr
}
