package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	// Core pipeline failures.
	ErrCodeEngineUnavailable = "ENGINE_UNAVAILABLE"
	ErrCodeNavigation        = "NAVIGATION_FAILED"
	ErrCodeTimeout           = "SCRAPE_TIMEOUT"
	ErrCodeExtraction        = "EXTRACTION_FAILED"

	// Transport-level failures.
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	URL     string // attempted URL, set for navigation failures
	Err     error  // wrapped original error
}

func (e *ScrapeError) Error() string {
	msg := e.Message
	if e.URL != "" {
		msg = fmt.Sprintf("%s (%s)", e.Message, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// NewNavigationError creates a navigation failure that carries the URL
// the renderer attempted to load.
func NewNavigationError(code, targetURL, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, URL: targetURL, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message, URL: e.URL}
}

// CodeOf returns the ScrapeError code found in err's chain, or "" when
// err does not wrap a ScrapeError.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsEngineUnavailable reports whether err means no rendering session could be started.
func IsEngineUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeEngineUnavailable
}

// IsNavigationError reports whether err is a navigation failure. A
// navigation timeout counts as a navigation failure.
func IsNavigationError(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeNavigation || code == ErrCodeTimeout
}

// IsExtractionError reports whether the structural query against a page failed.
func IsExtractionError(err error) bool {
	return CodeOf(err) == ErrCodeExtraction
}
