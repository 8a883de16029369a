// Package errors defines the error taxonomy shared by the credential loader, the
// authenticator, the HTTP transport and the post fetcher.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ConfigError indicates a problem with the configuration or with caller supplied
// parameters such as a subreddit name.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
	// Missing lists every required setting that was absent, by environment variable name
	Missing []string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("config error: missing required API credentials: %s", strings.Join(e.Missing, ", "))
	}
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// AuthError indicates an authentication or session verification failure.
type AuthError struct {
	// StatusCode is the HTTP status code (if from an HTTP response)
	StatusCode int
	// Message contains the detailed error message
	Message string
	// Body contains the raw response body (if available)
	Body string
	// Err contains the underlying error if available
	Err error
}

func (e *AuthError) Error() string {
	parts := []string{}

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status code %d", e.StatusCode))
	}
	if e.Body != "" {
		parts = append(parts, fmt.Sprintf("body: %q", e.Body))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("err: %v", e.Err))
	}

	if len(parts) == 0 {
		return "auth error"
	}
	return "auth error: " + strings.Join(parts, ", ")
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// StateError indicates an operation was attempted when the client is not ready.
type StateError struct {
	// Operation is the name of the operation that was attempted
	Operation string
	// Message contains the detailed error message
	Message string
}

func (e *StateError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("state error during %s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("state error: %s", e.Message)
}

// RequestError indicates the request never produced an HTTP response, usually a
// network failure.
type RequestError struct {
	// Operation is the name of the API operation that failed
	Operation string
	// URL is the URL that was being accessed
	URL string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" && e.URL != "" {
		return fmt.Sprintf("request error during %s to %s: %s", e.Operation, e.URL, msg)
	} else if e.Operation != "" {
		return fmt.Sprintf("request error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("request error: %s", msg)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ParseError indicates a response body that could not be decoded.
type ParseError struct {
	// Operation is the name of the API operation where parsing failed
	Operation string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" {
		return fmt.Sprintf("parse error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("parse error: %s", msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// APIError represents a non-2xx response from the Reddit API.
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// ErrorCode is the error code from Reddit (if available)
	ErrorCode string
	// Message is the error message from Reddit
	Message string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("reddit API error (status %d, code %s): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
}

// RateLimitError is returned when Reddit throttles a request. Wait is the
// server-advised delay before the request may be repeated.
type RateLimitError struct {
	StatusCode int
	Wait       time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (status %d): retry after %s", e.StatusCode, e.Wait)
}

// ClientError indicates a problem inside the client itself rather than on the wire.
type ClientError struct {
	// Operation describes what the client was trying to do
	Operation string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *ClientError) Error() string {
	if e.Err != nil && e.Operation == "" && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("client error: %v", e.Err)
	}
	if e.Operation != "" && e.Message != "" {
		return fmt.Sprintf("client error during %s: %s", e.Operation, e.Message)
	}
	if e.Operation != "" {
		return fmt.Sprintf("client error during %s", e.Operation)
	}
	if e.Message != "" {
		return fmt.Sprintf("client error: %s", e.Message)
	}
	return "client error"
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// Fetch failure categories reported by FetchError.
const (
	CategoryNetwork    = "network"
	CategoryResponse   = "api response"
	CategoryParse      = "parse"
	CategoryClient     = "client"
	CategoryCanceled   = "canceled"
	CategoryUnexpected = "unexpected"
)

// FetchError is a non rate-limit failure while listing posts from a feed.
type FetchError struct {
	// Category is one of the Category* constants
	Category string
	// Feed is the subreddit being fetched
	Feed string
	// Err is the underlying failure
	Err error
}

func (e *FetchError) Error() string {
	if e.Feed != "" {
		return fmt.Sprintf("fetch r/%s failed (%s): %v", e.Feed, e.Category, e.Err)
	}
	return fmt.Sprintf("fetch failed (%s): %v", e.Category, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
