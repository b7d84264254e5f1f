package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrMalformedURL = errors.New("malformed URL")   // Page URL or reference cannot be parsed
	ErrFetch        = errors.New("fetch failed")    // Network/HTTP failure retrieving a page or resource
	ErrStorage      = errors.New("storage failure") // Filesystem failure creating/writing mirror output

	ErrRetryFailed      = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrResourceTooLarge = errors.New("resource exceeds maximum size")
	ErrParsing          = errors.New("parsing error") // HTML parse/render errors
	ErrDatabase         = errors.New("database error")
	ErrConfigValidation = errors.New("configuration validation error")
)

// MalformedURLError reports a page URL or resource reference that cannot be
// parsed into scheme, host and path.
type MalformedURLError struct {
	Raw string
	Err error
}

func (e *MalformedURLError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: '%s'", ErrMalformedURL, e.Raw)
	}
	return fmt.Sprintf("%v: '%s': %v", ErrMalformedURL, e.Raw, e.Err)
}

func (e *MalformedURLError) Unwrap() []error { return unwrapWith(ErrMalformedURL, e.Err) }

// FetchError reports a failed retrieval. StatusCode is 0 for transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%v for '%s': %v", ErrFetch, e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error { return unwrapWith(ErrFetch, e.Err) }

// StorageError reports a filesystem failure on Path during Op.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%v: %s '%s': %v", ErrStorage, e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() []error { return unwrapWith(ErrStorage, e.Err) }

func unwrapWith(sentinel, err error) []error {
	if err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, err}
}

// NewFetchError wraps err as a FetchError for rawURL.
func NewFetchError(rawURL string, statusCode int, err error) error {
	return &FetchError{URL: rawURL, StatusCode: statusCode, Err: err}
}

// NewStorageError wraps err as a StorageError.
func NewStorageError(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}

// WrapErrorf wraps err with a formatted message. Returns nil if err is nil.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging and the run journal.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrMalformedURL):
		return "URL_Malformed"
	case errors.Is(err, ErrFetch):
		return categorizeFetch(err)
	case errors.Is(err, ErrStorage):
		if errors.Is(err, os.ErrPermission) {
			return "Storage_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Storage_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Storage_Exist"
		}
		return "Storage_Other"
	case errors.Is(err, ErrParsing):
		return "Content_Parsing"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}
	if cat := categorizeNetwork(err); cat != "" {
		return cat
	}
	return "Unknown"
}

// categorizeFetch narrows a FetchError down to an HTTP or network category.
func categorizeFetch(err error) string {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode >= 300 {
		switch code := fetchErr.StatusCode; {
		case code == 404:
			return "HTTP_404"
		case code == 403:
			return "HTTP_403"
		case code == 401:
			return "HTTP_401"
		case code == 429:
			return "HTTP_429"
		case code >= 400 && code < 500:
			return "HTTP_4xx"
		case code >= 500:
			return "HTTP_5xx"
		default:
			return "HTTP_OtherStatus"
		}
	}

	switch {
	case errors.Is(err, ErrResourceTooLarge):
		return "Fetch_TooLarge"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrClientHTTPError):
		return "HTTP_4xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, context.Canceled):
		return "System_ContextCanceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "System_ContextDeadlineExceeded"
	}

	if cat := categorizeNetwork(err); cat != "" {
		if errors.Is(err, ErrRetryFailed) {
			return "RetryFailed_" + cat
		}
		return cat
	}
	if errors.Is(err, ErrRetryFailed) {
		return "RetryFailed_NetworkOther"
	}
	return "Fetch_Other"
}

// categorizeNetwork inspects common transport failures. Returns "" when nothing matches.
func categorizeNetwork(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_Timeout"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	}
	return ""
}
