package remotesync

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// NoAdapterFoundError is returned when zero or several adapters support a remote.
type NoAdapterFoundError struct {
	Remote  string
	Adapter string
	Matches []string
}

func (e *NoAdapterFoundError) Error() string {
	if len(e.Matches) == 0 {
		return fmt.Sprintf("no adapter found for remote %q (adapter %q)", e.Remote, e.Adapter)
	}
	return fmt.Sprintf("ambiguous adapter for remote %q (adapter %q): %s", e.Remote, e.Adapter, strings.Join(e.Matches, ", "))
}

// ConfigurationError reports missing or unusable remote credentials.
type ConfigurationError struct {
	Remote string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Remote, e.Reason)
}

// IntegrityError reports stored packages that disagree with the provider
// listing in a way sync cannot repair.
type IntegrityError struct {
	Remote     string
	ExternalID string
	Reason     string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("remote %s: package %q: %s", e.Remote, e.ExternalID, e.Reason)
}

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConfigurationError reports whether err should not be retried.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	var adapterErr *NoAdapterFoundError
	return errors.As(err, &cfgErr) || errors.As(err, &adapterErr)
}
