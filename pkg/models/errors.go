package models

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// ConfigurationError reports a structurally invalid MatchConfiguration.
// It is raised once, before any comparison, and is fatal to the run.
type ConfigurationError struct {
	Field  string
	Reason string
}

// NewConfigurationError creates a configuration error for a field (may be empty)
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid match configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid match configuration: field %q: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Error()).AddMetaValue("field", e.Field).AddMetaValue("reason", e.Reason)
}

// IsConfigurationError reports whether err wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// AsConfigurationError extracts a ConfigurationError from err
func AsConfigurationError(err error) (*ConfigurationError, bool) {
	var cfgErr *ConfigurationError
	ok := errors.As(err, &cfgErr)
	return cfgErr, ok
}
