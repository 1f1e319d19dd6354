package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/secagent/pkg/secretagent"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// AgentError wraps a secret agent failure with a suggestion for the operator
func AgentError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var details string
	var agentErr *secretagent.Error
	if errors.As(err, &agentErr) {
		details = agentErr.Error()
	}

	return UserError{
		Message:    fmt.Sprintf("secret agent error during %s", operation),
		Details:    details,
		Suggestion: getAgentSuggestion(err),
		Err:        err,
	}
}

// getAgentSuggestion returns helpful suggestions based on the failure kind
func getAgentSuggestion(err error) string {
	errStr := strings.ToLower(err.Error())

	switch secretagent.KindOf(err) {
	case secretagent.KindBadRequest:
		return "Use the form secrets:<key> or secrets:<resource>:<key>"

	case secretagent.KindConnectionFailed:
		if strings.Contains(errStr, "certificate") || strings.Contains(errStr, "tls") {
			return "Check tls.ca_file and tls.server_name, or disable TLS if the agent does not use it"
		}
		if strings.Contains(errStr, "connection refused") {
			return "Verify the secret agent is running and listening on the configured address and port"
		}
		if strings.Contains(errStr, "no such host") {
			return "Check the agent address for typos"
		}
		return "Unable to connect. Check your network and agent configuration"

	case secretagent.KindIO:
		if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
			return "The agent did not answer in time. Try increasing timeout_ms"
		}
		return "The connection to the agent broke. Try again"

	case secretagent.KindProtocol:
		return "The agent sent an unexpected response. Verify the port belongs to the secret agent and whether it expects TLS"

	case secretagent.KindNotFound:
		return "Verify the resource and key exist in the agent configuration"
	}

	return ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch secretagent.KindOf(err) {
	case secretagent.KindConnectionFailed, secretagent.KindIO:
		return true
	case secretagent.KindBadRequest, secretagent.KindProtocol, secretagent.KindNotFound:
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"connection refused",
		"broken pipe",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	if _, ok := err.(UserError); ok {
		return err
	}
	if _, ok := err.(ConfigError); ok {
		return err
	}

	if secretagent.KindOf(err) != secretagent.KindUnknown {
		return AgentError("request", err)
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	// Return original error if we can't simplify it
	return err
}
