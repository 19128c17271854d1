package errors

import (
	stderr "errors"
	"fmt"
)

// ModelNotFoundError indicates that a model id is not present in the model table.
type ModelNotFoundError struct {
	ModelID string
}

// Error is an implementation of the error interface.
func (n *ModelNotFoundError) Error() string {
	return "Invalid model ID"
}

// MissingSecretError indicates that no API key is stored for a provider.
type MissingSecretError struct {
	Provider   string
	SecretName string
}

// Error is an implementation of the error interface.
func (n *MissingSecretError) Error() string {
	return fmt.Sprintf("No API key found for %s. Run \"Ghostline: Set API Key\" to add one.", n.Provider)
}

// IsConfigurationError reports whether the error was caused by user configuration
// rather than by the transport.
func IsConfigurationError(e error) bool {
	var mnf *ModelNotFoundError
	var ms *MissingSecretError
	return stderr.As(e, &mnf) || stderr.As(e, &ms)
}
