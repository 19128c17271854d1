package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelNotFound(t *testing.T) {
	assert.EqualError(t, &ModelNotFoundError{ModelID: "nope"}, "Invalid model ID")
}

func TestMissingSecret(t *testing.T) {
	err := &MissingSecretError{Provider: "openai", SecretName: "ghostline.openai.apiKey"}
	assert.Contains(t, err.Error(), "openai")
	assert.Contains(t, err.Error(), "Set API Key")
}

func TestIsConfigurationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "model not found", err: &ModelNotFoundError{}, want: true},
		{name: "wrapped missing secret", err: fmt.Errorf("call: %w", &MissingSecretError{}), want: true},
		{name: "transport", err: New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConfigurationError(tt.err))
		})
	}
}
