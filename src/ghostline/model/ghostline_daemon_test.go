package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

func TestSecretsFileYAML(t *testing.T) {
	var f SecretsFile
	err := yaml.Unmarshal([]byte("keys:\n  ghostline.openai.apiKey: sk-123\n"), &f)
	assert.NoError(t, err)
	assert.Equal(t, "sk-123", f.Keys["ghostline.openai.apiKey"])
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
