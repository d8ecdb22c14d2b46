package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"cvmatch/internal/errors"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVault serves secrets from memory
type fakeVault map[string]map[string]any

func (f fakeVault) GetSecretV2(path string) (*VaultSecret, error) {
	data, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	return &VaultSecret{Data: data, Version: 1}, nil
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64", input: int64(42), expected: 42},
		{name: "float64", input: float64(7), expected: 7},
		{name: "int", input: 3, expected: 3},
		{name: "json number", input: json.Number("12"), expected: 12},
		{name: "string", input: " 42 ", expected: 42},
		{name: "invalid string", input: "v2", expectError: true},
		{name: "invalid json number", input: json.Number("1.5"), expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "secret/data/cvmatch")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDecodeKVv2(t *testing.T) {
	tests := []struct {
		name        string
		secret      *api.Secret
		expected    *VaultSecret
		expectError string
	}{
		{
			name: "kv v2 secret",
			secret: &api.Secret{Data: map[string]any{
				"data":     map[string]any{"api_key": "abc"},
				"metadata": map[string]any{"version": json.Number("4")},
			}},
			expected: &VaultSecret{Data: map[string]any{"api_key": "abc"}, Version: 4},
		},
		{
			name:        "flat kv v1 secret",
			secret:      &api.Secret{Data: map[string]any{"api_key": "abc"}},
			expectError: "missing 'data' field",
		},
		{
			name:        "missing metadata",
			secret:      &api.Secret{Data: map[string]any{"data": map[string]any{}}},
			expectError: "missing 'metadata' field",
		},
		{
			name: "missing version",
			secret: &api.Secret{Data: map[string]any{
				"data":     map[string]any{},
				"metadata": map[string]any{"created_time": "2025-01-01"},
			}},
			expectError: "missing 'version' field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := decodeKVv2(tt.secret, "secret/data/cvmatch")
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestApplySecrets(t *testing.T) {
	paths := VaultSecrets{
		APIKeys:   "secret/data/cvmatch/server",
		GeminiKey: "secret/data/cvmatch/gemini",
		TLSCerts:  "secret/data/cvmatch/tls",
	}

	t.Run("all secrets", func(t *testing.T) {
		cfg := &Config{
			Vault: VaultConfig{Secrets: paths},
			AI:    AIConfig{APIKey: "from-env", Gaps: OperationAIConfig{APIKey: "from-file"}},
		}
		vault := fakeVault{
			paths.APIKeys:   {"keys": " k1, k2 ,,k3 "},
			paths.GeminiKey: {"api_key": "vault-key", "questionnaire_api_key": "questions-key"},
			paths.TLSCerts:  {"cert": "cert-pem", "key": "key-pem"},
		}

		require.NoError(t, applySecrets(vault, cfg, errors.NopLogger()))

		assert.Equal(t, []string{"k1", "k2", "k3"}, cfg.Server.APIKeys)
		assert.Equal(t, "vault-key", cfg.AI.APIKey)
		assert.Equal(t, "vault-key", cfg.AI.Extract.APIKey)
		assert.Equal(t, "vault-key", cfg.AI.Gaps.APIKey)
		assert.Equal(t, "questions-key", cfg.AI.Questionnaire.APIKey)
		assert.Equal(t, "cert-pem", cfg.Server.TLS.CertContent)
		assert.Equal(t, "key-pem", cfg.Server.TLS.KeyContent)
	})

	t.Run("empty paths are skipped", func(t *testing.T) {
		cfg := &Config{AI: AIConfig{APIKey: "unchanged"}}
		require.NoError(t, applySecrets(fakeVault{}, cfg, nil))
		assert.Equal(t, "unchanged", cfg.AI.APIKey)
	})

	t.Run("empty key list keeps configured keys", func(t *testing.T) {
		cfg := &Config{
			Vault:  VaultConfig{Secrets: VaultSecrets{APIKeys: paths.APIKeys}},
			Server: ServerConfig{APIKeys: []string{"configured"}},
		}
		require.NoError(t, applySecrets(fakeVault{paths.APIKeys: {"keys": ""}}, cfg, nil))
		assert.Equal(t, []string{"configured"}, cfg.Server.APIKeys)
	})

	t.Run("missing secret", func(t *testing.T) {
		cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{GeminiKey: paths.GeminiKey}}}
		err := applySecrets(fakeVault{}, cfg, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Gemini API key")
	})

	t.Run("non-string key", func(t *testing.T) {
		cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{GeminiKey: paths.GeminiKey}}}
		err := applySecrets(fakeVault{paths.GeminiKey: {"api_key": 42}}, cfg, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a string")
	})

	for _, field := range []string{"cert_file", "key_file"} {
		t.Run("rejects "+field, func(t *testing.T) {
			cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{TLSCerts: paths.TLSCerts}}}
			err := applySecrets(fakeVault{paths.TLSCerts: {field: "/etc/tls/x.pem"}}, cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), field)
		})
	}
}

func TestResolveVaultToken(t *testing.T) {
	t.Run("token from config", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token", TokenFile: "/ignored"})
		require.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token from file is trimmed", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "vault-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token  \n"), 0600))

		token, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile})
		require.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("missing token file", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{TokenFile: filepath.Join(t.TempDir(), "absent")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read vault token file")
	})

	t.Run("blank token file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "blank")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  \n"), 0600))

		_, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "vault token is required")
	})
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	cfg := &Config{AI: AIConfig{APIKey: "unchanged"}}

	require.NoError(t, ApplyVaultSecrets(cfg, errors.NopLogger()))
	assert.Equal(t, "unchanged", cfg.AI.APIKey)
}

func TestGetSecretV2NilClient(t *testing.T) {
	var vc *VaultClient
	_, err := vc.GetSecretV2("secret/data/cvmatch")
	assert.Error(t, err)
}
