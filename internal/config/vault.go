package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cvmatch/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets holds the KVv2 paths secrets are read from. An empty path
// skips that secret.
type VaultSecrets struct {
	// APIKeys holds "keys": a comma-separated list of server API keys
	APIKeys string `mapstructure:"apiKeys"`
	// GeminiKey holds "api_key" plus optional "<operation>_api_key" overrides
	GeminiKey string `mapstructure:"geminiKey"`
	// TLSCerts holds "cert" and "key" as PEM content
	TLSCerts string `mapstructure:"tlsCerts"`
}

// VaultSecret is the data and version of a KVv2 secret
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// secretReader reads KVv2 secrets by path
type secretReader interface {
	GetSecretV2(path string) (*VaultSecret, error)
}

// VaultClient reads secrets from a Vault KVv2 engine
type VaultClient struct {
	client *api.Client
	logger *errors.Logger
}

// NewVaultClient connects to Vault. It returns nil when Vault is disabled.
func NewVaultClient(cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	logger = errors.OrNop(logger)
	if !cfg.Enabled {
		logger.Debug("Vault integration disabled")
		return nil, nil
	}

	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := resolveVaultToken(cfg)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault at %s: %w", apiCfg.Address, err)
	}
	logger.Info("Connected to Vault",
		"address", apiCfg.Address,
		"namespace", cfg.Namespace,
		"version", health.Version,
		"sealed", health.Sealed)

	return &VaultClient{client: client, logger: logger}, nil
}

// resolveVaultToken prefers the configured token over the token file
func resolveVaultToken(cfg VaultConfig) (string, error) {
	token := cfg.Token
	if token == "" && cfg.TokenFile != "" {
		data, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// GetSecretV2 reads a KVv2 secret
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	vc.logger.Debug("Read secret from Vault", "path", path)
	return decodeKVv2(secret, path)
}

// decodeKVv2 unpacks the data and metadata envelope of a KVv2 read
func decodeKVv2(secret *api.Secret, path string) (*VaultSecret, error) {
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	raw, ok := metadata["version"]
	if !ok {
		return nil, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}
	version, err := parseVersionValue(raw, path)
	if err != nil {
		return nil, err
	}
	return &VaultSecret{Data: data, Version: version}, nil
}

// parseVersionValue accepts the numeric encodings Vault responses use
func parseVersionValue(raw any, path string) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		version, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, raw)
	}
}

// String returns a string field of the secret; a missing field is ""
func (s *VaultSecret) String(key string) (string, error) {
	value, ok := s.Data[key]
	if !ok {
		return "", nil
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string", key)
	}
	return strings.TrimSpace(str), nil
}

// secretBinding copies one Vault secret into the configuration
type secretBinding struct {
	name  string
	path  func(VaultSecrets) string
	apply func(*Config, *VaultSecret, *errors.Logger) error
}

var secretBindings = []secretBinding{
	{name: "server API keys", path: func(s VaultSecrets) string { return s.APIKeys }, apply: applyServerKeys},
	{name: "Gemini API key", path: func(s VaultSecrets) string { return s.GeminiKey }, apply: applyGenerationKeys},
	{name: "TLS certificates", path: func(s VaultSecrets) string { return s.TLSCerts }, apply: applyTLSMaterial},
}

// ApplyVaultSecrets overlays secrets from Vault onto cfg. Vault values take
// precedence over every other source.
func ApplyVaultSecrets(cfg *Config, logger *errors.Logger) error {
	if !cfg.Vault.Enabled {
		return nil
	}
	client, err := NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}
	return applySecrets(client, cfg, logger)
}

func applySecrets(reader secretReader, cfg *Config, logger *errors.Logger) error {
	logger = errors.OrNop(logger)
	for _, b := range secretBindings {
		path := b.path(cfg.Vault.Secrets)
		if path == "" {
			continue
		}
		secret, err := reader.GetSecretV2(path)
		if err != nil {
			return fmt.Errorf("failed to load %s from vault: %w", b.name, err)
		}
		if err := b.apply(cfg, secret, logger); err != nil {
			return fmt.Errorf("invalid %s secret at %s: %w", b.name, path, err)
		}
		logger.Info("Applied secret from Vault", "secret", b.name, "path", path, "version", secret.Version)
	}
	return nil
}

func applyServerKeys(cfg *Config, secret *VaultSecret, logger *errors.Logger) error {
	value, err := secret.String("keys")
	if err != nil {
		return err
	}
	var keys []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			keys = append(keys, part)
		}
	}
	if len(keys) == 0 {
		logger.Warn("No server API keys found in Vault secret")
		return nil
	}
	cfg.Server.APIKeys = keys
	return nil
}

// applyGenerationKeys sets the global key, then gives each operation its own
// "<operation>_api_key" when present and the global key otherwise
func applyGenerationKeys(cfg *Config, secret *VaultSecret, logger *errors.Logger) error {
	global, err := secret.String("api_key")
	if err != nil {
		return err
	}
	if global != "" {
		cfg.AI.APIKey = global
	}

	for _, name := range Operations {
		own, err := secret.String(name + "_api_key")
		if err != nil {
			return err
		}
		switch {
		case own != "":
			cfg.operationRef(name).APIKey = own
		case global != "":
			cfg.operationRef(name).APIKey = global
		}
	}

	if global == "" {
		logger.Warn("Gemini API key secret has no api_key field")
	}
	return nil
}

// applyTLSMaterial loads PEM content. File paths are rejected because the
// files would not exist where the server runs.
func applyTLSMaterial(cfg *Config, secret *VaultSecret, _ *errors.Logger) error {
	for _, field := range []string{"cert_file", "key_file"} {
		if _, ok := secret.Data[field]; ok {
			return fmt.Errorf("'%s' is not supported, store PEM content in '%s'", field, strings.TrimSuffix(field, "_file"))
		}
	}

	cert, err := secret.String("cert")
	if err != nil {
		return err
	}
	key, err := secret.String("key")
	if err != nil {
		return err
	}
	if cert != "" {
		cfg.Server.TLS.CertContent = cert
	}
	if key != "" {
		cfg.Server.TLS.KeyContent = key
	}
	return nil
}
