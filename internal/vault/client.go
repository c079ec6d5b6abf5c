// Package vault retrieves database credentials from HashiCorp Vault when
// enabled; otherwise configuration values are used as-is.
package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"

	"rental-ledger/config"
)

// DatabaseCredentials is the secret stored at the configured KV path.
type DatabaseCredentials struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig
}

// NewClient creates a new Vault client. A disabled config returns a client
// whose lookups report vault as unavailable.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg}, nil
}

// Enabled reports whether Vault lookups are active.
func (c *Client) Enabled() bool {
	return c.config.Enabled
}

// DatabaseCredentials reads the database secret from the KV v2 mount.
func (c *Client) DatabaseCredentials(ctx context.Context) (*DatabaseCredentials, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("vault is disabled")
	}

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("database credentials not found at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	creds := &DatabaseCredentials{
		User:     getString(data, "user"),
		Password: getString(data, "password"),
	}
	if creds.Password == "" {
		return nil, fmt.Errorf("database secret has no password field")
	}
	return creds, nil
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
