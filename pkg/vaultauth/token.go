package vaultauth

import (
	"context"
	"os"
	"time"

	vault "github.com/hashicorp/vault-client-go"
	"github.com/hashicorp/vault-client-go/schema"

	"github.com/soulkyu/leasekeeper/pkg/lifecycle"
)

// TokenAuthenticator authenticates with a pre-issued Vault token and
// keeps it alive via self-renewal, for deployments that provision a
// token out of band (e.g. injected by a wrapping agent) instead of
// letting this package mint one.
type TokenAuthenticator struct {
	BaseAuthenticator
	token string
}

// NewTokenAuth creates a new token authenticator.
func NewTokenAuth(config *TokenConfig, vaultAddr string) (*TokenAuthenticator, error) {
	if config == nil {
		return nil, NewAuthError(AuthMethodToken, "new", ErrMissingConfiguration, "token configuration is required")
	}

	token := config.Token
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
		if token == "" {
			return nil, NewAuthError(AuthMethodToken, "new", ErrMissingConfiguration, "token is required")
		}
	}

	return &TokenAuthenticator{
		BaseAuthenticator: BaseAuthenticator{
			Method:    AuthMethodToken,
			VaultAddr: vaultAddr,
			Timeout:   30 * time.Second,
		},
		token: token,
	}, nil
}

func (t *TokenAuthenticator) client(token string) (*vault.Client, error) {
	client, err := vault.New(
		vault.WithAddress(t.VaultAddr),
		vault.WithRequestTimeout(t.Timeout),
	)
	if err != nil {
		return nil, err
	}
	if err := client.SetToken(token); err != nil {
		return nil, err
	}
	return client, nil
}

// Login validates the configured token against Vault and reports its
// current TTL and renewability as a lifecycle.AuthResult.
func (t *TokenAuthenticator) Login(ctx context.Context) (lifecycle.AuthResult, error) {
	client, err := t.client(t.token)
	if err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodToken, "login", err, "failed to create vault client")
	}

	resp, err := client.Auth.TokenLookUpSelf(ctx)
	if err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodToken, "login", err, "token validation failed")
	}

	return tokenResultFromLookup(t.token, resp.Data), nil
}

// Renew extends the token's lease via Vault's token-renew-self endpoint.
func (t *TokenAuthenticator) Renew(ctx context.Context, current lifecycle.AuthResult) (lifecycle.AuthResult, error) {
	client, err := t.client(current.ClientToken)
	if err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodToken, "renew", err, "failed to create vault client")
	}

	renewResp, err := client.Auth.TokenRenewSelf(ctx, schema.TokenRenewSelfRequest{})
	if err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodToken, "renew", err, "failed to renew token")
	}

	result := current
	if auth := renewResp.Auth; auth != nil {
		result.LeaseDurationSeconds = auth.LeaseDuration
		result.Renewable = auth.Renewable
	}
	return result, nil
}

func tokenResultFromLookup(token string, data map[string]interface{}) lifecycle.AuthResult {
	result := lifecycle.AuthResult{ClientToken: token}
	if ttl, ok := data["ttl"].(float64); ok {
		result.LeaseDurationSeconds = int(ttl)
	}
	if renewable, ok := data["renewable"].(bool); ok {
		result.Renewable = renewable
	}
	return result
}
