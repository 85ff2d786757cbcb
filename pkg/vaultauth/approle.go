package vaultauth

import (
	"context"
	"os"
	"time"

	vault "github.com/hashicorp/vault-client-go"
	"github.com/hashicorp/vault-client-go/schema"

	"github.com/soulkyu/leasekeeper/pkg/lifecycle"
)

const defaultAppRoleMountPath = "approle"

// AppRoleAuthenticator implements AppRole-based authentication.
type AppRoleAuthenticator struct {
	BaseAuthenticator
	roleID    string
	secretID  string
	mountPath string
}

// NewAppRoleAuth creates a new AppRole authenticator.
func NewAppRoleAuth(config *AppRoleConfig, vaultAddr string) (*AppRoleAuthenticator, error) {
	if config == nil {
		config = &AppRoleConfig{}
	}

	if config.MountPath == "" {
		config.MountPath = defaultAppRoleMountPath
	}

	if config.RoleID == "" {
		config.RoleID = os.Getenv("VAULT_ROLE_ID")
		if config.RoleID == "" {
			return nil, NewAuthError(AuthMethodAppRole, "new", ErrMissingConfiguration, "role_id is required")
		}
	}

	if config.SecretID == "" {
		// SecretID might be optional for some AppRole configurations
		config.SecretID = os.Getenv("VAULT_SECRET_ID")
	}

	return &AppRoleAuthenticator{
		BaseAuthenticator: BaseAuthenticator{
			Method:    AuthMethodAppRole,
			VaultAddr: vaultAddr,
			Timeout:   30 * time.Second,
		},
		roleID:    config.RoleID,
		secretID:  config.SecretID,
		mountPath: config.MountPath,
	}, nil
}

func (a *AppRoleAuthenticator) newClient() (*vault.Client, error) {
	return vault.New(
		vault.WithAddress(a.VaultAddr),
		vault.WithRequestTimeout(a.Timeout),
	)
}

func (a *AppRoleAuthenticator) loginRequest() schema.AppRoleLoginRequest {
	req := schema.AppRoleLoginRequest{RoleId: a.roleID}
	if a.secretID != "" {
		req.SecretId = a.secretID
	}
	return req
}

// Login performs AppRole authentication.
func (a *AppRoleAuthenticator) Login(ctx context.Context) (lifecycle.AuthResult, error) {
	client, err := a.newClient()
	if err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodAppRole, "login", err, "failed to create vault client")
	}

	resp, err := client.Auth.AppRoleLogin(ctx, a.loginRequest(), vault.WithMountPath(a.mountPath))
	if err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodAppRole, "login", err, "approle login failed")
	}
	if resp.Auth == nil || resp.Auth.ClientToken == "" {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodAppRole, "login", ErrAuthenticationFailed, "no token received from Vault")
	}

	if wrapped, ok := resp.Auth.Metadata["wrapped_secret_id"]; ok && wrapped != "" {
		a.secretID = wrapped
	}

	return lifecycle.AuthResult{
		ClientToken:          resp.Auth.ClientToken,
		LeaseDurationSeconds: resp.Auth.LeaseDuration,
		Renewable:            resp.Auth.Renewable,
	}, nil
}

// Renew extends the current token's lease, re-authenticating with the
// role/secret ID pair if the renewal itself is rejected.
func (a *AppRoleAuthenticator) Renew(ctx context.Context, current lifecycle.AuthResult) (lifecycle.AuthResult, error) {
	client, err := a.newClient()
	if err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodAppRole, "renew", err, "failed to create vault client")
	}
	if err := client.SetToken(current.ClientToken); err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodAppRole, "renew", err, "failed to set token")
	}

	renewResp, err := client.Auth.TokenRenewSelf(ctx, schema.TokenRenewSelfRequest{})
	if err == nil && renewResp.Auth != nil {
		result := current
		result.LeaseDurationSeconds = renewResp.Auth.LeaseDuration
		result.Renewable = renewResp.Auth.Renewable
		return result, nil
	}

	resp, loginErr := client.Auth.AppRoleLogin(ctx, a.loginRequest(), vault.WithMountPath(a.mountPath))
	if loginErr != nil || resp.Auth == nil || resp.Auth.ClientToken == "" {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodAppRole, "renew", err, "token renewal failed")
	}

	return lifecycle.AuthResult{
		ClientToken:          resp.Auth.ClientToken,
		LeaseDurationSeconds: resp.Auth.LeaseDuration,
		Renewable:            resp.Auth.Renewable,
	}, nil
}

// RotateSecretID generates a new SecretID for the role using an
// already-authenticated privileged client. Not part of the Login/Renew
// lifecycle; called out of band by an operator or provisioning job.
func (a *AppRoleAuthenticator) RotateSecretID(ctx context.Context, client *vault.Client) (string, error) {
	resp, err := client.Auth.AppRoleWriteSecretId(
		ctx,
		a.roleID,
		schema.AppRoleWriteSecretIdRequest{},
		vault.WithMountPath(a.mountPath),
	)
	if err != nil {
		return "", NewAuthError(AuthMethodAppRole, "rotate_secret_id", err, "failed to generate new secret_id")
	}
	if resp.Data.SecretId == "" {
		return "", NewAuthError(AuthMethodAppRole, "rotate_secret_id", ErrAuthenticationFailed, "no secret_id in response")
	}

	a.secretID = resp.Data.SecretId
	return resp.Data.SecretId, nil
}

// GetRoleID returns the configured role ID.
func (a *AppRoleAuthenticator) GetRoleID() string {
	return a.roleID
}
