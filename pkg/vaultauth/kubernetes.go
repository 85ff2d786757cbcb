package vaultauth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	vault "github.com/hashicorp/vault-client-go"
	"github.com/hashicorp/vault-client-go/schema"

	"github.com/soulkyu/leasekeeper/pkg/lifecycle"
)

const (
	defaultServiceAccountPath  = "/var/run/secrets/kubernetes.io/serviceaccount"
	defaultKubernetesMountPath = "kubernetes"
)

// KubernetesAuthenticator implements Kubernetes-based authentication.
type KubernetesAuthenticator struct {
	BaseAuthenticator
	role               string
	mountPath          string
	serviceAccountPath string
	jwt                string
}

// NewKubernetesAuth creates a new Kubernetes authenticator.
func NewKubernetesAuth(config *KubernetesConfig, vaultAddr string) (*KubernetesAuthenticator, error) {
	if config == nil {
		config = &KubernetesConfig{}
	}

	if config.ServiceAccountPath == "" {
		config.ServiceAccountPath = defaultServiceAccountPath
	}
	if config.MountPath == "" {
		config.MountPath = defaultKubernetesMountPath
	}

	if config.Role == "" {
		config.Role = os.Getenv("VAULT_K8S_ROLE")
		if config.Role == "" {
			return nil, NewAuthError(AuthMethodKubernetes, "new", ErrMissingConfiguration, "role is required")
		}
	}

	if !isRunningInKubernetes(config.ServiceAccountPath) {
		return nil, NewAuthError(AuthMethodKubernetes, "new", ErrMissingConfiguration, "not running in Kubernetes environment")
	}

	return &KubernetesAuthenticator{
		BaseAuthenticator: BaseAuthenticator{
			Method:    AuthMethodKubernetes,
			VaultAddr: vaultAddr,
			Timeout:   30 * time.Second,
		},
		role:               config.Role,
		mountPath:          config.MountPath,
		serviceAccountPath: config.ServiceAccountPath,
	}, nil
}

func (k *KubernetesAuthenticator) newClient() (*vault.Client, error) {
	return vault.New(
		vault.WithAddress(k.VaultAddr),
		vault.WithRequestTimeout(k.Timeout),
	)
}

// Login reads the pod's projected service account JWT and exchanges it
// for a Vault client token via the kubernetes auth method.
func (k *KubernetesAuthenticator) Login(ctx context.Context) (lifecycle.AuthResult, error) {
	jwt, err := k.readServiceAccountJWT()
	if err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodKubernetes, "login", err, "failed to read service account JWT")
	}
	k.jwt = jwt

	client, err := k.newClient()
	if err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodKubernetes, "login", err, "failed to create vault client")
	}

	resp, err := client.Auth.KubernetesLogin(ctx, schema.KubernetesLoginRequest{
		Jwt:  jwt,
		Role: k.role,
	}, vault.WithMountPath(k.mountPath))
	if err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodKubernetes, "login", err, "kubernetes login failed")
	}

	if resp.Auth == nil || resp.Auth.ClientToken == "" {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodKubernetes, "login", ErrAuthenticationFailed, "no token received from Vault")
	}

	return lifecycle.AuthResult{
		ClientToken:          resp.Auth.ClientToken,
		LeaseDurationSeconds: resp.Auth.LeaseDuration,
		Renewable:            resp.Auth.Renewable,
	}, nil
}

// Renew extends the current token's lease, falling back to a fresh
// Kubernetes login if the service account JWT was rotated underneath it
// and the renewal is rejected.
func (k *KubernetesAuthenticator) Renew(ctx context.Context, current lifecycle.AuthResult) (lifecycle.AuthResult, error) {
	client, err := k.newClient()
	if err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodKubernetes, "renew", err, "failed to create vault client")
	}
	if err := client.SetToken(current.ClientToken); err != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodKubernetes, "renew", err, "failed to set token")
	}

	renewResp, err := client.Auth.TokenRenewSelf(ctx, schema.TokenRenewSelfRequest{})
	if err == nil && renewResp.Auth != nil {
		result := current
		result.LeaseDurationSeconds = renewResp.Auth.LeaseDuration
		result.Renewable = renewResp.Auth.Renewable
		return result, nil
	}

	newJWT, jwtErr := k.readServiceAccountJWT()
	if jwtErr != nil {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodKubernetes, "renew", err, "token renewal failed and service account JWT unreadable")
	}
	if newJWT == k.jwt {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodKubernetes, "renew", err, "token renewal failed")
	}

	resp, loginErr := client.Auth.KubernetesLogin(ctx, schema.KubernetesLoginRequest{
		Jwt:  newJWT,
		Role: k.role,
	}, vault.WithMountPath(k.mountPath))
	if loginErr != nil || resp.Auth == nil || resp.Auth.ClientToken == "" {
		return lifecycle.AuthResult{}, NewAuthError(AuthMethodKubernetes, "renew", err, "re-authentication after JWT rotation failed")
	}
	k.jwt = newJWT

	return lifecycle.AuthResult{
		ClientToken:          resp.Auth.ClientToken,
		LeaseDurationSeconds: resp.Auth.LeaseDuration,
		Renewable:            resp.Auth.Renewable,
	}, nil
}

func (k *KubernetesAuthenticator) readServiceAccountJWT() (string, error) {
	tokenPath := filepath.Join(k.serviceAccountPath, "token")
	tokenBytes, err := os.ReadFile(tokenPath)
	if err != nil {
		return "", fmt.Errorf("failed to read service account token: %w", err)
	}
	return strings.TrimSpace(string(tokenBytes)), nil
}

// isRunningInKubernetes checks if we're running in a Kubernetes pod.
func isRunningInKubernetes(serviceAccountPath string) bool {
	tokenPath := filepath.Join(serviceAccountPath, "token")
	if _, err := os.Stat(tokenPath); err != nil {
		return false
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	return false
}

// GetRole returns the configured Kubernetes role.
func (k *KubernetesAuthenticator) GetRole() string {
	return k.role
}
