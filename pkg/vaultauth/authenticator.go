package vaultauth

import (
	"time"

	"github.com/soulkyu/leasekeeper/pkg/lifecycle"
)

// AuthMethod represents the type of authentication method
type AuthMethod string

const (
	AuthMethodToken      AuthMethod = "token"
	AuthMethodKubernetes AuthMethod = "kubernetes"
	AuthMethodAppRole    AuthMethod = "approle"
)

// Authenticator performs the Vault side of a lease lifecycle: logging in
// to mint a fresh client token and renewing an existing one. Because its
// method set already matches lifecycle.Login and lifecycle.Renew, any
// Authenticator can be passed directly as both Config.Login and
// Config.Renew when wiring a lifecycle.Runner.
type Authenticator interface {
	lifecycle.Login
	lifecycle.Renew

	// GetMethod returns the authentication method type
	GetMethod() AuthMethod
}

// BaseAuthenticator holds the fields common to every Vault auth method.
type BaseAuthenticator struct {
	Method    AuthMethod
	VaultAddr string
	Timeout   time.Duration
}

// GetMethod returns the authentication method.
func (b *BaseAuthenticator) GetMethod() AuthMethod {
	return b.Method
}

// AuthConfig holds configuration for building an Authenticator.
type AuthConfig struct {
	Method    AuthMethod
	VaultAddr string

	// Method-specific configurations
	Token      *TokenConfig
	Kubernetes *KubernetesConfig
	AppRole    *AppRoleConfig
}

// TokenConfig holds token-specific configuration.
type TokenConfig struct {
	Token string
}

// KubernetesConfig holds Kubernetes-specific configuration.
type KubernetesConfig struct {
	Role               string
	MountPath          string
	ServiceAccountPath string
}

// AppRoleConfig holds AppRole-specific configuration.
type AppRoleConfig struct {
	RoleID    string
	SecretID  string
	MountPath string
}
