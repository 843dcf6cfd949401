// Package credentials resolves a user's effective Mattermost instance URL
// and access token from the host configuration store.
package credentials

import (
	"context"
	"fmt"
	"strings"

	"github.com/wisbric/chatowl/pkg/hostconfig"
)

// Credential is the resolved per-user Mattermost access configuration.
// Token may be empty when the user has not connected their account; callers
// must check before issuing requests. The token is never logged.
type Credential struct {
	UserID      string
	Token       string
	InstanceURL string
	Username    string
}

// Resolver resolves credentials from the host configuration store. Values
// are read fresh on every call so configuration changes take effect
// immediately.
type Resolver struct {
	cfg hostconfig.Store
}

// NewResolver creates a credential resolver.
func NewResolver(cfg hostconfig.Store) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve returns the effective credential for userID. The instance URL is
// the user-level override when set and non-empty, otherwise the
// admin-configured default. An empty URL or token is not an error here;
// downstream operations fail soft on missing configuration.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Credential, error) {
	instanceURL, err := r.cfg.GetUserValue(ctx, userID, hostconfig.KeyURL)
	if err != nil {
		return Credential{}, fmt.Errorf("resolving instance URL: %w", err)
	}
	if instanceURL == "" {
		instanceURL, err = r.cfg.GetAppValue(ctx, hostconfig.KeyOAuthInstanceURL)
		if err != nil {
			return Credential{}, fmt.Errorf("resolving default instance URL: %w", err)
		}
	}

	token, err := r.cfg.GetUserValue(ctx, userID, hostconfig.KeyToken)
	if err != nil {
		return Credential{}, fmt.Errorf("resolving token: %w", err)
	}

	username, err := r.cfg.GetUserValue(ctx, userID, hostconfig.KeyUserName)
	if err != nil {
		return Credential{}, fmt.Errorf("resolving username: %w", err)
	}

	return Credential{
		UserID:      userID,
		Token:       token,
		InstanceURL: strings.TrimRight(instanceURL, "/"),
		Username:    username,
	}, nil
}
