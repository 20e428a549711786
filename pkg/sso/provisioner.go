package sso

import (
	"context"
	"errors"
	"fmt"

	"github.com/pkgforge/registry/pkg/catalog"
)

// UserProvisioner performs JIT (just-in-time) account provisioning from an
// authenticated SSOUser: link to an existing account by provider identity,
// or create one, on first login. There are no organizations or roles in
// this domain (see types.go), so provisioning never touches anything beyond
// the catalog.User and its linked identity.
type UserProvisioner struct {
	users catalog.UserStore
}

// NewUserProvisioner creates a new user provisioner.
func NewUserProvisioner(users catalog.UserStore) *UserProvisioner {
	return &UserProvisioner{users: users}
}

// ProvisionUser resolves ssoUser to a catalog.User, creating one (and
// linking the identity) on first login if config.AutoProvision allows it.
func (p *UserProvisioner) ProvisionUser(ctx context.Context, ssoUser *SSOUser, config *ProviderConfig) (*catalog.User, error) {
	providerKey := string(config.ProviderName)

	user, err := p.users.GetUserByIdentity(ctx, providerKey, ssoUser.ExternalID)
	if err == nil {
		_ = p.users.TouchLastLogin(ctx, user.ID)
		return user, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("look up linked identity: %w", err)
	}

	if !config.AutoProvision {
		return nil, fmt.Errorf("no account linked to this identity and auto-provisioning is disabled for %s", config.Name)
	}

	// An account with this email may already exist (e.g. a local account,
	// or a prior login through a different provider); link to it instead
	// of creating a duplicate.
	if ssoUser.Email != "" {
		if existing, err := p.users.GetUserByEmail(ctx, ssoUser.Email); err == nil {
			if err := p.users.LinkIdentity(ctx, existing.ID, providerKey, ssoUser.ExternalID, ssoUser.Email); err != nil {
				return nil, fmt.Errorf("link identity to existing account: %w", err)
			}
			_ = p.users.TouchLastLogin(ctx, existing.ID)
			return existing, nil
		} else if !errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("look up account by email: %w", err)
		}
	}

	username := ssoUser.Username
	if username == "" {
		username = ssoUser.ExternalID
	}

	user, err = p.users.CreateUser(ctx, username, ssoUser.Email, nil)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := p.users.LinkIdentity(ctx, user.ID, providerKey, ssoUser.ExternalID, ssoUser.Email); err != nil {
		return nil, fmt.Errorf("link identity: %w", err)
	}

	return user, nil
}
