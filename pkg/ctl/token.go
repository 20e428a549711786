package ctl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pkgforge/registry/pkg/auth"
	"github.com/pkgforge/registry/pkg/bootstrap"
	"github.com/pkgforge/registry/pkg/catalog"
	"github.com/pkgforge/registry/pkg/config"
	"github.com/pkgforge/registry/pkg/observability"
)

func newTokenCommand() *Command {
	cmd := &Command{
		Name:        "token",
		Description: "Mint an opaque bearer token for a user, creating the user if needed",
		Flags:       flag.NewFlagSet("token", flag.ExitOnError),
	}
	username := cmd.Flags.String("user", "", "Username the token belongs to (required)")
	email := cmd.Flags.String("email", "", "Email to use if the user doesn't exist yet")
	name := cmd.Flags.String("name", "registryctl", "Display name for the token")
	scopes := cmd.Flags.String("scopes", string(catalog.ScopePackageRead), "Comma-separated scopes, e.g. package:read,package:write")
	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *username == "" {
			return fmt.Errorf("-user is required")
		}
		return runToken(*username, *email, *name, *scopes)
	}
	return cmd
}

// runToken issues an opaque bearer token: a random secret returned
// exactly once, with only its SHA-256 hash persisted.
// This is the only way to mint admin-scoped credentials out of band from
// the HTTP API, which never issues catalog.ScopeAdmin tokens itself.
func runToken(username, email, name, scopesFlag string) error {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	cat, _, err := bootstrap.OpenCatalog(cfg.Catalog.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	scopes, err := parseScopes(scopesFlag)
	if err != nil {
		return err
	}

	user, err := cat.GetUserByUsername(ctx, username)
	if errors.Is(err, catalog.ErrNotFound) {
		if email == "" {
			return fmt.Errorf("user %q doesn't exist; pass -email to create it", username)
		}
		user, err = cat.CreateUser(ctx, username, email, nil)
		if err != nil {
			return fmt.Errorf("create user %q: %w", username, err)
		}
		fmt.Printf("created user: %s (id %d)\n", user.Username, user.ID)
	} else if err != nil {
		return fmt.Errorf("look up user %q: %w", username, err)
	}

	plaintext, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	token, err := cat.CreateToken(ctx, &catalog.APIToken{
		UserID:    user.ID,
		Name:      name,
		Kind:      catalog.TokenKindOpaque,
		TokenHash: hash,
		Scopes:    scopes,
	})
	if err != nil {
		return fmt.Errorf("create token: %w", err)
	}

	fmt.Printf("token id %d, scopes %v, for user %s\n", token.ID, token.Scopes, user.Username)
	fmt.Printf("%s\n", plaintext)
	fmt.Println("Save this token now — it cannot be displayed again.")
	return nil
}

func parseScopes(raw string) ([]catalog.Scope, error) {
	valid := map[catalog.Scope]bool{
		catalog.ScopePackageRead:   true,
		catalog.ScopePackageWrite:  true,
		catalog.ScopePackageDelete: true,
		catalog.ScopeAliasWrite:    true,
		catalog.ScopeAdmin:         true,
	}
	var scopes []catalog.Scope
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		scope := catalog.Scope(s)
		if !valid[scope] {
			return nil, fmt.Errorf("unknown scope %q", s)
		}
		scopes = append(scopes, scope)
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("at least one scope is required")
	}
	return scopes, nil
}
