// Package sso provides enterprise single sign-on (SSO) integration for the registry.
//
// # Overview
//
// This package enables authentication via SAML 2.0, OAuth2, and OpenID Connect with
// just-in-time (JIT) account provisioning. There are no organizations or roles in
// this domain: once authenticated, a provisioned or linked account receives the
// same default scopes as a locally registered one (see defaultScopes).
//
// # Supported Protocols
//
// SAML 2.0: Enterprise identity providers (Azure AD, Okta, OneLogin)
// OAuth2: Standard OAuth2 flows
// OpenID Connect: Modern authentication layer on top of OAuth2
//
// # Usage Example
//
// Configure SSO provider:
//
//	config := &sso.ProviderConfig{
//		Name:          "azuread",
//		ProviderType:  sso.ProviderTypeOIDC,
//		ProviderName:  sso.ProviderAzureAD,
//		AutoProvision: true,
//		AttributeMapping: sso.AttributeMap{
//			Email:    "email",
//			FullName: "displayName",
//		},
//		OIDCConfig: &sso.OIDCConfig{
//			ClientID:  clientID,
//			IssuerURL: "https://login.microsoftonline.com/" + tenantID + "/v2.0",
//		},
//	}
//
// # JIT Account Provisioning
//
// When a user logs in via SSO for the first time, UserProvisioner:
//  1. Looks up an account already linked to this provider identity
//  2. Falls back to an account matching the asserted email, linking it
//  3. Otherwise creates a new catalog.User and links the identity
//  4. The caller (Handlers.handleCallback) mints a session token exactly
//     as registryapi does for local login
//
// # Related Packages
//
//   - pkg/catalog: account storage, linked identities, and token issuance
//   - pkg/auth: opaque token generation shared with local login
package sso
