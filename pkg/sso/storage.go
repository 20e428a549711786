package sso

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Storage handles SSO provider configuration storage
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new SSO storage
func NewStorage(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// CreateProvider creates a new SSO provider configuration
func (s *Storage) CreateProvider(config *ProviderConfig) error {
	samlConfigJSON, oauth2ConfigJSON, oidcConfigJSON, err := marshalProviderConfigs(config)
	if err != nil {
		return err
	}

	attrMappingJSON, err := json.Marshal(config.AttributeMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal attribute mapping: %w", err)
	}

	err = s.db.QueryRow(`
		INSERT INTO sso_providers (
			name, provider_type, provider_name, enabled, auto_provision,
			saml_config, oauth2_config, oidc_config, attribute_mapping,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id
	`, config.Name, config.ProviderType, config.ProviderName, config.Enabled,
		config.AutoProvision, samlConfigJSON, oauth2ConfigJSON,
		oidcConfigJSON, attrMappingJSON).Scan(&config.ID)

	return err
}

// GetProvider retrieves a provider by name
func (s *Storage) GetProvider(name string) (*ProviderConfig, error) {
	return s.scanOneProvider(s.db.QueryRow(`
		SELECT id, name, provider_type, provider_name, enabled, auto_provision,
			saml_config, oauth2_config, oidc_config, attribute_mapping,
			created_at, updated_at
		FROM sso_providers
		WHERE name = $1
	`, name))
}

// GetProviderByID retrieves a provider by ID
func (s *Storage) GetProviderByID(id int64) (*ProviderConfig, error) {
	return s.scanOneProvider(s.db.QueryRow(`
		SELECT id, name, provider_type, provider_name, enabled, auto_provision,
			saml_config, oauth2_config, oidc_config, attribute_mapping,
			created_at, updated_at
		FROM sso_providers
		WHERE id = $1
	`, id))
}

func (s *Storage) scanOneProvider(row *sql.Row) (*ProviderConfig, error) {
	var (
		samlConfigJSON   []byte
		oauth2ConfigJSON []byte
		oidcConfigJSON   []byte
		attrMappingJSON  []byte
	)

	config := &ProviderConfig{}
	err := row.Scan(
		&config.ID, &config.Name, &config.ProviderType, &config.ProviderName,
		&config.Enabled, &config.AutoProvision,
		&samlConfigJSON, &oauth2ConfigJSON, &oidcConfigJSON, &attrMappingJSON,
		&config.CreatedAt, &config.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := unmarshalProviderConfigs(config, samlConfigJSON, oauth2ConfigJSON, oidcConfigJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(attrMappingJSON, &config.AttributeMapping); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attribute mapping: %w", err)
	}

	return config, nil
}

// ListProviders lists all SSO providers
func (s *Storage) ListProviders(enabledOnly bool) ([]*ProviderConfig, error) {
	query := `
		SELECT id, name, provider_type, provider_name, enabled, auto_provision,
			saml_config, oauth2_config, oidc_config, attribute_mapping,
			created_at, updated_at
		FROM sso_providers
	`
	if enabledOnly {
		query += " WHERE enabled = true"
	}
	query += " ORDER BY name"

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []*ProviderConfig
	for rows.Next() {
		var (
			samlConfigJSON   []byte
			oauth2ConfigJSON []byte
			oidcConfigJSON   []byte
			attrMappingJSON  []byte
		)

		config := &ProviderConfig{}
		err := rows.Scan(
			&config.ID, &config.Name, &config.ProviderType, &config.ProviderName,
			&config.Enabled, &config.AutoProvision,
			&samlConfigJSON, &oauth2ConfigJSON, &oidcConfigJSON, &attrMappingJSON,
			&config.CreatedAt, &config.UpdatedAt)
		if err != nil {
			return nil, err
		}

		if err := unmarshalProviderConfigs(config, samlConfigJSON, oauth2ConfigJSON, oidcConfigJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(attrMappingJSON, &config.AttributeMapping); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attribute mapping: %w", err)
		}

		providers = append(providers, config)
	}

	return providers, rows.Err()
}

// UpdateProvider updates an existing provider
func (s *Storage) UpdateProvider(config *ProviderConfig) error {
	samlConfigJSON, oauth2ConfigJSON, oidcConfigJSON, err := marshalProviderConfigs(config)
	if err != nil {
		return err
	}

	attrMappingJSON, err := json.Marshal(config.AttributeMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal attribute mapping: %w", err)
	}

	_, err = s.db.Exec(`
		UPDATE sso_providers
		SET provider_type = $1, provider_name = $2, enabled = $3, auto_provision = $4,
			saml_config = $5, oauth2_config = $6, oidc_config = $7,
			attribute_mapping = $8, updated_at = NOW()
		WHERE id = $9
	`, config.ProviderType, config.ProviderName, config.Enabled, config.AutoProvision,
		samlConfigJSON, oauth2ConfigJSON, oidcConfigJSON, attrMappingJSON, config.ID)

	return err
}

// DeleteProvider deletes a provider
func (s *Storage) DeleteProvider(name string) error {
	_, err := s.db.Exec(`DELETE FROM sso_providers WHERE name = $1`, name)
	return err
}

// ProviderExists checks if a provider with the given name exists
func (s *Storage) ProviderExists(name string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM sso_providers WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

func marshalProviderConfigs(config *ProviderConfig) (saml, oauth2, oidc []byte, err error) {
	if config.SAMLConfig != nil {
		if saml, err = json.Marshal(config.SAMLConfig); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal SAML config: %w", err)
		}
	}
	if config.OAuth2Config != nil {
		if oauth2, err = json.Marshal(config.OAuth2Config); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal OAuth2 config: %w", err)
		}
	}
	if config.OIDCConfig != nil {
		if oidc, err = json.Marshal(config.OIDCConfig); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal OIDC config: %w", err)
		}
	}
	return saml, oauth2, oidc, nil
}

func unmarshalProviderConfigs(config *ProviderConfig, saml, oauth2, oidc []byte) error {
	if len(saml) > 0 {
		config.SAMLConfig = &SAMLConfig{}
		if err := json.Unmarshal(saml, config.SAMLConfig); err != nil {
			return fmt.Errorf("failed to unmarshal SAML config: %w", err)
		}
	}
	if len(oauth2) > 0 {
		config.OAuth2Config = &OAuth2Config{}
		if err := json.Unmarshal(oauth2, config.OAuth2Config); err != nil {
			return fmt.Errorf("failed to unmarshal OAuth2 config: %w", err)
		}
	}
	if len(oidc) > 0 {
		config.OIDCConfig = &OIDCConfig{}
		if err := json.Unmarshal(oidc, config.OIDCConfig); err != nil {
			return fmt.Errorf("failed to unmarshal OIDC config: %w", err)
		}
	}
	return nil
}
