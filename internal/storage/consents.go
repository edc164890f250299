package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/model"
)

// SaveConsent stores the consent issued for an interaction, replacing any
// earlier attempt from the same interaction.
func (s *SQLStorage) SaveConsent(ctx context.Context, key string, consent model.ConsentRequest) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}
	if err := validateString(consent.RequestID, "requestID"); err != nil {
		return err
	}

	_, err := s.exec(ctx, `
		INSERT INTO consent_requests (
			interaction_key, request_id, institution_id, institution_name, institution_country,
			psu_type, auth_method, validity_days, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (interaction_key) DO UPDATE SET
			request_id = excluded.request_id,
			institution_id = excluded.institution_id,
			institution_name = excluded.institution_name,
			institution_country = excluded.institution_country,
			psu_type = excluded.psu_type,
			auth_method = excluded.auth_method,
			validity_days = excluded.validity_days,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		key,
		consent.RequestID,
		consent.InstitutionID,
		consent.InstitutionName,
		consent.InstitutionCountry,
		consent.PSUType,
		consent.AuthMethod,
		consent.ConsentValidityDays,
		consent.CreatedAt.UTC(),
		consent.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save consent: %w", err)
	}
	return nil
}

// TakeConsent removes and returns the consent stored for key.
func (s *SQLStorage) TakeConsent(ctx context.Context, key string) (*model.ConsentRequest, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}

	var c model.ConsentRequest
	err := s.queryRow(ctx, `
		DELETE FROM consent_requests WHERE interaction_key = ?
		RETURNING request_id, institution_id, institution_name, institution_country,
			psu_type, auth_method, validity_days, created_at, expires_at`, key).Scan(
		&c.RequestID,
		&c.InstitutionID,
		&c.InstitutionName,
		&c.InstitutionCountry,
		&c.PSUType,
		&c.AuthMethod,
		&c.ConsentValidityDays,
		&c.CreatedAt,
		&c.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consent for %s: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take consent: %w", err)
	}
	return &c, nil
}
