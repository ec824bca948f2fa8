package repository

import (
	"fmt"
	"time"

	"github.com/billkie/saas-sprawl/internal/models"
)

// ListQuickBooksIntegrations returns every linked QuickBooks integration
func (r *Repository) ListQuickBooksIntegrations() ([]models.QuickBooksIntegration, error) {
	query := `
		SELECT id, company_id, realm_id, access_token, refresh_token,
			token_expires_at, last_sync_at
		FROM sprawl.quickbooks_integrations`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list quickbooks integrations: %w", err)
	}
	defer rows.Close()

	var integrations []models.QuickBooksIntegration
	for rows.Next() {
		var in models.QuickBooksIntegration
		var lastSync = nullTime(nil)
		if err := rows.Scan(&in.ID, &in.CompanyID, &in.RealmID, &in.AccessToken,
			&in.RefreshToken, &in.TokenExpiresAt, &lastSync); err != nil {
			return nil, fmt.Errorf("failed to scan quickbooks integration: %w", err)
		}
		in.LastSyncAt = timePtr(lastSync)
		integrations = append(integrations, in)
	}
	return integrations, rows.Err()
}

// UpdateQuickBooksTokens persists a rotated token set
func (r *Repository) UpdateQuickBooksTokens(id, accessToken, refreshToken string, expiresAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sprawl.quickbooks_integrations
		SET access_token = $1, refresh_token = $2, token_expires_at = $3
		WHERE id = $4`, accessToken, refreshToken, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to update quickbooks tokens: %w", err)
	}
	return nil
}

// TouchQuickBooksSync records a completed sync
func (r *Repository) TouchQuickBooksSync(id string, syncedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sprawl.quickbooks_integrations
		SET last_sync_at = $1
		WHERE id = $2`, syncedAt, id)
	if err != nil {
		return fmt.Errorf("failed to touch quickbooks sync: %w", err)
	}
	return nil
}

// ListGoogleWorkspaceIntegrations returns every linked Workspace integration
func (r *Repository) ListGoogleWorkspaceIntegrations() ([]models.GoogleWorkspaceIntegration, error) {
	query := `
		SELECT id, company_id, access_token, refresh_token, token_expires_at,
			is_admin, last_sync_at
		FROM sprawl.google_workspace_integrations`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace integrations: %w", err)
	}
	defer rows.Close()

	var integrations []models.GoogleWorkspaceIntegration
	for rows.Next() {
		var in models.GoogleWorkspaceIntegration
		var lastSync = nullTime(nil)
		if err := rows.Scan(&in.ID, &in.CompanyID, &in.AccessToken, &in.RefreshToken,
			&in.TokenExpiresAt, &in.IsAdmin, &lastSync); err != nil {
			return nil, fmt.Errorf("failed to scan workspace integration: %w", err)
		}
		in.LastSyncAt = timePtr(lastSync)
		integrations = append(integrations, in)
	}
	return integrations, rows.Err()
}

// UpdateGoogleWorkspaceTokens persists a refreshed access token
func (r *Repository) UpdateGoogleWorkspaceTokens(id, accessToken, refreshToken string, expiresAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sprawl.google_workspace_integrations
		SET access_token = $1, refresh_token = $2, token_expires_at = $3
		WHERE id = $4`, accessToken, refreshToken, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to update workspace tokens: %w", err)
	}
	return nil
}

// TouchGoogleWorkspaceSync records a completed discovery sync
func (r *Repository) TouchGoogleWorkspaceSync(id string, syncedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sprawl.google_workspace_integrations
		SET last_sync_at = $1
		WHERE id = $2`, syncedAt, id)
	if err != nil {
		return fmt.Errorf("failed to touch workspace sync: %w", err)
	}
	return nil
}
