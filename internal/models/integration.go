package models

import "time"

// QuickBooksIntegration holds a company's QuickBooks OAuth state
type QuickBooksIntegration struct {
	ID             string     `json:"id"`
	CompanyID      string     `json:"company_id"`
	RealmID        string     `json:"realm_id"`
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	TokenExpiresAt time.Time  `json:"token_expires_at"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
}

// GoogleWorkspaceIntegration holds a company's Workspace directory OAuth state
type GoogleWorkspaceIntegration struct {
	ID             string     `json:"id"`
	CompanyID      string     `json:"company_id"`
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	TokenExpiresAt time.Time  `json:"token_expires_at"`
	IsAdmin        bool       `json:"is_admin"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
}
