package models

import "time"

// DiscoveredApp is a third-party application seen in a workspace directory.
// Directory apps are non-recurring; they feed the same subscription view but
// never go through interval analysis.
type DiscoveredApp struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	AppID        string    `json:"app_id"`
	Name         string    `json:"name"`
	Website      string    `json:"website,omitempty"`
	Description  string    `json:"description,omitempty"`
	LogoURL      string    `json:"logo_url,omitempty"`
	Source       string    `json:"source"`
	Scopes       []string  `json:"scopes"`
	InstallCount int       `json:"install_count"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}
