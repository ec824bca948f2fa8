package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// FindDiscoveredApp looks up an app by its directory id within a company.
// Returns (nil, nil) when no row exists.
func (r *Repository) FindDiscoveredApp(companyID, appID string) (*models.DiscoveredApp, error) {
	app := &models.DiscoveredApp{}
	var website, description, logoURL sql.NullString
	query := `
		SELECT id, company_id, app_id, name, website, description, logo_url,
			source, scopes, install_count, first_seen, last_seen
		FROM sprawl.discovered_apps
		WHERE company_id = $1 AND app_id = $2`
	err := r.db.QueryRow(query, companyID, appID).Scan(
		&app.ID, &app.CompanyID, &app.AppID, &app.Name, &website, &description,
		&logoURL, &app.Source, pq.Array(&app.Scopes), &app.InstallCount,
		&app.FirstSeen, &app.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find discovered app: %w", err)
	}
	app.Website = website.String
	app.Description = description.String
	app.LogoURL = logoURL.String
	return app, nil
}

// CreateDiscoveredApp inserts a newly seen directory app
func (r *Repository) CreateDiscoveredApp(app *models.DiscoveredApp) error {
	app.ID = uuid.NewString()
	if app.Scopes == nil {
		app.Scopes = []string{}
	}
	query := `
		INSERT INTO sprawl.discovered_apps (
			id, company_id, app_id, name, website, description, logo_url,
			source, scopes, install_count, first_seen, last_seen
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING install_count, first_seen, last_seen`
	err := r.db.QueryRow(query,
		app.ID, app.CompanyID, app.AppID, app.Name, nullString(app.Website),
		nullString(app.Description), nullString(app.LogoURL), app.Source,
		pq.Array(app.Scopes),
	).Scan(&app.InstallCount, &app.FirstSeen, &app.LastSeen)
	if err != nil {
		return fmt.Errorf("failed to create discovered app: %w", err)
	}
	return nil
}

// TouchDiscoveredApp refreshes a known app's metadata on a new sighting
func (r *Repository) TouchDiscoveredApp(id string, website, description, logoURL string, scopes []string, seenAt time.Time) error {
	if scopes == nil {
		scopes = []string{}
	}
	_, err := r.db.Exec(`
		UPDATE sprawl.discovered_apps
		SET website = $1, description = $2, logo_url = $3, scopes = $4,
			install_count = install_count + 1, last_seen = $5
		WHERE id = $6`,
		nullString(website), nullString(description), nullString(logoURL),
		pq.Array(scopes), seenAt, id)
	if err != nil {
		return fmt.Errorf("failed to touch discovered app: %w", err)
	}
	return nil
}
