package service

import (
	"context"
	"fmt"
	"time"

	"github.com/billkie/saas-sprawl/internal/analysis"
	"github.com/billkie/saas-sprawl/internal/integrations/googlews"
	"github.com/billkie/saas-sprawl/internal/integrations/quickbooks"
	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/billkie/saas-sprawl/internal/utils/email"
	"github.com/sirupsen/logrus"
)

// SyncStore is the persistence surface the sync jobs need
type SyncStore interface {
	ListQuickBooksIntegrations() ([]models.QuickBooksIntegration, error)
	UpdateQuickBooksTokens(id, accessToken, refreshToken string, expiresAt time.Time) error
	TouchQuickBooksSync(id string, syncedAt time.Time) error

	ListGoogleWorkspaceIntegrations() ([]models.GoogleWorkspaceIntegration, error)
	UpdateGoogleWorkspaceTokens(id, accessToken, refreshToken string, expiresAt time.Time) error
	TouchGoogleWorkspaceSync(id string, syncedAt time.Time) error

	FindDiscoveredApp(companyID, appID string) (*models.DiscoveredApp, error)
	CreateDiscoveredApp(app *models.DiscoveredApp) error
	TouchDiscoveredApp(id string, website, description, logoURL string, scopes []string, seenAt time.Time) error

	FindCompanyByID(id string) (*models.Company, error)
	CompanyAdmins(companyID string) ([]models.User, error)
}

// TransactionFetcher is the accounting-integration client boundary
type TransactionFetcher interface {
	RefreshToken(ctx context.Context, refreshToken, realmID string) (quickbooks.TokenSet, error)
	QueryTransactionsSince(ctx context.Context, tokens quickbooks.TokenSet, startDate time.Time) ([]models.Transaction, error)
}

// DirectoryClient is the workspace-directory client boundary
type DirectoryClient interface {
	RefreshToken(ctx context.Context, refreshToken string) (googlews.TokenSet, error)
	ListThirdPartyApps(ctx context.Context, tokens googlews.TokenSet) ([]googlews.App, error)
}

// SyncMailer sends sync outcome emails
type SyncMailer interface {
	SendSyncSuccess(to, userName, companyName, integrationType string, stats email.SyncStats) error
	SendSyncFailure(to, userName, companyName, integrationType, errorDetails string) error
}

// SyncService runs the scheduled integration syncs. Each company is an
// independent unit of work: one failing integration marks that company's sync
// failed and leaves every other company untouched.
type SyncService struct {
	store       SyncStore
	quickbooks  TransactionFetcher
	directory   DirectoryClient
	mailer      SyncMailer
	reconciler  *Reconciler
	analysisCfg analysis.Config
	lookback    time.Duration
	log         *logrus.Logger
	now         func() time.Time
}

// NewSyncService initializes the sync service. lookbackDays bounds the first
// transaction fetch for integrations that have never synced.
func NewSyncService(store SyncStore, qb TransactionFetcher, dir DirectoryClient, mailer SyncMailer,
	reconciler *Reconciler, analysisCfg analysis.Config, lookbackDays int, log *logrus.Logger) *SyncService {
	return &SyncService{
		store:       store,
		quickbooks:  qb,
		directory:   dir,
		mailer:      mailer,
		reconciler:  reconciler,
		analysisCfg: analysisCfg,
		lookback:    time.Duration(lookbackDays) * 24 * time.Hour,
		log:         log,
		now:         time.Now,
	}
}

// SyncQuickBooks syncs every linked QuickBooks integration: refresh tokens
// when expired, pull transactions since the last sync, run the detection
// engine and reconcile the results into the subscription store.
func (s *SyncService) SyncQuickBooks(ctx context.Context) models.SyncResults {
	results := models.SyncResults{Errors: []string{}}

	integrations, err := s.store.ListQuickBooksIntegrations()
	if err != nil {
		results.Errors = append(results.Errors, err.Error())
		return results
	}
	results.Total = len(integrations)

	for _, integration := range integrations {
		companyName := s.companyName(integration.CompanyID)
		stats, err := s.syncQuickBooksCompany(ctx, integration)
		if err != nil {
			s.log.Errorf("QuickBooks sync failed for company %s: %v", companyName, err)
			results.Failed++
			results.Errors = append(results.Errors, fmt.Sprintf("%s: %v", companyName, err))
			s.notifyAdmins(integration.CompanyID, func(u models.User) error {
				return s.mailer.SendSyncFailure(u.Email, u.Name, companyName, "QuickBooks", err.Error())
			})
			continue
		}

		s.log.Infof("Synced %d vendors for company %s", stats.TotalProcessed, companyName)
		results.Success++
		s.notifyAdmins(integration.CompanyID, func(u models.User) error {
			return s.mailer.SendSyncSuccess(u.Email, u.Name, companyName, "QuickBooks", stats)
		})
	}
	return results
}

func (s *SyncService) syncQuickBooksCompany(ctx context.Context, integration models.QuickBooksIntegration) (email.SyncStats, error) {
	tokens := quickbooks.TokenSet{
		AccessToken:    integration.AccessToken,
		RefreshToken:   integration.RefreshToken,
		TokenExpiresAt: integration.TokenExpiresAt,
		RealmID:        integration.RealmID,
	}

	now := s.now()
	if !now.Before(integration.TokenExpiresAt) {
		refreshed, err := s.quickbooks.RefreshToken(ctx, integration.RefreshToken, integration.RealmID)
		if err != nil {
			return email.SyncStats{}, fmt.Errorf("token refresh: %w", err)
		}
		if err := s.store.UpdateQuickBooksTokens(integration.ID, refreshed.AccessToken,
			refreshed.RefreshToken, refreshed.TokenExpiresAt); err != nil {
			return email.SyncStats{}, fmt.Errorf("token persist: %w", err)
		}
		tokens = refreshed
	}

	since := now.Add(-s.lookback)
	if integration.LastSyncAt != nil {
		since = *integration.LastSyncAt
	}

	transactions, err := s.quickbooks.QueryTransactionsSince(ctx, tokens, since)
	if err != nil {
		return email.SyncStats{}, fmt.Errorf("transaction fetch: %w", err)
	}

	analyses := analysis.AnalyzeTransactions(transactions, now, s.analysisCfg)
	stats := s.reconciler.Reconcile(analyses, integration.CompanyID)

	if err := s.store.TouchQuickBooksSync(integration.ID, now); err != nil {
		return email.SyncStats{}, fmt.Errorf("sync timestamp: %w", err)
	}

	return email.SyncStats{
		NewItems:       stats.Created,
		UpdatedItems:   stats.Updated,
		TotalProcessed: stats.Processed,
	}, nil
}

// SyncGoogleWorkspace refreshes the discovered-app inventory from every
// admin-linked workspace directory. Directory apps carry no billing signal;
// they are recorded as sightings, never analyzed for recurrence.
func (s *SyncService) SyncGoogleWorkspace(ctx context.Context) models.SyncResults {
	results := models.SyncResults{Errors: []string{}}

	integrations, err := s.store.ListGoogleWorkspaceIntegrations()
	if err != nil {
		results.Errors = append(results.Errors, err.Error())
		return results
	}
	results.Total = len(integrations)

	for _, integration := range integrations {
		companyName := s.companyName(integration.CompanyID)
		if !integration.IsAdmin {
			s.log.Infof("Skipping workspace sync for %s: integration user is not an admin", companyName)
			continue
		}

		count, err := s.syncWorkspaceCompany(ctx, integration)
		if err != nil {
			s.log.Errorf("Workspace sync failed for company %s: %v", companyName, err)
			results.Failed++
			results.Errors = append(results.Errors, fmt.Sprintf("%s: %v", companyName, err))
			continue
		}

		s.log.Infof("Recorded %d workspace apps for company %s", count, companyName)
		results.Success++
	}
	return results
}

func (s *SyncService) syncWorkspaceCompany(ctx context.Context, integration models.GoogleWorkspaceIntegration) (int, error) {
	tokens := googlews.TokenSet{
		AccessToken:    integration.AccessToken,
		RefreshToken:   integration.RefreshToken,
		TokenExpiresAt: integration.TokenExpiresAt,
	}

	now := s.now()
	if !now.Before(integration.TokenExpiresAt) {
		refreshed, err := s.directory.RefreshToken(ctx, integration.RefreshToken)
		if err != nil {
			return 0, fmt.Errorf("token refresh: %w", err)
		}
		if err := s.store.UpdateGoogleWorkspaceTokens(integration.ID, refreshed.AccessToken,
			refreshed.RefreshToken, refreshed.TokenExpiresAt); err != nil {
			return 0, fmt.Errorf("token persist: %w", err)
		}
		tokens = refreshed
	}

	apps, err := s.directory.ListThirdPartyApps(ctx, tokens)
	if err != nil {
		return 0, fmt.Errorf("app listing: %w", err)
	}

	recorded := 0
	for _, app := range apps {
		if err := s.recordApp(integration.CompanyID, app, now); err != nil {
			// One bad app row should not sink the company's sync
			s.log.Errorf("Failed to record app %q for company %s: %v", app.Name, integration.CompanyID, err)
			continue
		}
		recorded++
	}

	if err := s.store.TouchGoogleWorkspaceSync(integration.ID, now); err != nil {
		return recorded, fmt.Errorf("sync timestamp: %w", err)
	}
	return recorded, nil
}

func (s *SyncService) recordApp(companyID string, app googlews.App, seenAt time.Time) error {
	appID := app.ID
	if appID == "" {
		appID = app.Name
	}

	existing, err := s.store.FindDiscoveredApp(companyID, appID)
	if err != nil {
		return err
	}
	if existing != nil {
		return s.store.TouchDiscoveredApp(existing.ID, app.Website, app.Description, app.IconURL, app.Scopes, seenAt)
	}
	return s.store.CreateDiscoveredApp(&models.DiscoveredApp{
		CompanyID:   companyID,
		AppID:       appID,
		Name:        app.Name,
		Website:     app.Website,
		Description: app.Description,
		LogoURL:     app.IconURL,
		Source:      string(models.SourceGoogle),
		Scopes:      app.Scopes,
	})
}

func (s *SyncService) companyName(companyID string) string {
	company, err := s.store.FindCompanyByID(companyID)
	if err != nil {
		return companyID
	}
	return company.Name
}

func (s *SyncService) notifyAdmins(companyID string, send func(models.User) error) {
	admins, err := s.store.CompanyAdmins(companyID)
	if err != nil {
		s.log.Errorf("Failed to list admins for company %s: %v", companyID, err)
		return
	}
	for _, admin := range admins {
		if err := send(admin); err != nil {
			s.log.Errorf("Failed to email %s: %v", admin.Email, err)
		}
	}
}
