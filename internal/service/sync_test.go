package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/billkie/saas-sprawl/internal/analysis"
	"github.com/billkie/saas-sprawl/internal/integrations/googlews"
	"github.com/billkie/saas-sprawl/internal/integrations/quickbooks"
	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/billkie/saas-sprawl/internal/utils/email"
	"github.com/shopspring/decimal"
)

type fakeSyncStore struct {
	qbIntegrations []models.QuickBooksIntegration
	gwIntegrations []models.GoogleWorkspaceIntegration
	qbTokens       map[string]string
	qbSyncedAt     map[string]time.Time
	gwSyncedAt     map[string]time.Time
	apps           map[string]*models.DiscoveredApp
	appTouches     int
}

func newFakeSyncStore() *fakeSyncStore {
	return &fakeSyncStore{
		qbTokens:   make(map[string]string),
		qbSyncedAt: make(map[string]time.Time),
		gwSyncedAt: make(map[string]time.Time),
		apps:       make(map[string]*models.DiscoveredApp),
	}
}

func (f *fakeSyncStore) ListQuickBooksIntegrations() ([]models.QuickBooksIntegration, error) {
	return f.qbIntegrations, nil
}

func (f *fakeSyncStore) UpdateQuickBooksTokens(id, accessToken, refreshToken string, expiresAt time.Time) error {
	f.qbTokens[id] = accessToken
	return nil
}

func (f *fakeSyncStore) TouchQuickBooksSync(id string, syncedAt time.Time) error {
	f.qbSyncedAt[id] = syncedAt
	return nil
}

func (f *fakeSyncStore) ListGoogleWorkspaceIntegrations() ([]models.GoogleWorkspaceIntegration, error) {
	return f.gwIntegrations, nil
}

func (f *fakeSyncStore) UpdateGoogleWorkspaceTokens(id, accessToken, refreshToken string, expiresAt time.Time) error {
	return nil
}

func (f *fakeSyncStore) TouchGoogleWorkspaceSync(id string, syncedAt time.Time) error {
	f.gwSyncedAt[id] = syncedAt
	return nil
}

func (f *fakeSyncStore) FindDiscoveredApp(companyID, appID string) (*models.DiscoveredApp, error) {
	app, ok := f.apps[companyID+"|"+appID]
	if !ok {
		return nil, nil
	}
	clone := *app
	return &clone, nil
}

func (f *fakeSyncStore) CreateDiscoveredApp(app *models.DiscoveredApp) error {
	app.ID = fmt.Sprintf("app-%d", len(f.apps)+1)
	clone := *app
	f.apps[app.CompanyID+"|"+app.AppID] = &clone
	return nil
}

func (f *fakeSyncStore) TouchDiscoveredApp(id string, website, description, logoURL string, scopes []string, seenAt time.Time) error {
	f.appTouches++
	return nil
}

func (f *fakeSyncStore) FindCompanyByID(id string) (*models.Company, error) {
	return &models.Company{ID: id, Name: "Co " + id}, nil
}

func (f *fakeSyncStore) CompanyAdmins(companyID string) ([]models.User, error) {
	return []models.User{{ID: "u1", Email: "owner@" + companyID + ".test", Name: "Owner"}}, nil
}

type fakeFetcher struct {
	failRealms   map[string]bool
	transactions map[string][]models.Transaction
	refreshes    int
}

func (f *fakeFetcher) RefreshToken(ctx context.Context, refreshToken, realmID string) (quickbooks.TokenSet, error) {
	f.refreshes++
	return quickbooks.TokenSet{
		AccessToken:    "refreshed-access",
		RefreshToken:   "refreshed-refresh",
		TokenExpiresAt: time.Now().Add(time.Hour),
		RealmID:        realmID,
	}, nil
}

func (f *fakeFetcher) QueryTransactionsSince(ctx context.Context, tokens quickbooks.TokenSet, startDate time.Time) ([]models.Transaction, error) {
	if f.failRealms[tokens.RealmID] {
		return nil, fmt.Errorf("integration unreachable")
	}
	return f.transactions[tokens.RealmID], nil
}

type fakeDirectory struct {
	apps []googlews.App
}

func (f *fakeDirectory) RefreshToken(ctx context.Context, refreshToken string) (googlews.TokenSet, error) {
	return googlews.TokenSet{AccessToken: "a", RefreshToken: refreshToken, TokenExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeDirectory) ListThirdPartyApps(ctx context.Context, tokens googlews.TokenSet) ([]googlews.App, error) {
	return f.apps, nil
}

type fakeSyncMailer struct {
	successes []string
	failures  []string
}

func (f *fakeSyncMailer) SendSyncSuccess(to, userName, companyName, integrationType string, stats email.SyncStats) error {
	f.successes = append(f.successes, to)
	return nil
}

func (f *fakeSyncMailer) SendSyncFailure(to, userName, companyName, integrationType, errorDetails string) error {
	f.failures = append(f.failures, to)
	return nil
}

func qbIntegration(id, companyID, realmID string, expired bool, lastSync *time.Time) models.QuickBooksIntegration {
	expires := time.Now().Add(time.Hour)
	if expired {
		expires = time.Now().Add(-time.Hour)
	}
	return models.QuickBooksIntegration{
		ID:             id,
		CompanyID:      companyID,
		RealmID:        realmID,
		AccessToken:    "access-" + id,
		RefreshToken:   "refresh-" + id,
		TokenExpiresAt: expires,
		LastSyncAt:     lastSync,
	}
}

func monthlyHistory(vendorID string, now time.Time, count int, amount float64) []models.Transaction {
	txns := make([]models.Transaction, 0, count)
	start := now.AddDate(0, 0, -30*(count-1))
	for i := 0; i < count; i++ {
		txns = append(txns, models.Transaction{
			TxnDate:     start.AddDate(0, 0, 30*i),
			TotalAmount: decimal.NewFromFloat(amount),
			VendorID:    vendorID,
			VendorName:  vendorID,
		})
	}
	return txns
}

func TestSyncQuickBooksCompanyIsolation(t *testing.T) {
	now := time.Now()
	store := newFakeSyncStore()
	store.qbIntegrations = []models.QuickBooksIntegration{
		qbIntegration("i1", "company-1", "realm-1", false, nil),
		qbIntegration("i2", "company-2", "realm-2", false, nil),
		qbIntegration("i3", "company-3", "realm-3", false, nil),
	}
	fetcher := &fakeFetcher{
		failRealms: map[string]bool{"realm-2": true},
		transactions: map[string][]models.Transaction{
			"realm-1": monthlyHistory("figma", now, 12, 45),
			"realm-3": monthlyHistory("slack", now, 12, 80),
		},
	}
	mailer := &fakeSyncMailer{}
	subStore := newFakeSubscriptionStore()
	reconciler := NewReconciler(subStore, testPolicy(), testLogger())

	svc := NewSyncService(store, fetcher, &fakeDirectory{}, mailer, reconciler,
		analysis.DefaultConfig(), 30, testLogger())

	results := svc.SyncQuickBooks(context.Background())

	if results.Total != 3 || results.Success != 2 || results.Failed != 1 {
		t.Fatalf("unexpected results %+v", results)
	}
	if len(results.Errors) != 1 {
		t.Fatalf("expected exactly 1 error, got %v", results.Errors)
	}
	if !strings.Contains(results.Errors[0], "company-2") {
		t.Errorf("expected error attributed to company-2, got %q", results.Errors[0])
	}
	if _, ok := subStore.subs[storeKey("company-1", "figma")]; !ok {
		t.Error("expected figma subscription for company-1")
	}
	if _, ok := subStore.subs[storeKey("company-3", "slack")]; !ok {
		t.Error("expected slack subscription for company-3")
	}
	if len(mailer.successes) != 2 || len(mailer.failures) != 1 {
		t.Errorf("expected 2 success and 1 failure emails, got %d and %d",
			len(mailer.successes), len(mailer.failures))
	}
	// successful companies get their sync timestamp advanced, the failed one does not
	if _, ok := store.qbSyncedAt["i1"]; !ok {
		t.Error("expected i1 sync timestamp to advance")
	}
	if _, ok := store.qbSyncedAt["i2"]; ok {
		t.Error("failed sync must not advance the sync timestamp")
	}
}

func TestSyncQuickBooksRefreshesExpiredTokens(t *testing.T) {
	now := time.Now()
	store := newFakeSyncStore()
	store.qbIntegrations = []models.QuickBooksIntegration{
		qbIntegration("i1", "company-1", "realm-1", true, nil),
	}
	fetcher := &fakeFetcher{
		transactions: map[string][]models.Transaction{
			"realm-1": monthlyHistory("figma", now, 6, 45),
		},
	}
	subStore := newFakeSubscriptionStore()
	reconciler := NewReconciler(subStore, testPolicy(), testLogger())
	svc := NewSyncService(store, fetcher, &fakeDirectory{}, &fakeSyncMailer{}, reconciler,
		analysis.DefaultConfig(), 30, testLogger())

	results := svc.SyncQuickBooks(context.Background())

	if results.Success != 1 {
		t.Fatalf("unexpected results %+v", results)
	}
	if fetcher.refreshes != 1 {
		t.Errorf("expected 1 token refresh, got %d", fetcher.refreshes)
	}
	if store.qbTokens["i1"] != "refreshed-access" {
		t.Error("expected rotated tokens persisted")
	}
}

func TestSyncGoogleWorkspace(t *testing.T) {
	store := newFakeSyncStore()
	store.gwIntegrations = []models.GoogleWorkspaceIntegration{
		{ID: "g1", CompanyID: "company-1", IsAdmin: true, TokenExpiresAt: time.Now().Add(time.Hour)},
		{ID: "g2", CompanyID: "company-2", IsAdmin: false, TokenExpiresAt: time.Now().Add(time.Hour)},
	}
	directory := &fakeDirectory{apps: []googlews.App{
		{ID: "client-1", Name: "Notion", Scopes: []string{"email"}},
		{Name: "Unlabeled Tool"},
	}}
	subStore := newFakeSubscriptionStore()
	reconciler := NewReconciler(subStore, testPolicy(), testLogger())
	svc := NewSyncService(store, &fakeFetcher{}, directory, &fakeSyncMailer{}, reconciler,
		analysis.DefaultConfig(), 30, testLogger())

	results := svc.SyncGoogleWorkspace(context.Background())

	if results.Total != 2 || results.Success != 1 || results.Failed != 0 {
		t.Fatalf("unexpected results %+v", results)
	}
	if len(store.apps) != 2 {
		t.Fatalf("expected 2 discovered apps, got %d", len(store.apps))
	}
	if _, ok := store.apps["company-1|client-1"]; !ok {
		t.Error("expected app keyed by client id")
	}
	// apps without a client id key by name
	if _, ok := store.apps["company-1|Unlabeled Tool"]; !ok {
		t.Error("expected app keyed by name fallback")
	}

	// second run updates sightings instead of duplicating rows
	svc.SyncGoogleWorkspace(context.Background())
	if len(store.apps) != 2 {
		t.Errorf("expected sightings to update in place, got %d rows", len(store.apps))
	}
	if store.appTouches != 2 {
		t.Errorf("expected 2 touches on resync, got %d", store.appTouches)
	}
}
