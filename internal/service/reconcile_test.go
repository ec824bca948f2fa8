package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testPolicy() ReconcilePolicy {
	return ReconcilePolicy{
		MinConfidence:       0.5,
		DefaultNotifyBefore: 14,
		DefaultCurrency:     "USD",
	}
}

func parseDate(dateStr string) time.Time {
	parsed, _ := time.Parse("2006-01-02", dateStr)
	return parsed
}

// fakeSubscriptionStore is an in-memory SubscriptionStore keyed by
// (companyID, vendorID)
type fakeSubscriptionStore struct {
	subs        map[string]*models.Subscription
	failVendors map[string]bool
	creates     int
	updates     int
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{
		subs:        make(map[string]*models.Subscription),
		failVendors: make(map[string]bool),
	}
}

func storeKey(companyID, vendorID string) string {
	return companyID + "|" + vendorID
}

func (f *fakeSubscriptionStore) FindSubscriptionByVendor(companyID, vendorID string) (*models.Subscription, error) {
	if f.failVendors[vendorID] {
		return nil, fmt.Errorf("store down for vendor %s", vendorID)
	}
	sub, ok := f.subs[storeKey(companyID, vendorID)]
	if !ok {
		return nil, nil
	}
	clone := *sub
	return &clone, nil
}

func (f *fakeSubscriptionStore) CreateSubscription(sub *models.Subscription) error {
	if f.failVendors[sub.QuickBooksVendorID] {
		return fmt.Errorf("store down for vendor %s", sub.QuickBooksVendorID)
	}
	sub.ID = fmt.Sprintf("sub-%d", len(f.subs)+1)
	clone := *sub
	f.subs[storeKey(sub.CompanyID, sub.QuickBooksVendorID)] = &clone
	f.creates++
	return nil
}

func (f *fakeSubscriptionStore) UpdateSubscriptionSyncFields(sub *models.Subscription) error {
	existing, ok := f.subs[storeKey(sub.CompanyID, sub.QuickBooksVendorID)]
	if !ok {
		return fmt.Errorf("subscription not found")
	}
	// Mirror the SQL statement: only sync-owned columns change
	existing.VendorName = sub.VendorName
	existing.MonthlyAmount = sub.MonthlyAmount
	existing.AnnualAmount = sub.AnnualAmount
	existing.LastChargeAmount = sub.LastChargeAmount
	existing.PaymentFrequency = sub.PaymentFrequency
	existing.NextChargeDate = sub.NextChargeDate
	existing.LastTransactionDate = sub.LastTransactionDate
	existing.ConfidenceScore = sub.ConfidenceScore
	existing.LastSyncedAt = sub.LastSyncedAt
	f.updates++
	return nil
}

func monthlyAnalysis(vendorID string, lastDate time.Time, amount float64, confidence float64) models.VendorAnalysis {
	amt := decimal.NewFromFloat(amount)
	return models.VendorAnalysis{
		VendorID:   vendorID,
		VendorName: vendorID,
		Transactions: []models.Transaction{
			{TxnDate: lastDate.AddDate(0, -1, 0), TotalAmount: amt, VendorID: vendorID},
			{TxnDate: lastDate, TotalAmount: amt, VendorID: vendorID},
		},
		AverageAmount:       amt,
		PaymentFrequency:    models.FrequencyMonthly,
		Confidence:          confidence,
		LastTransactionDate: lastDate,
	}
}

func TestReconcileCreatesSubscription(t *testing.T) {
	store := newFakeSubscriptionStore()
	r := NewReconciler(store, testPolicy(), testLogger())

	stats := r.Reconcile([]models.VendorAnalysis{
		monthlyAnalysis("v1", parseDate("2025-05-01"), 49.99, 0.9),
	}, "company-1")

	if stats.Processed != 1 || stats.Created != 1 || stats.Updated != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	sub := store.subs[storeKey("company-1", "v1")]
	if sub == nil {
		t.Fatal("expected subscription to be created")
	}
	if sub.Status != models.StatusActive {
		t.Errorf("expected ACTIVE status, got %s", sub.Status)
	}
	if sub.Source != models.SourceQuickBooks {
		t.Errorf("expected QUICKBOOKS source, got %s", sub.Source)
	}
	if sub.NotifyBefore != 14 {
		t.Errorf("expected default notify window of 14 days, got %d", sub.NotifyBefore)
	}
	wantNext := parseDate("2025-06-01")
	if sub.NextChargeDate == nil || !sub.NextChargeDate.Equal(wantNext) {
		t.Errorf("expected next charge %v, got %v", wantNext, sub.NextChargeDate)
	}
}

func TestReconcileIdempotence(t *testing.T) {
	store := newFakeSubscriptionStore()
	r := NewReconciler(store, testPolicy(), testLogger())
	a := monthlyAnalysis("v1", parseDate("2025-05-01"), 49.99, 0.9)

	r.Reconcile([]models.VendorAnalysis{a}, "company-1")
	r.Reconcile([]models.VendorAnalysis{a}, "company-1")

	if len(store.subs) != 1 {
		t.Fatalf("expected 1 subscription after two runs, got %d", len(store.subs))
	}
	if store.creates != 1 || store.updates != 1 {
		t.Errorf("expected 1 create and 1 update, got %d and %d", store.creates, store.updates)
	}
}

func TestReconcilePreservesUserOverlay(t *testing.T) {
	store := newFakeSubscriptionStore()
	r := NewReconciler(store, testPolicy(), testLogger())

	r.Reconcile([]models.VendorAnalysis{
		monthlyAnalysis("v1", parseDate("2025-04-01"), 49.99, 0.9),
	}, "company-1")

	// User edits the overlay fields between syncs
	sub := store.subs[storeKey("company-1", "v1")]
	sub.Category = "Finance"
	sub.Description = "Accounting seat licenses"
	sub.Notes = "negotiated discount"

	r.Reconcile([]models.VendorAnalysis{
		monthlyAnalysis("v1", parseDate("2025-05-01"), 59.99, 0.9),
	}, "company-1")

	sub = store.subs[storeKey("company-1", "v1")]
	if sub.Category != "Finance" {
		t.Errorf("expected category to survive sync, got %q", sub.Category)
	}
	if sub.Description != "Accounting seat licenses" || sub.Notes != "negotiated discount" {
		t.Error("expected user-edited fields to survive sync")
	}
	if !sub.LastChargeAmount.Equal(decimal.NewFromFloat(59.99)) {
		t.Errorf("expected last charge amount updated to 59.99, got %s", sub.LastChargeAmount)
	}
}

func TestReconcileSkipsLowConfidence(t *testing.T) {
	store := newFakeSubscriptionStore()
	r := NewReconciler(store, testPolicy(), testLogger())

	stats := r.Reconcile([]models.VendorAnalysis{
		monthlyAnalysis("noise", parseDate("2025-05-01"), 12.00, 0.2),
		monthlyAnalysis("signal", parseDate("2025-05-01"), 49.99, 0.9),
	}, "company-1")

	if stats.Processed != 1 {
		t.Fatalf("expected 1 processed, got %d", stats.Processed)
	}
	if _, ok := store.subs[storeKey("company-1", "noise")]; ok {
		t.Error("low-confidence analysis must not create a subscription")
	}
}

func TestReconcilePartialFailureIsolation(t *testing.T) {
	store := newFakeSubscriptionStore()
	store.failVendors["v2"] = true
	r := NewReconciler(store, testPolicy(), testLogger())

	stats := r.Reconcile([]models.VendorAnalysis{
		monthlyAnalysis("v1", parseDate("2025-05-01"), 10, 0.9),
		monthlyAnalysis("v2", parseDate("2025-05-01"), 20, 0.9),
		monthlyAnalysis("v3", parseDate("2025-05-01"), 30, 0.9),
	}, "company-1")

	if stats.Processed != 2 {
		t.Fatalf("expected 2 processed despite one failure, got %d", stats.Processed)
	}
	if _, ok := store.subs[storeKey("company-1", "v1")]; !ok {
		t.Error("v1 should have been reconciled")
	}
	if _, ok := store.subs[storeKey("company-1", "v3")]; !ok {
		t.Error("v3 should have been reconciled")
	}
}

func TestNextChargeDate(t *testing.T) {
	last := parseDate("2025-01-15")
	testCases := []struct {
		frequency models.PaymentFrequency
		expected  time.Time
	}{
		{models.FrequencyMonthly, parseDate("2025-02-15")},
		{models.FrequencyQuarterly, parseDate("2025-04-15")},
		{models.FrequencyAnnual, parseDate("2026-01-15")},
		// UNKNOWN falls back to a monthly advance so the scheduler's
		// non-null filter keeps working
		{models.FrequencyUnknown, parseDate("2025-02-15")},
	}

	for _, tc := range testCases {
		if got := NextChargeDate(last, tc.frequency); !got.Equal(tc.expected) {
			t.Errorf("%s: expected %v, got %v", tc.frequency, tc.expected, got)
		}
	}
}

func TestMonthlyAmountNormalization(t *testing.T) {
	testCases := []struct {
		frequency models.PaymentFrequency
		average   float64
		expected  string
	}{
		{models.FrequencyMonthly, 30, "30"},
		{models.FrequencyQuarterly, 30, "10"},
		{models.FrequencyAnnual, 120, "10"},
		{models.FrequencyUnknown, 30, "30"},
	}

	for _, tc := range testCases {
		got := monthlyAmount(decimal.NewFromFloat(tc.average), tc.frequency)
		if !got.Equal(decimal.RequireFromString(tc.expected)) {
			t.Errorf("%s: expected %s, got %s", tc.frequency, tc.expected, got)
		}
	}
}
