package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/billkie/saas-sprawl/internal/utils/email"
	"github.com/shopspring/decimal"
)

type fakeRenewalStore struct {
	subs          []models.Subscription
	admins        map[string][]models.User
	notifications []models.Notification
	notifiedDates map[string]time.Time
}

func newFakeRenewalStore(subs ...models.Subscription) *fakeRenewalStore {
	return &fakeRenewalStore{
		subs: subs,
		admins: map[string][]models.User{
			"company-1": {
				{ID: "u1", Email: "owner@acme.test", Name: "Olive"},
				{ID: "u2", Email: "admin@acme.test", Name: "Ada"},
			},
		},
		notifiedDates: make(map[string]time.Time),
	}
}

func (f *fakeRenewalStore) ListActiveSubscriptionsDue() ([]models.Subscription, error) {
	var due []models.Subscription
	for _, sub := range f.subs {
		if sub.Status == models.StatusActive && sub.NextChargeDate != nil {
			if notified, ok := f.notifiedDates[sub.ID]; ok {
				t := notified
				sub.LastNotifiedChargeDate = &t
			}
			due = append(due, sub)
		}
	}
	return due, nil
}

func (f *fakeRenewalStore) FindCompanyByID(id string) (*models.Company, error) {
	return &models.Company{ID: id, Name: "Acme"}, nil
}

func (f *fakeRenewalStore) CompanyAdmins(companyID string) ([]models.User, error) {
	return f.admins[companyID], nil
}

func (f *fakeRenewalStore) SetLastNotifiedChargeDate(subscriptionID string, chargeDate time.Time) error {
	f.notifiedDates[subscriptionID] = chargeDate
	return nil
}

func (f *fakeRenewalStore) CreateNotification(n *models.Notification) error {
	f.notifications = append(f.notifications, *n)
	return nil
}

type sentMail struct {
	to   string
	data email.RenewalData
}

type fakeMailer struct {
	sent         []sentMail
	failForEmail string
}

func (f *fakeMailer) SendRenewalReminder(to, userName string, data email.RenewalData) error {
	if to == f.failForEmail {
		return fmt.Errorf("mailbox unavailable")
	}
	f.sent = append(f.sent, sentMail{to: to, data: data})
	return nil
}

func renewalSub(id string, nextCharge time.Time, notifyBefore int) models.Subscription {
	next := nextCharge
	return models.Subscription{
		ID:               id,
		CompanyID:        "company-1",
		VendorName:       "Figma",
		LastChargeAmount: decimal.NewFromFloat(49.99),
		MonthlyAmount:    decimal.NewFromFloat(49.99),
		Currency:         "USD",
		NextChargeDate:   &next,
		NotifyBefore:     notifyBefore,
		Status:           models.StatusActive,
	}
}

func newRenewalService(store *fakeRenewalStore, mailer *fakeMailer, now time.Time) *RenewalService {
	svc := NewRenewalService(store, mailer, testLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func TestCheckRenewalsWindow(t *testing.T) {
	now := parseDate("2025-06-01")
	store := newFakeRenewalStore(
		renewalSub("inside", now.AddDate(0, 0, 5), 14),
		renewalSub("outside", now.AddDate(0, 0, 20), 14),
	)
	mailer := &fakeMailer{}

	results := newRenewalService(store, mailer, now).CheckRenewals()

	// two admins, one due subscription
	if results.NotificationsScheduled != 2 {
		t.Fatalf("expected 2 notifications, got %d", results.NotificationsScheduled)
	}
	for _, mail := range mailer.sent {
		if mail.data.DaysUntilRenewal != 5 {
			t.Errorf("expected 5 days until renewal, got %d", mail.data.DaysUntilRenewal)
		}
	}
	if len(store.notifications) != 1 {
		t.Fatalf("expected 1 in-app notification, got %d", len(store.notifications))
	}
	if _, ok := store.notifiedDates["outside"]; ok {
		t.Error("subscription outside its window must not be marked notified")
	}
}

func TestCheckRenewalsOverdue(t *testing.T) {
	now := parseDate("2025-06-01").Add(12 * time.Hour)
	store := newFakeRenewalStore(renewalSub("overdue", parseDate("2025-05-30"), 14))
	mailer := &fakeMailer{}

	results := newRenewalService(store, mailer, now).CheckRenewals()

	if results.NotificationsScheduled != 2 {
		t.Fatalf("expected 2 notifications, got %d", results.NotificationsScheduled)
	}
	if mailer.sent[0].data.DaysUntilRenewal >= 0 {
		t.Errorf("expected negative days for overdue renewal, got %d", mailer.sent[0].data.DaysUntilRenewal)
	}
	if !strings.Contains(store.notifications[0].Title, "overdue") {
		t.Errorf("expected overdue title, got %q", store.notifications[0].Title)
	}
}

func TestCheckRenewalsDedupesOccurrence(t *testing.T) {
	now := parseDate("2025-06-01")
	store := newFakeRenewalStore(renewalSub("s1", now.AddDate(0, 0, 5), 14))
	mailer := &fakeMailer{}
	svc := newRenewalService(store, mailer, now)

	first := svc.CheckRenewals()
	second := svc.CheckRenewals()

	if first.NotificationsScheduled != 2 {
		t.Fatalf("expected first tick to notify, got %d", first.NotificationsScheduled)
	}
	if second.NotificationsScheduled != 0 {
		t.Fatalf("expected second tick deduped, got %d", second.NotificationsScheduled)
	}

	// Once the charge date advances, the next occurrence notifies again
	advanced := now.AddDate(0, 1, 5)
	store.subs[0].NextChargeDate = &advanced
	later := newRenewalService(store, mailer, now.AddDate(0, 1, 0))
	third := later.CheckRenewals()
	if third.NotificationsScheduled != 2 {
		t.Fatalf("expected next occurrence to notify again, got %d", third.NotificationsScheduled)
	}
}

func TestCheckRenewalsRecipientFailureIsolation(t *testing.T) {
	now := parseDate("2025-06-01")
	store := newFakeRenewalStore(renewalSub("s1", now.AddDate(0, 0, 3), 14))
	mailer := &fakeMailer{failForEmail: "owner@acme.test"}

	results := newRenewalService(store, mailer, now).CheckRenewals()

	if results.NotificationsScheduled != 1 {
		t.Fatalf("expected the healthy recipient to be notified, got %d", results.NotificationsScheduled)
	}
	if len(results.Errors) != 1 {
		t.Fatalf("expected exactly 1 error, got %d: %v", len(results.Errors), results.Errors)
	}
	if !strings.Contains(results.Errors[0], "owner@acme.test") {
		t.Errorf("expected error to name the failing recipient, got %q", results.Errors[0])
	}
	// The occurrence still counts as notified for dedupe purposes
	if _, ok := store.notifiedDates["s1"]; !ok {
		t.Error("expected occurrence marked notified after a partial send")
	}
}

func TestCheckRenewalsSkipsMissingPolicy(t *testing.T) {
	now := parseDate("2025-06-01")
	noWindow := renewalSub("s1", now.AddDate(0, 0, 3), 0)
	store := newFakeRenewalStore(noWindow)
	mailer := &fakeMailer{}

	results := newRenewalService(store, mailer, now).CheckRenewals()

	if results.NotificationsScheduled != 0 {
		t.Fatalf("expected no notifications without a notify window, got %d", results.NotificationsScheduled)
	}
}

func TestDaysUntil(t *testing.T) {
	now := parseDate("2025-06-01")
	testCases := []struct {
		charge   time.Time
		expected int
	}{
		{now.AddDate(0, 0, 5), 5},
		{now.AddDate(0, 0, 1), 1},
		{now, 0},
		{now.AddDate(0, 0, -1), -1},
		// a partial day remaining still counts as a full day
		{now.Add(36 * time.Hour), 2},
	}
	for _, tc := range testCases {
		if got := DaysUntil(tc.charge, now); got != tc.expected {
			t.Errorf("charge %v: expected %d, got %d", tc.charge, tc.expected, got)
		}
	}
}
