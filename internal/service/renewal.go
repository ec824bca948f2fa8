package service

import (
	"fmt"
	"math"
	"time"

	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/billkie/saas-sprawl/internal/utils/email"
	"github.com/sirupsen/logrus"
)

// RenewalStore is the persistence surface the renewal scheduler needs
type RenewalStore interface {
	ListActiveSubscriptionsDue() ([]models.Subscription, error)
	FindCompanyByID(id string) (*models.Company, error)
	CompanyAdmins(companyID string) ([]models.User, error)
	SetLastNotifiedChargeDate(subscriptionID string, chargeDate time.Time) error
	CreateNotification(n *models.Notification) error
}

// RenewalMailer sends renewal reminder emails
type RenewalMailer interface {
	SendRenewalReminder(to, userName string, data email.RenewalData) error
}

// RenewalService scans active subscriptions on a daily tick and dispatches
// renewal reminders to company owners and admins.
type RenewalService struct {
	store  RenewalStore
	mailer RenewalMailer
	log    *logrus.Logger
	now    func() time.Time
}

// NewRenewalService initializes the renewal scheduler
func NewRenewalService(store RenewalStore, mailer RenewalMailer, log *logrus.Logger) *RenewalService {
	return &RenewalService{
		store:  store,
		mailer: mailer,
		log:    log,
		now:    time.Now,
	}
}

// DaysUntil returns the whole days remaining until the charge date, rounded
// up. Zero means due today, negative means overdue.
func DaysUntil(chargeDate, now time.Time) int {
	return int(math.Ceil(chargeDate.Sub(now).Hours() / 24))
}

// CheckRenewals runs one scheduler tick over every ACTIVE subscription with a
// known next charge date. A subscription is due when its remaining days are
// within its notify window, overdue included. Reminders are deduplicated per
// charge occurrence: once notified, a subscription stays quiet until its
// next charge date advances. Per-recipient send failures are collected, never
// raised, so one bad mailbox cannot block the rest of the tick.
func (s *RenewalService) CheckRenewals() models.RenewalResults {
	results := models.RenewalResults{Errors: []string{}}

	subscriptions, err := s.store.ListActiveSubscriptionsDue()
	if err != nil {
		results.Errors = append(results.Errors, err.Error())
		return results
	}

	now := s.now()
	for _, sub := range subscriptions {
		if sub.NextChargeDate == nil || sub.NotifyBefore <= 0 {
			continue
		}
		daysUntil := DaysUntil(*sub.NextChargeDate, now)
		if daysUntil > sub.NotifyBefore {
			continue
		}
		if sub.LastNotifiedChargeDate != nil && sub.LastNotifiedChargeDate.Equal(*sub.NextChargeDate) {
			continue
		}

		sent := s.notifySubscription(sub, daysUntil, &results)
		if sent == 0 {
			continue
		}
		results.NotificationsScheduled += sent

		if err := s.store.SetLastNotifiedChargeDate(sub.ID, *sub.NextChargeDate); err != nil {
			s.log.Errorf("Failed to record notified occurrence for subscription %s: %v", sub.ID, err)
			results.Errors = append(results.Errors, fmt.Sprintf("%s: %v", sub.VendorName, err))
		}
	}

	s.log.Infof("Scheduled %d renewal notifications (%d errors)",
		results.NotificationsScheduled, len(results.Errors))
	return results
}

// notifySubscription emails every owner/admin in the subscription's company
// and leaves one in-app notification. Returns the number of emails sent.
func (s *RenewalService) notifySubscription(sub models.Subscription, daysUntil int, results *models.RenewalResults) int {
	companyName := sub.CompanyID
	if company, err := s.store.FindCompanyByID(sub.CompanyID); err == nil {
		companyName = company.Name
	}

	recipients, err := s.store.CompanyAdmins(sub.CompanyID)
	if err != nil {
		results.Errors = append(results.Errors, fmt.Sprintf("%s: %v", sub.VendorName, err))
		return 0
	}

	amount := sub.LastChargeAmount
	if amount.IsZero() {
		amount = sub.MonthlyAmount
	}
	data := email.RenewalData{
		CompanyName:      companyName,
		VendorName:       sub.VendorName,
		Amount:           amount,
		Currency:         sub.Currency,
		RenewalDate:      *sub.NextChargeDate,
		DaysUntilRenewal: daysUntil,
	}

	sent := 0
	for _, recipient := range recipients {
		if err := s.mailer.SendRenewalReminder(recipient.Email, recipient.Name, data); err != nil {
			s.log.Errorf("Failed to send renewal reminder to %s: %v", recipient.Email, err)
			results.Errors = append(results.Errors, fmt.Sprintf("%s/%s: %v", sub.VendorName, recipient.Email, err))
			continue
		}
		sent++
	}
	if sent == 0 {
		return 0
	}

	notification := &models.Notification{
		CompanyID: sub.CompanyID,
		Type:      models.NotificationRenewal,
		Title:     renewalTitle(sub.VendorName, daysUntil),
		Message: fmt.Sprintf("%s renews on %s for %s %s",
			sub.VendorName, sub.NextChargeDate.Format("2006-01-02"),
			amount.StringFixed(2), sub.Currency),
		Data: map[string]any{
			"subscriptionId": sub.ID,
			"amount":         amount.InexactFloat64(),
			"currency":       sub.Currency,
			"renewalDate":    sub.NextChargeDate.Format(time.RFC3339),
		},
	}
	if err := s.store.CreateNotification(notification); err != nil {
		s.log.Errorf("Failed to create in-app notification for subscription %s: %v", sub.ID, err)
	}
	return sent
}

func renewalTitle(vendorName string, daysUntil int) string {
	switch {
	case daysUntil < 0:
		return fmt.Sprintf("%s renewal is overdue", vendorName)
	case daysUntil == 0:
		return fmt.Sprintf("%s renews today", vendorName)
	default:
		return fmt.Sprintf("%s renews in %d days", vendorName, daysUntil)
	}
}
