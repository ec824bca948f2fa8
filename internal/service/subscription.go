package service

import (
	"fmt"
	"time"

	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SubscriptionCRUDStore is the persistence surface for user-driven
// subscription management
type SubscriptionCRUDStore interface {
	FindCompanyForUser(userID string) (*models.Company, error)
	ListSubscriptions(companyID string) ([]models.Subscription, error)
	FindSubscriptionByID(id, companyID string) (*models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	UpdateSubscription(sub *models.Subscription) error
	DeleteSubscription(id, companyID string) error
}

// SubscriptionService manages manually tracked subscriptions and user edits
// to discovered ones
type SubscriptionService struct {
	store               SubscriptionCRUDStore
	defaultNotifyBefore int
	defaultCurrency     string
	log                 *logrus.Logger
}

// NewSubscriptionService initializes the subscription service
func NewSubscriptionService(store SubscriptionCRUDStore, defaultNotifyBefore int, defaultCurrency string, log *logrus.Logger) *SubscriptionService {
	return &SubscriptionService{
		store:               store,
		defaultNotifyBefore: defaultNotifyBefore,
		defaultCurrency:     defaultCurrency,
		log:                 log,
	}
}

// CreateSubscriptionInput is the payload for a manual subscription
type CreateSubscriptionInput struct {
	VendorName       string                  `json:"vendor_name"`
	Description      string                  `json:"description"`
	MonthlyAmount    decimal.Decimal         `json:"monthly_amount"`
	Currency         string                  `json:"currency"`
	PaymentFrequency models.PaymentFrequency `json:"payment_frequency"`
	Category         string                  `json:"category"`
	Website          string                  `json:"website"`
	Tags             []string                `json:"tags"`
	Notes            string                  `json:"notes"`
	AutoRenewal      *bool                   `json:"auto_renewal"`
	NotifyBefore     *int                    `json:"notify_before"`
	NextChargeDate   *time.Time              `json:"next_charge_date"`
}

// UpdateSubscriptionInput carries a user edit; nil fields are left unchanged
type UpdateSubscriptionInput struct {
	VendorName       *string                    `json:"vendor_name"`
	Description      *string                    `json:"description"`
	MonthlyAmount    *decimal.Decimal           `json:"monthly_amount"`
	Currency         *string                    `json:"currency"`
	PaymentFrequency *models.PaymentFrequency   `json:"payment_frequency"`
	Category         *string                    `json:"category"`
	Website          *string                    `json:"website"`
	Tags             []string                   `json:"tags"`
	Notes            *string                    `json:"notes"`
	AutoRenewal      *bool                      `json:"auto_renewal"`
	NotifyBefore     *int                       `json:"notify_before"`
	NextChargeDate   *time.Time                 `json:"next_charge_date"`
	Status           *models.SubscriptionStatus `json:"status"`
}

// List returns the subscriptions of the user's company
func (s *SubscriptionService) List(userID string) ([]models.Subscription, error) {
	company, err := s.store.FindCompanyForUser(userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListSubscriptions(company.ID)
}

// Create adds a manually tracked subscription. Manual entries have no vendor
// key and no uniqueness constraint.
func (s *SubscriptionService) Create(userID string, input CreateSubscriptionInput) (*models.Subscription, error) {
	if input.VendorName == "" {
		return nil, fmt.Errorf("vendor_name is required")
	}
	company, err := s.store.FindCompanyForUser(userID)
	if err != nil {
		return nil, err
	}

	frequency := input.PaymentFrequency
	if frequency == "" {
		frequency = models.FrequencyMonthly
	}
	currency := input.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}
	autoRenewal := true
	if input.AutoRenewal != nil {
		autoRenewal = *input.AutoRenewal
	}
	notifyBefore := s.defaultNotifyBefore
	if input.NotifyBefore != nil {
		notifyBefore = *input.NotifyBefore
	}

	sub := &models.Subscription{
		CompanyID:        company.ID,
		VendorName:       input.VendorName,
		MonthlyAmount:    input.MonthlyAmount,
		AnnualAmount:     input.MonthlyAmount.Mul(decimal.NewFromInt(12)),
		Currency:         currency,
		PaymentFrequency: frequency,
		NextChargeDate:   input.NextChargeDate,
		AutoRenewal:      autoRenewal,
		NotifyBefore:     notifyBefore,
		Status:           models.StatusActive,
		Source:           models.SourceManual,
		Description:      input.Description,
		Website:          input.Website,
		Category:         input.Category,
		Tags:             input.Tags,
		Notes:            input.Notes,
	}
	if err := s.store.CreateSubscription(sub); err != nil {
		return nil, err
	}

	s.log.Infof("Manual subscription created: %s for company %s", sub.VendorName, company.ID)
	return sub, nil
}

// Update applies a user edit to a subscription in the user's company
func (s *SubscriptionService) Update(userID, subscriptionID string, input UpdateSubscriptionInput) (*models.Subscription, error) {
	company, err := s.store.FindCompanyForUser(userID)
	if err != nil {
		return nil, err
	}
	sub, err := s.store.FindSubscriptionByID(subscriptionID, company.ID)
	if err != nil {
		return nil, err
	}

	if input.VendorName != nil {
		sub.VendorName = *input.VendorName
	}
	if input.Description != nil {
		sub.Description = *input.Description
	}
	if input.MonthlyAmount != nil {
		sub.MonthlyAmount = *input.MonthlyAmount
		sub.AnnualAmount = input.MonthlyAmount.Mul(decimal.NewFromInt(12))
	}
	if input.Currency != nil {
		sub.Currency = *input.Currency
	}
	if input.PaymentFrequency != nil {
		sub.PaymentFrequency = *input.PaymentFrequency
	}
	if input.Category != nil {
		sub.Category = *input.Category
	}
	if input.Website != nil {
		sub.Website = *input.Website
	}
	if input.Tags != nil {
		sub.Tags = input.Tags
	}
	if input.Notes != nil {
		sub.Notes = *input.Notes
	}
	if input.AutoRenewal != nil {
		sub.AutoRenewal = *input.AutoRenewal
	}
	if input.NotifyBefore != nil {
		sub.NotifyBefore = *input.NotifyBefore
	}
	if input.NextChargeDate != nil {
		sub.NextChargeDate = input.NextChargeDate
	}
	if input.Status != nil {
		sub.Status = *input.Status
	}

	if err := s.store.UpdateSubscription(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Delete removes a subscription. This is the only path that hard-deletes a
// row; the sync path retires subscriptions by status.
func (s *SubscriptionService) Delete(userID, subscriptionID string) error {
	company, err := s.store.FindCompanyForUser(userID)
	if err != nil {
		return err
	}
	return s.store.DeleteSubscription(subscriptionID, company.ID)
}
