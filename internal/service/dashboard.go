package service

import (
	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DashboardStore is the persistence surface for the spend overview
type DashboardStore interface {
	FindCompanyForUser(userID string) (*models.Company, error)
	ListSubscriptions(companyID string) ([]models.Subscription, error)
}

// RateSource provides EUR-based FX reference rates keyed by currency code
type RateSource interface {
	Rates() (map[string]float64, error)
}

// DashboardSummary is the company spend overview
type DashboardSummary struct {
	ActiveSubscriptions int                        `json:"active_subscriptions"`
	MonthlyTotal        decimal.Decimal            `json:"monthly_total"`
	AnnualTotal         decimal.Decimal            `json:"annual_total"`
	Currency            string                     `json:"currency"`
	ByCategory          map[string]decimal.Decimal `json:"by_category"`
}

// DashboardService aggregates subscription spend, normalized to a base
// currency via daily reference rates
type DashboardService struct {
	store        DashboardStore
	rates        RateSource
	baseCurrency string
	log          *logrus.Logger
}

// NewDashboardService initializes the dashboard service
func NewDashboardService(store DashboardStore, rates RateSource, baseCurrency string, log *logrus.Logger) *DashboardService {
	return &DashboardService{
		store:        store,
		rates:        rates,
		baseCurrency: baseCurrency,
		log:          log,
	}
}

// Summary computes the spend overview for the user's company. Only ACTIVE
// subscriptions count toward totals.
func (s *DashboardService) Summary(userID string) (*DashboardSummary, error) {
	company, err := s.store.FindCompanyForUser(userID)
	if err != nil {
		return nil, err
	}
	subscriptions, err := s.store.ListSubscriptions(company.ID)
	if err != nil {
		return nil, err
	}

	rates, err := s.rates.Rates()
	if err != nil {
		// Totals degrade to unconverted amounts rather than failing the page
		s.log.Warnf("FX rates unavailable, skipping currency normalization: %v", err)
		rates = nil
	}

	summary := &DashboardSummary{
		Currency:     s.baseCurrency,
		MonthlyTotal: decimal.Zero,
		AnnualTotal:  decimal.Zero,
		ByCategory:   make(map[string]decimal.Decimal),
	}
	for _, sub := range subscriptions {
		if sub.Status != models.StatusActive {
			continue
		}
		summary.ActiveSubscriptions++
		monthly := s.toBase(sub.MonthlyAmount, sub.Currency, rates)
		summary.MonthlyTotal = summary.MonthlyTotal.Add(monthly)
		summary.AnnualTotal = summary.AnnualTotal.Add(monthly.Mul(decimal.NewFromInt(12)))

		category := sub.Category
		if category == "" {
			category = "Uncategorized"
		}
		summary.ByCategory[category] = summary.ByCategory[category].Add(monthly)
	}
	return summary, nil
}

// toBase converts an amount to the base currency using EUR-based rates.
// Unknown currencies pass through unconverted.
func (s *DashboardService) toBase(amount decimal.Decimal, currency string, rates map[string]float64) decimal.Decimal {
	if currency == s.baseCurrency || rates == nil {
		return amount
	}
	from, okFrom := rates[currency]
	to, okTo := rates[s.baseCurrency]
	if !okFrom || !okTo || from == 0 {
		s.log.Warnf("No FX rate for %s, leaving amount unconverted", currency)
		return amount
	}
	return amount.Div(decimal.NewFromFloat(from)).Mul(decimal.NewFromFloat(to))
}
