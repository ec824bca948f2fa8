package service

import (
	"time"

	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SubscriptionStore is the persistence surface the reconciler needs
type SubscriptionStore interface {
	FindSubscriptionByVendor(companyID, quickbooksVendorID string) (*models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	UpdateSubscriptionSyncFields(sub *models.Subscription) error
}

// ReconcilePolicy holds the reconciliation policy values, passed in explicitly
// rather than read from process state
type ReconcilePolicy struct {
	// MinConfidence excludes low-scoring analyses from subscription writes
	MinConfidence float64
	// DefaultNotifyBefore is the reminder window, in days, for new subscriptions
	DefaultNotifyBefore int
	// DefaultCurrency is used for newly discovered subscriptions; the
	// accounting feed reports amounts in the company's home currency
	DefaultCurrency string
}

// ReconcileStats reports the outcome of one reconciliation batch
type ReconcileStats struct {
	Processed int
	Created   int
	Updated   int
}

// Reconciler upserts vendor analyses into the subscription store
type Reconciler struct {
	store  SubscriptionStore
	policy ReconcilePolicy
	log    *logrus.Logger
	now    func() time.Time
}

// NewReconciler initializes a reconciler
func NewReconciler(store SubscriptionStore, policy ReconcilePolicy, log *logrus.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		policy: policy,
		log:    log,
		now:    time.Now,
	}
}

// NextChargeDate advances the last observed transaction date by one billing
// period. An UNKNOWN cadence falls back to a monthly advance so the renewal
// scheduler's non-null scan predicate keeps holding.
func NextChargeDate(lastTransactionDate time.Time, frequency models.PaymentFrequency) time.Time {
	switch frequency {
	case models.FrequencyQuarterly:
		return lastTransactionDate.AddDate(0, 3, 0)
	case models.FrequencyAnnual:
		return lastTransactionDate.AddDate(1, 0, 0)
	default:
		return lastTransactionDate.AddDate(0, 1, 0)
	}
}

// monthlyAmount normalizes an average charge to a per-month figure
func monthlyAmount(averageAmount decimal.Decimal, frequency models.PaymentFrequency) decimal.Decimal {
	switch frequency {
	case models.FrequencyQuarterly:
		return averageAmount.Div(decimal.NewFromInt(3))
	case models.FrequencyAnnual:
		return averageAmount.Div(decimal.NewFromInt(12))
	default:
		return averageAmount
	}
}

// Reconcile upserts each sufficiently confident analysis into the company's
// subscriptions. A failure on one vendor is logged and does not abort the
// rest of the batch; every write is an independent per-vendor upsert so an
// interrupted run simply re-processes the remainder next time.
func (r *Reconciler) Reconcile(analyses []models.VendorAnalysis, companyID string) ReconcileStats {
	var stats ReconcileStats
	for _, a := range analyses {
		if a.Confidence < r.policy.MinConfidence {
			continue
		}
		created, err := r.reconcileVendor(a, companyID)
		if err != nil {
			r.log.Errorf("Failed to reconcile vendor %s for company %s: %v", a.VendorID, companyID, err)
			continue
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
		stats.Processed++
	}
	return stats
}

func (r *Reconciler) reconcileVendor(a models.VendorAnalysis, companyID string) (created bool, err error) {
	monthly := monthlyAmount(a.AverageAmount, a.PaymentFrequency)
	annual := monthly.Mul(decimal.NewFromInt(12))
	lastCharge := a.Transactions[len(a.Transactions)-1].TotalAmount
	nextCharge := NextChargeDate(a.LastTransactionDate, a.PaymentFrequency)
	lastTxn := a.LastTransactionDate
	syncedAt := r.now()

	existing, err := r.store.FindSubscriptionByVendor(companyID, a.VendorID)
	if err != nil {
		return false, err
	}

	if existing != nil {
		// Update only the fields sync owns; user overlay fields
		// (description, website, category, tags, notes) stay untouched.
		existing.VendorName = a.VendorName
		existing.MonthlyAmount = monthly
		existing.AnnualAmount = annual
		existing.LastChargeAmount = lastCharge
		existing.PaymentFrequency = a.PaymentFrequency
		existing.NextChargeDate = &nextCharge
		existing.LastTransactionDate = &lastTxn
		existing.ConfidenceScore = a.Confidence
		existing.LastSyncedAt = &syncedAt
		return false, r.store.UpdateSubscriptionSyncFields(existing)
	}

	sub := &models.Subscription{
		CompanyID:           companyID,
		VendorName:          a.VendorName,
		QuickBooksVendorID:  a.VendorID,
		MonthlyAmount:       monthly,
		AnnualAmount:        annual,
		LastChargeAmount:    lastCharge,
		Currency:            r.policy.DefaultCurrency,
		PaymentFrequency:    a.PaymentFrequency,
		NextChargeDate:      &nextCharge,
		LastTransactionDate: &lastTxn,
		AutoRenewal:         true,
		NotifyBefore:        r.policy.DefaultNotifyBefore,
		Status:              models.StatusActive,
		Source:              models.SourceQuickBooks,
		Tags:                []string{},
		ConfidenceScore:     a.Confidence,
		LastSyncedAt:        &syncedAt,
	}
	return true, r.store.CreateSubscription(sub)
}
