package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus is the lifecycle state of a tracked subscription
type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "ACTIVE"
	StatusCanceled SubscriptionStatus = "CANCELED"
	StatusPastDue  SubscriptionStatus = "PAST_DUE"
	StatusTrialing SubscriptionStatus = "TRIALING"
	StatusExpired  SubscriptionStatus = "EXPIRED"
)

// SubscriptionSource records where a subscription was discovered
type SubscriptionSource string

const (
	SourceManual     SubscriptionSource = "MANUAL"
	SourceQuickBooks SubscriptionSource = "QUICKBOOKS"
	SourceGoogle     SubscriptionSource = "GOOGLE_WORKSPACE"
)

// Subscription is the durable record of a recurring vendor cost owned by a
// company. Description, Website, Category, Tags and Notes are user-edited
// overlay fields: sync updates must leave them untouched once set.
type Subscription struct {
	ID                  string             `json:"id"`
	CompanyID           string             `json:"company_id"`
	VendorName          string             `json:"vendor_name"`
	QuickBooksVendorID  string             `json:"quickbooks_vendor_id,omitempty"`
	MonthlyAmount       decimal.Decimal    `json:"monthly_amount"`
	AnnualAmount        decimal.Decimal    `json:"annual_amount"`
	LastChargeAmount    decimal.Decimal    `json:"last_charge_amount"`
	Currency            string             `json:"currency"`
	PaymentFrequency    PaymentFrequency   `json:"payment_frequency"`
	NextChargeDate      *time.Time         `json:"next_charge_date,omitempty"`
	LastTransactionDate *time.Time         `json:"last_transaction_date,omitempty"`
	AutoRenewal         bool               `json:"auto_renewal"`
	NotifyBefore        int                `json:"notify_before"`
	Status              SubscriptionStatus `json:"status"`
	Source              SubscriptionSource `json:"source"`
	Description         string             `json:"description,omitempty"`
	Website             string             `json:"website,omitempty"`
	Category            string             `json:"category,omitempty"`
	Tags                []string           `json:"tags"`
	Notes               string             `json:"notes,omitempty"`
	ConfidenceScore     float64            `json:"confidence_score"`
	LastSyncedAt        *time.Time         `json:"last_synced_at,omitempty"`
	// LastNotifiedChargeDate is the NextChargeDate value a renewal reminder
	// was last sent for; the scheduler skips a subscription until the charge
	// date advances past it.
	LastNotifiedChargeDate *time.Time `json:"last_notified_charge_date,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}
