package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentFrequency is the inferred billing cadence for a vendor
type PaymentFrequency string

const (
	FrequencyMonthly   PaymentFrequency = "MONTHLY"
	FrequencyQuarterly PaymentFrequency = "QUARTERLY"
	FrequencyAnnual    PaymentFrequency = "ANNUAL"
	FrequencyUnknown   PaymentFrequency = "UNKNOWN"
)

// VendorAnalysis is the per-vendor result of one analysis run. It is
// recomputed from scratch on every sync and never persisted directly.
type VendorAnalysis struct {
	VendorID            string           `json:"vendor_id"`
	VendorName          string           `json:"vendor_name"`
	Transactions        []Transaction    `json:"transactions"`
	AverageAmount       decimal.Decimal  `json:"average_amount"`
	PaymentFrequency    PaymentFrequency `json:"payment_frequency"`
	Confidence          float64          `json:"confidence"`
	LastTransactionDate time.Time        `json:"last_transaction_date"`
}

// SyncResults aggregates the outcome of one scheduled sync run across companies
type SyncResults struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Total   int      `json:"total"`
	Errors  []string `json:"errors"`
}

// RenewalResults aggregates the outcome of one renewal-check tick
type RenewalResults struct {
	NotificationsScheduled int      `json:"notifications_scheduled"`
	Errors                 []string `json:"errors"`
}
