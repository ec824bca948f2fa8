// Package analysis implements recurring-vendor detection over raw purchase
// transactions: grouping by counterparty, billing-cadence inference from
// inter-transaction intervals, and confidence scoring. All functions are pure;
// policy values arrive through Config rather than ambient process state.
package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/shopspring/decimal"
)

const hoursPerDay = 24

// Confidence signal weights. Each signal is separately capped so no single
// signal can claim full confidence on its own.
const (
	volumeWeight      = 0.3
	regularityWeight  = 0.3
	consistencyWeight = 0.2
	recencyWeight     = 0.2

	// volumeSaturation is the transaction count at which the volume signal maxes out
	volumeSaturation = 10
)

// Band is an inclusive interval range in days
type Band struct {
	Min float64
	Max float64
}

// Contains reports whether d falls inside the band
func (b Band) Contains(d float64) bool {
	return d >= b.Min && d <= b.Max
}

// Config holds the tunable policy for the detection engine
type Config struct {
	// MinConfidence gates which analyses may create or update subscriptions
	MinConfidence float64
	// Cadence bands; real billing dates drift a few days around nominal
	// 30/90/365-day cycles, so the bands absorb that without overlapping.
	MonthlyBand   Band
	QuarterlyBand Band
	AnnualBand    Band
}

// DefaultConfig returns the production detection policy
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.5,
		MonthlyBand:   Band{Min: 25, Max: 35},
		QuarterlyBand: Band{Min: 85, Max: 95},
		AnnualBand:    Band{Min: 350, Max: 380},
	}
}

// GroupByVendor partitions transactions by counterparty id. Transactions
// without a vendor id cannot be attributed and are dropped. Each group is
// returned in chronological order.
func GroupByVendor(transactions []models.Transaction) map[string][]models.Transaction {
	groups := make(map[string][]models.Transaction)
	for _, txn := range transactions {
		if txn.VendorID == "" {
			continue
		}
		groups[txn.VendorID] = append(groups[txn.VendorID], txn)
	}
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			return group[i].TxnDate.Before(group[j].TxnDate)
		})
	}
	return groups
}

// AverageInterval returns the mean day-gap between consecutive transactions.
// A group with fewer than 2 transactions yields 0, meaning "insufficient
// data" rather than "same day". Transactions must be in chronological order.
func AverageInterval(transactions []models.Transaction) float64 {
	if len(transactions) < 2 {
		return 0
	}
	var totalDays float64
	for i := 1; i < len(transactions); i++ {
		gap := transactions[i].TxnDate.Sub(transactions[i-1].TxnDate)
		totalDays += gap.Hours() / hoursPerDay
	}
	return totalDays / float64(len(transactions)-1)
}

// AmountStdDev returns the population standard deviation of transaction amounts
func AmountStdDev(transactions []models.Transaction) float64 {
	if len(transactions) == 0 {
		return 0
	}
	var sum float64
	for _, txn := range transactions {
		sum += txn.TotalAmount.InexactFloat64()
	}
	mean := sum / float64(len(transactions))

	var variance float64
	for _, txn := range transactions {
		diff := txn.TotalAmount.InexactFloat64() - mean
		variance += diff * diff
	}
	variance /= float64(len(transactions))
	return math.Sqrt(variance)
}

// ClassifyFrequency maps an average interval in days onto a billing cadence.
// 0 signals insufficient data and always classifies as UNKNOWN.
func ClassifyFrequency(avgInterval float64, cfg Config) models.PaymentFrequency {
	switch {
	case avgInterval == 0:
		return models.FrequencyUnknown
	case cfg.MonthlyBand.Contains(avgInterval):
		return models.FrequencyMonthly
	case cfg.QuarterlyBand.Contains(avgInterval):
		return models.FrequencyQuarterly
	case cfg.AnnualBand.Contains(avgInterval):
		return models.FrequencyAnnual
	default:
		return models.FrequencyUnknown
	}
}

// Confidence scores how likely a vendor group represents a genuine recurring
// subscription, in [0,1]. It combines four independently capped signals:
// observed volume, cadence regularity, amount consistency and recency.
func Confidence(transactions []models.Transaction, amountStdDev float64, frequency models.PaymentFrequency, now time.Time) float64 {
	if len(transactions) == 0 {
		return 0
	}
	score := math.Min(float64(len(transactions))/volumeSaturation, 1) * volumeWeight

	if frequency != models.FrequencyUnknown {
		score += regularityWeight
	}

	var sum float64
	mostRecent := transactions[0].TxnDate
	for _, txn := range transactions {
		sum += txn.TotalAmount.InexactFloat64()
		if txn.TxnDate.After(mostRecent) {
			mostRecent = txn.TxnDate
		}
	}
	avgAmount := sum / float64(len(transactions))
	// A zero mean means maximal dispersion, not a division blow-up
	if avgAmount != 0 {
		dispersion := math.Min(amountStdDev/avgAmount, 1)
		score += (1 - dispersion) * consistencyWeight
	}

	daysSinceLast := now.Sub(mostRecent).Hours() / hoursPerDay
	score += math.Max(0, recencyWeight-(daysSinceLast/365)*recencyWeight)

	return math.Min(score, 1)
}

// AnalyzeTransactions runs the full detection pipeline over a raw transaction
// batch and returns one VendorAnalysis per attributable counterparty. The
// vendor name is taken from the most recent transaction in the group.
func AnalyzeTransactions(transactions []models.Transaction, now time.Time, cfg Config) []models.VendorAnalysis {
	groups := GroupByVendor(transactions)

	analyses := make([]models.VendorAnalysis, 0, len(groups))
	for vendorID, group := range groups {
		avgInterval := AverageInterval(group)
		stdDev := AmountStdDev(group)
		frequency := ClassifyFrequency(avgInterval, cfg)

		amounts := make([]decimal.Decimal, len(group))
		for i, txn := range group {
			amounts[i] = txn.TotalAmount
		}
		latest := group[len(group)-1]

		analyses = append(analyses, models.VendorAnalysis{
			VendorID:            vendorID,
			VendorName:          latest.VendorName,
			Transactions:        group,
			AverageAmount:       decimal.Avg(amounts[0], amounts[1:]...),
			PaymentFrequency:    frequency,
			Confidence:          Confidence(group, stdDev, frequency, now),
			LastTransactionDate: latest.TxnDate,
		})
	}
	return analyses
}
