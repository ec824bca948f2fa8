package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single purchase pulled from the accounting integration
type Transaction struct {
	TxnDate     time.Time       `json:"txn_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	VendorID    string          `json:"vendor_id"`
	VendorName  string          `json:"vendor_name"`
}
