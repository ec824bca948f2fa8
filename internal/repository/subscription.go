package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const subscriptionColumns = `
	id, company_id, vendor_name, quickbooks_vendor_id, monthly_amount,
	annual_amount, last_charge_amount, currency, payment_frequency,
	next_charge_date, last_transaction_date, auto_renewal, notify_before,
	status, source, description, website, category, tags, notes,
	confidence_score, last_synced_at, last_notified_charge_date,
	created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var (
		vendorID                 sql.NullString
		nextCharge, lastTxn      sql.NullTime
		lastSynced, lastNotified sql.NullTime
		description, website     sql.NullString
		category, notes          sql.NullString
	)
	err := row.Scan(
		&sub.ID, &sub.CompanyID, &sub.VendorName, &vendorID, &sub.MonthlyAmount,
		&sub.AnnualAmount, &sub.LastChargeAmount, &sub.Currency, &sub.PaymentFrequency,
		&nextCharge, &lastTxn, &sub.AutoRenewal, &sub.NotifyBefore,
		&sub.Status, &sub.Source, &description, &website, &category,
		pq.Array(&sub.Tags), &notes, &sub.ConfidenceScore, &lastSynced,
		&lastNotified, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.QuickBooksVendorID = vendorID.String
	sub.NextChargeDate = timePtr(nextCharge)
	sub.LastTransactionDate = timePtr(lastTxn)
	sub.LastSyncedAt = timePtr(lastSynced)
	sub.LastNotifiedChargeDate = timePtr(lastNotified)
	sub.Description = description.String
	sub.Website = website.String
	sub.Category = category.String
	sub.Notes = notes.String
	return sub, nil
}

// FindSubscriptionByVendor looks up a subscription by its integration vendor
// key within a company. Returns (nil, nil) when no row exists, so callers can
// branch create-or-update explicitly.
func (r *Repository) FindSubscriptionByVendor(companyID, quickbooksVendorID string) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM sprawl.subscriptions
		WHERE company_id = $1 AND quickbooks_vendor_id = $2`
	sub, err := scanSubscription(r.db.QueryRow(query, companyID, quickbooksVendorID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

// FindSubscriptionByID retrieves a subscription scoped to a company
func (r *Repository) FindSubscriptionByID(id, companyID string) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM sprawl.subscriptions
		WHERE id = $1 AND company_id = $2`
	sub, err := scanSubscription(r.db.QueryRow(query, id, companyID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subscription not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptions returns all of a company's subscriptions ordered by
// status then upcoming charge date
func (r *Repository) ListSubscriptions(companyID string) ([]models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM sprawl.subscriptions
		WHERE company_id = $1
		ORDER BY status ASC, next_charge_date ASC NULLS LAST`
	rows, err := r.db.Query(query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// ListActiveSubscriptionsDue returns every ACTIVE subscription with a known
// next charge date, across all companies. This is the renewal scheduler's scan.
func (r *Repository) ListActiveSubscriptionsDue() ([]models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM sprawl.subscriptions
		WHERE status = $1 AND next_charge_date IS NOT NULL`
	rows, err := r.db.Query(query, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// CreateSubscription inserts a new subscription row
func (r *Repository) CreateSubscription(sub *models.Subscription) error {
	sub.ID = uuid.NewString()
	if sub.Tags == nil {
		sub.Tags = []string{}
	}
	query := `
		INSERT INTO sprawl.subscriptions (
			id, company_id, vendor_name, quickbooks_vendor_id, monthly_amount,
			annual_amount, last_charge_amount, currency, payment_frequency,
			next_charge_date, last_transaction_date, auto_renewal, notify_before,
			status, source, description, website, category, tags, notes,
			confidence_score, last_synced_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP
		)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(query,
		sub.ID, sub.CompanyID, sub.VendorName, nullString(sub.QuickBooksVendorID),
		sub.MonthlyAmount, sub.AnnualAmount, sub.LastChargeAmount, sub.Currency,
		sub.PaymentFrequency, nullTime(sub.NextChargeDate), nullTime(sub.LastTransactionDate),
		sub.AutoRenewal, sub.NotifyBefore, sub.Status, sub.Source,
		nullString(sub.Description), nullString(sub.Website), nullString(sub.Category),
		pq.Array(sub.Tags), nullString(sub.Notes), sub.ConfidenceScore,
		nullTime(sub.LastSyncedAt),
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// UpdateSubscriptionSyncFields updates only the fields reconciliation owns.
// User overlay fields (description, website, category, tags, notes) are
// deliberately absent from the statement so sync can never clobber them.
func (r *Repository) UpdateSubscriptionSyncFields(sub *models.Subscription) error {
	query := `
		UPDATE sprawl.subscriptions
		SET vendor_name = $1, monthly_amount = $2, annual_amount = $3,
			last_charge_amount = $4, payment_frequency = $5,
			next_charge_date = $6, last_transaction_date = $7,
			confidence_score = $8, last_synced_at = $9,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $10`
	_, err := r.db.Exec(query,
		sub.VendorName, sub.MonthlyAmount, sub.AnnualAmount, sub.LastChargeAmount,
		sub.PaymentFrequency, nullTime(sub.NextChargeDate), nullTime(sub.LastTransactionDate),
		sub.ConfidenceScore, nullTime(sub.LastSyncedAt), sub.ID)
	if err != nil {
		return fmt.Errorf("failed to update subscription sync fields: %w", err)
	}
	return nil
}

// UpdateSubscription applies a user edit to a subscription
func (r *Repository) UpdateSubscription(sub *models.Subscription) error {
	if sub.Tags == nil {
		sub.Tags = []string{}
	}
	query := `
		UPDATE sprawl.subscriptions
		SET vendor_name = $1, monthly_amount = $2, annual_amount = $3,
			currency = $4, payment_frequency = $5, next_charge_date = $6,
			auto_renewal = $7, notify_before = $8, status = $9,
			description = $10, website = $11, category = $12, tags = $13,
			notes = $14, updated_at = CURRENT_TIMESTAMP
		WHERE id = $15 AND company_id = $16`
	_, err := r.db.Exec(query,
		sub.VendorName, sub.MonthlyAmount, sub.AnnualAmount, sub.Currency,
		sub.PaymentFrequency, nullTime(sub.NextChargeDate), sub.AutoRenewal,
		sub.NotifyBefore, sub.Status, nullString(sub.Description),
		nullString(sub.Website), nullString(sub.Category), pq.Array(sub.Tags),
		nullString(sub.Notes), sub.ID, sub.CompanyID)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// DeleteSubscription removes a subscription row. Only explicit user deletion
// goes through here; the sync path retires subscriptions by status instead.
func (r *Repository) DeleteSubscription(id, companyID string) error {
	result, err := r.db.Exec(`DELETE FROM sprawl.subscriptions WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("subscription not found")
	}
	return nil
}

// SetLastNotifiedChargeDate records which charge occurrence a renewal
// reminder was sent for
func (r *Repository) SetLastNotifiedChargeDate(subscriptionID string, chargeDate time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sprawl.subscriptions
		SET last_notified_charge_date = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`, chargeDate, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to record notified charge date: %w", err)
	}
	return nil
}
