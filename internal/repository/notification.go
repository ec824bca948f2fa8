package repository

import (
	"encoding/json"
	"fmt"

	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/google/uuid"
)

// CreateNotification inserts an in-app notification for a company
func (r *Repository) CreateNotification(n *models.Notification) error {
	n.ID = uuid.NewString()
	var data []byte
	if n.Data != nil {
		encoded, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("failed to encode notification data: %w", err)
		}
		data = encoded
	}
	query := `
		INSERT INTO sprawl.notifications (id, company_id, type, title, message, read, data, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := r.db.QueryRow(query, n.ID, n.CompanyID, n.Type, n.Title, n.Message, data).
		Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns a company's latest notifications, newest first
func (r *Repository) ListNotifications(companyID string, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, company_id, type, title, message, read, data, created_at
		FROM sprawl.notifications
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.Query(query, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.CompanyID, &n.Type, &n.Title, &n.Message,
			&n.Read, &data, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, fmt.Errorf("failed to decode notification data: %w", err)
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks a single notification as read
func (r *Repository) MarkNotificationRead(id, companyID string) error {
	result, err := r.db.Exec(`
		UPDATE sprawl.notifications SET read = true
		WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}

// MarkAllNotificationsRead marks every notification in the company as read
func (r *Repository) MarkAllNotificationsRead(companyID string) error {
	_, err := r.db.Exec(`UPDATE sprawl.notifications SET read = true WHERE company_id = $1`, companyID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// DeleteNotification removes a notification
func (r *Repository) DeleteNotification(id, companyID string) error {
	result, err := r.db.Exec(`
		DELETE FROM sprawl.notifications WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}
