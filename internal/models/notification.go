package models

import "time"

// NotificationType classifies an in-app notification
type NotificationType string

const (
	NotificationRenewal   NotificationType = "renewal"
	NotificationDiscovery NotificationType = "discovery"
	NotificationSystem    NotificationType = "system"
)

// Notification is an in-app notification shown on the dashboard bell
type Notification struct {
	ID        string           `json:"id"`
	CompanyID string           `json:"company_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	Data      map[string]any   `json:"data,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
