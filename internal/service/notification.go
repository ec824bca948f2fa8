package service

import (
	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/sirupsen/logrus"
)

// notificationPageSize caps the dashboard bell to recent history
const notificationPageSize = 100

// NotificationStore is the persistence surface for in-app notifications
type NotificationStore interface {
	FindCompanyForUser(userID string) (*models.Company, error)
	ListNotifications(companyID string, limit int) ([]models.Notification, error)
	MarkNotificationRead(id, companyID string) error
	MarkAllNotificationsRead(companyID string) error
	DeleteNotification(id, companyID string) error
}

// NotificationService serves the dashboard notification bell
type NotificationService struct {
	store NotificationStore
	log   *logrus.Logger
}

// NewNotificationService initializes the notification service
func NewNotificationService(store NotificationStore, log *logrus.Logger) *NotificationService {
	return &NotificationService{store: store, log: log}
}

// List returns the latest notifications for the user's company
func (s *NotificationService) List(userID string) ([]models.Notification, error) {
	company, err := s.store.FindCompanyForUser(userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListNotifications(company.ID, notificationPageSize)
}

// MarkRead marks one notification as read
func (s *NotificationService) MarkRead(userID, notificationID string) error {
	company, err := s.store.FindCompanyForUser(userID)
	if err != nil {
		return err
	}
	return s.store.MarkNotificationRead(notificationID, company.ID)
}

// MarkAllRead marks every notification in the user's company as read
func (s *NotificationService) MarkAllRead(userID string) error {
	company, err := s.store.FindCompanyForUser(userID)
	if err != nil {
		return err
	}
	return s.store.MarkAllNotificationsRead(company.ID)
}

// Delete removes a notification
func (s *NotificationService) Delete(userID, notificationID string) error {
	company, err := s.store.FindCompanyForUser(userID)
	if err != nil {
		return err
	}
	return s.store.DeleteNotification(notificationID, company.ID)
}
