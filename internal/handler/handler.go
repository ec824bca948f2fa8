package handler

import (
	"encoding/json"
	"net/http"

	"github.com/billkie/saas-sprawl/internal/middleware"
	"github.com/billkie/saas-sprawl/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handler exposes the HTTP API
type Handler struct {
	auth          *service.AuthService
	subscriptions *service.SubscriptionService
	notifications *service.NotificationService
	dashboard     *service.DashboardService
	sync          *service.SyncService
	renewals      *service.RenewalService
	log           *logrus.Logger
}

func NewHandler(auth *service.AuthService, subscriptions *service.SubscriptionService,
	notifications *service.NotificationService, dashboard *service.DashboardService,
	sync *service.SyncService, renewals *service.RenewalService, log *logrus.Logger) *Handler {
	return &Handler{
		auth:          auth,
		subscriptions: subscriptions,
		notifications: notifications,
		dashboard:     dashboard,
		sync:          sync,
		renewals:      renewals,
		log:           log,
	}
}

type signupRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Password    string `json:"password"`
	CompanyName string `json:"company_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles user registration
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.CompanyName == "" {
		respondError(w, http.StatusBadRequest, "email, password and company_name are required")
		return
	}

	user, err := h.auth.Signup(req.Email, req.Name, req.Password, req.CompanyName)
	if err != nil {
		h.log.Errorf("Signup failed for %s: %v", req.Email, err)
		respondError(w, http.StatusConflict, "could not create user")
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ListSubscriptions returns the caller's company subscriptions
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscriptions.List(middleware.UserID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, subs)
}

// CreateSubscription records a manually tracked subscription
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var input service.CreateSubscriptionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.VendorName == "" {
		respondError(w, http.StatusBadRequest, "vendor_name is required")
		return
	}

	sub, err := h.subscriptions.Create(middleware.UserID(r), input)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

// UpdateSubscription edits a subscription's user-managed fields
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateSubscriptionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.subscriptions.Update(middleware.UserID(r), mux.Vars(r)["id"], input)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// DeleteSubscription removes a subscription
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.subscriptions.Delete(middleware.UserID(r), mux.Vars(r)["id"]); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNotifications returns the caller's recent notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.notifications.List(middleware.UserID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, notifications)
}

// MarkNotificationRead marks a single notification as read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkRead(middleware.UserID(r), mux.Vars(r)["id"]); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead marks every notification of the caller as read
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkAllRead(middleware.UserID(r)); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNotification removes a notification
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.Delete(middleware.UserID(r), mux.Vars(r)["id"]); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DashboardSummary returns aggregate spend for the caller's company
func (h *Handler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboard.Summary(middleware.UserID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// TriggerSync runs the integration syncs on demand
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	quickbooks := h.sync.SyncQuickBooks(r.Context())
	workspace := h.sync.SyncGoogleWorkspace(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"quickbooks": quickbooks,
		"workspace":  workspace,
	})
}

// TriggerRenewalCheck runs the renewal notification pass on demand
func (h *Handler) TriggerRenewalCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.renewals.CheckRenewals())
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
