package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/billkie/saas-sprawl/internal/config"
	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// RenewalData carries the template data for a renewal reminder
type RenewalData struct {
	CompanyName      string
	VendorName       string
	Amount           decimal.Decimal
	Currency         string
	RenewalDate      time.Time
	DaysUntilRenewal int
}

// SendRenewalReminder sends a renewal reminder email. The subject and body
// distinguish upcoming, due-today and overdue renewals.
func (s *Sender) SendRenewalReminder(to, userName string, data RenewalData) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}

	switch {
	case data.DaysUntilRenewal < 0:
		e.Subject = fmt.Sprintf("Overdue: %s renewal", data.VendorName)
	case data.DaysUntilRenewal == 0:
		e.Subject = fmt.Sprintf("Due today: %s renewal", data.VendorName)
	default:
		e.Subject = fmt.Sprintf("Upcoming renewal: %s", data.VendorName)
	}

	body := fmt.Sprintf("Dear %s,\n\n", userName)
	amount := fmt.Sprintf("%s %s", data.Amount.StringFixed(2), data.Currency)
	renewalDate := data.RenewalDate.Format("2006-01-02")
	switch {
	case data.DaysUntilRenewal < 0:
		body += fmt.Sprintf(
			"The %s subscription for %s (%s) was due to renew on %s and is now overdue.\n"+
				"Review it in your dashboard if this charge was expected.\n",
			data.VendorName, data.CompanyName, amount, renewalDate,
		)
	case data.DaysUntilRenewal == 0:
		body += fmt.Sprintf(
			"The %s subscription for %s renews today for %s.\n",
			data.VendorName, data.CompanyName, amount,
		)
	default:
		body += fmt.Sprintf(
			"The %s subscription for %s renews in %d days, on %s, for %s.\n"+
				"Cancel before the renewal date if you no longer need it.\n",
			data.VendorName, data.CompanyName, data.DaysUntilRenewal, renewalDate, amount,
		)
	}
	body += "\nBest regards,\nSaaS Sprawl"
	e.Text = []byte(body)

	return s.send(e)
}

// SyncStats summarizes one integration sync for notification emails
type SyncStats struct {
	NewItems       int
	UpdatedItems   int
	TotalProcessed int
}

// SendSyncSuccess notifies a company admin that an integration sync completed
func (s *Sender) SendSyncSuccess(to, userName, companyName, integrationType string, stats SyncStats) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("%s sync completed for %s", integrationType, companyName)

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"The %s sync for %s finished successfully on %s.\n"+
			"New subscriptions: %d\n"+
			"Updated subscriptions: %d\n"+
			"Vendors processed: %d\n"+
			"\nBest regards,\nSaaS Sprawl",
		userName, integrationType, companyName,
		time.Now().Format("2006-01-02 15:04:05"),
		stats.NewItems, stats.UpdatedItems, stats.TotalProcessed,
	)
	e.Text = []byte(body)

	return s.send(e)
}

// SendSyncFailure notifies a company admin that an integration sync failed
func (s *Sender) SendSyncFailure(to, userName, companyName, integrationType, errorDetails string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("%s sync failed for %s", integrationType, companyName)

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"The %s sync for %s failed on %s.\n"+
			"Details: %s\n"+
			"The sync will be retried on the next scheduled run.\n"+
			"\nBest regards,\nSaaS Sprawl",
		userName, integrationType, companyName,
		time.Now().Format("2006-01-02 15:04:05"), errorDetails,
	)
	e.Text = []byte(body)

	return s.send(e)
}

func (s *Sender) send(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %v: %v", e.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Infof("Email sent to %v: %s", e.To, e.Subject)
	return nil
}
