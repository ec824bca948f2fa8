package scheduler

import (
	"context"

	"github.com/billkie/saas-sprawl/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs the periodic sync and renewal jobs. Integration syncs run
// nightly at midnight; renewal reminders go out at 08:00 so they land at the
// start of the working day.
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Logger
}

func New(sync *service.SyncService, renewals *service.RenewalService, log *logrus.Logger) (*Scheduler, error) {
	c := cron.New()

	_, err := c.AddFunc("0 0 * * *", func() {
		log.Info("Starting scheduled integration sync")
		qb := sync.SyncQuickBooks(context.Background())
		ws := sync.SyncGoogleWorkspace(context.Background())
		log.Infof("Integration sync finished: quickbooks %d/%d ok, workspace %d/%d ok",
			qb.Success, qb.Total, ws.Success, ws.Total)
	})
	if err != nil {
		return nil, err
	}

	_, err = c.AddFunc("0 8 * * *", func() {
		log.Info("Starting scheduled renewal check")
		results := renewals.CheckRenewals()
		log.Infof("Renewal check finished: %d notifications scheduled, %d errors",
			results.NotificationsScheduled, len(results.Errors))
	})
	if err != nil {
		return nil, err
	}

	return &Scheduler{cron: c, log: log}, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.log.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}
