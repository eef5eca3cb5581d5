package scheduler

import (
	"time"

	"github.com/lmoretti/finance-service/internal/config"
	"github.com/lmoretti/finance-service/internal/service"
	"github.com/lmoretti/finance-service/internal/utils/email"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs the periodic jobs: due-reminder notifications and the
// companion reminder repair pass
type Scheduler struct {
	cron   *cron.Cron
	svc    *service.Service
	sender *email.Sender
	cfg    *config.Config
	log    *logrus.Logger
}

// NewScheduler initializes a new scheduler
func NewScheduler(svc *service.Service, sender *email.Sender, cfg *config.Config, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		svc:    svc,
		sender: sender,
		cfg:    cfg,
		log:    log,
	}
}

// Start registers the cron jobs and begins running them
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.ReminderCron, s.notifyDueReminders); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.RepairCron, s.repairReminders); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Infof("Scheduler started (reminders: %q, repair: %q)", s.cfg.ReminderCron, s.cfg.RepairCron)
	return nil
}

// Stop halts the cron scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) notifyDueReminders() {
	if s.cfg.NotifyEmail == "" {
		s.log.Debug("NOTIFY_EMAIL not configured, skipping reminder notifications")
		return
	}

	horizon := time.Duration(s.cfg.ReminderHorizonDays) * 24 * time.Hour
	reminders, err := s.svc.ListDueReminders(horizon)
	if err != nil {
		s.log.Errorf("Failed to list due reminders: %v", err)
		return
	}

	now := time.Now()
	for _, rem := range reminders {
		overdue := rem.DueDate.Before(now)
		if err := s.sender.SendReminderDue(s.cfg.NotifyEmail, rem.Title, rem.Amount, rem.DueDate, overdue); err != nil {
			s.log.Errorf("Failed to notify reminder %d: %v", rem.ID, err)
		}
	}
}

func (s *Scheduler) repairReminders() {
	if _, err := s.svc.RepairReminders(); err != nil {
		s.log.Errorf("Reminder repair pass failed: %v", err)
	}
}
