package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/lmoretti/finance-service/internal/config"
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

// SendReminderDue sends a notification for an upcoming or overdue reminder
func (s *Sender) SendReminderDue(to, title string, amount decimal.Decimal, dueDate time.Time, isOverdue bool) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	if isOverdue {
		e.Subject = fmt.Sprintf("Overdue payment: %s", title)
	} else {
		e.Subject = fmt.Sprintf("Upcoming payment: %s", title)
	}

	body := "Hello,\n\n"
	if isOverdue {
		body += fmt.Sprintf(
			"The payment %q of %s was due on %s and is still open.\n"+
				"Please settle it or adjust the reminder.\n",
			title, amount.StringFixed(2), dueDate.Format("2006-01-02"),
		)
	} else {
		body += fmt.Sprintf(
			"This is a reminder that the payment %q of %s is due on %s.\n",
			title, amount.StringFixed(2), dueDate.Format("2006-01-02"),
		)
	}
	body += "\nBest regards,\nFinance Service"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
