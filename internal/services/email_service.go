package services

import (
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"akimat/internal/config"
	"akimat/internal/logger"
)

type EmailService interface {
	SendWelcomeEmail(email, fullName string) error
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailService struct {
	sender mailSender
	from   string
	log    zerolog.Logger
}

// NewEmailService returns a no-op sender when smtp_host is not configured.
func NewEmailService(cfg config.EmailConfig) EmailService {
	s := &emailService{from: cfg.FromEmail, log: logger.Component("notify")}
	if strings.TrimSpace(cfg.SMTPHost) != "" {
		s.sender = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	}
	return s
}

func (s *emailService) SendWelcomeEmail(email, fullName string) error {
	if s.sender == nil {
		s.log.Debug().Msg("smtp not configured, welcome email skipped")
		return nil
	}
	if strings.TrimSpace(email) == "" {
		return nil
	}
	name := strings.TrimSpace(fullName)
	if name == "" {
		name = email
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Добро пожаловать в систему обращений акимата")

	body := fmt.Sprintf(`
		<h2>Здравствуйте, %s!</h2>
		<p>Ваша учётная запись активирована.</p>
		<p>Теперь вы можете входить в систему с помощью ЭЦП или email.</p>
	`, html.EscapeString(name))
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	s.log.Info().Msg("welcome email sent")
	return nil
}
