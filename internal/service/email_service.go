package service

import (
	"fmt"
	"time"
	"video_edu_backend/internal/config"
	"video_edu_backend/pkg/logger"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const emailMaxAttempts = 3

// EmailService 发送通知邮件。纯尽力而为：失败只记日志，
// 不会影响进度写入或证书签发
type EmailService struct {
	cfg    *config.EmailConfig
	client *sendgrid.Client
}

func NewEmailService(cfg *config.Config) *EmailService {
	svc := &EmailService{cfg: &cfg.Email}
	if cfg.Email.SendGridKey != "" {
		svc.client = sendgrid.NewSendClient(cfg.Email.SendGridKey)
	}
	return svc
}

func (s *EmailService) IsConfigured() bool {
	return s.client != nil
}

func (s *EmailService) Send(to, subject, body string) error {
	if s.client == nil {
		return fmt.Errorf("email service not configured")
	}

	from := mail.NewEmail(s.cfg.FromName, s.cfg.FromAddress)
	message := mail.NewSingleEmailPlainText(from, subject, mail.NewEmail("", to), body)

	resp, err := s.client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}

// SendAsync 后台发送，最多重试 emailMaxAttempts 次，间隔递增
func (s *EmailService) SendAsync(to, subject, body string) {
	if s.client == nil {
		return
	}

	go func() {
		for attempt := 1; attempt <= emailMaxAttempts; attempt++ {
			err := s.Send(to, subject, body)
			if err == nil {
				logger.Log.Info("notification email sent", zap.String("to", to), zap.String("subject", subject))
				return
			}

			logger.Log.Warn("notification email failed",
				zap.String("to", to), zap.Int("attempt", attempt), zap.Error(err))

			if attempt < emailMaxAttempts {
				time.Sleep(time.Duration(attempt) * 2 * time.Second)
			}
		}
	}()
}
