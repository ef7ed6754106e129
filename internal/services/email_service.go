package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"

	"github.com/creditiq/creditiq-api/internal/config"
	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/pkg/logger"
)

//go:embed templates/email/*.html
var emailTemplates embed.FS

// EmailService sends transactional email through Resend. When no API
// key is configured the service logs and skips, so local environments
// work without outbound mail.
type EmailService struct {
	config       *config.Config
	resendClient *resend.Client
}

func NewEmailService(cfg *config.Config) *EmailService {
	client := resend.NewClient(cfg.ResendAPIKey)
	return &EmailService{
		config:       cfg,
		resendClient: client,
	}
}

func (s *EmailService) enabled() bool {
	return s.config.ResendAPIKey != ""
}

func (s *EmailService) SendWelcomeEmail(ctx context.Context, user *models.User) error {
	data := struct {
		Name   string
		AppURL string
	}{
		Name:   user.FullName(),
		AppURL: s.config.AppURL,
	}

	return s.send(user.Email, "Welcome to CreditIQ", "welcome.html", data)
}

func (s *EmailService) SendLoanSubmissionEmail(ctx context.Context, user *models.User, applicationID uint) error {
	data := struct {
		Name          string
		ApplicationID uint
		AppURL        string
	}{
		Name:          user.FullName(),
		ApplicationID: applicationID,
		AppURL:        s.config.AppURL,
	}

	return s.send(user.Email, "Loan application received", "loan_submitted.html", data)
}

func (s *EmailService) SendLoanDecisionEmail(ctx context.Context, user *models.User, applicationID uint, outcome string) error {
	headline := "Your loan application was rejected"
	if outcome == models.DecisionApproved {
		headline = "Your loan application was approved"
	}

	data := struct {
		Name          string
		ApplicationID uint
		Outcome       string
		Headline      string
		AppURL        string
	}{
		Name:          user.FullName(),
		ApplicationID: applicationID,
		Outcome:       outcome,
		Headline:      headline,
		AppURL:        s.config.AppURL,
	}

	return s.send(user.Email, headline, "loan_decision.html", data)
}

func (s *EmailService) send(to, subject, templateName string, data interface{}) error {
	if !s.enabled() {
		logger.Warn(fmt.Sprintf("Email service not configured, skipping email to %s: %s", to, subject))
		return nil
	}

	body, err := s.renderTemplate(templateName, data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	if _, err := s.resendClient.Emails.Send(params); err != nil {
		logger.Error(fmt.Sprintf("Failed to send email to %s: %v", to, err))
		return err
	}

	logger.Info(fmt.Sprintf("📧 [Email Sent] To: %s | Subject: %s", to, subject))
	return nil
}

func (s *EmailService) renderTemplate(name string, data interface{}) (string, error) {
	tmpl, err := template.ParseFS(emailTemplates, "templates/email/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}
