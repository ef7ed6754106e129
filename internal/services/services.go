package services

import (
	"github.com/creditiq/creditiq-api/internal/config"
	"github.com/creditiq/creditiq-api/internal/jobs"
	"github.com/creditiq/creditiq-api/internal/repository"
	"github.com/creditiq/creditiq-api/internal/storage"
)

// Services holds all service instances
type Services struct {
	Auth         *AuthService
	User         *UserService
	Loan         *LoanService
	ML           *MLService
	Notification *NotificationService
	Report       *ReportService
	Export       *ExportService
	Audit        *AuditService
	Email        *EmailService
	ModelVersion *ModelVersionService
	Job          *JobService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, archive *storage.LocalStorage, cfg *config.Config) *Services {
	notificationSvc := NewNotificationService(repos.Notification, repos.User)
	emailSvc := NewEmailService(cfg)
	auditSvc := NewAuditService(repos.Audit)
	mlSvc := NewMLService(cfg)
	modelVersionSvc := NewModelVersionService(repos.ModelVersion)
	reportSvc := NewReportService(repos.Loan, repos.Audit, repos.User, archive)

	return &Services{
		Auth:         NewAuthService(repos.User, repos.RefreshToken, auditSvc, emailSvc, worker, cfg),
		User:         NewUserService(repos.User),
		Loan:         NewLoanService(repos.Loan, repos.User, mlSvc, auditSvc, notificationSvc, emailSvc, modelVersionSvc, worker),
		ML:           mlSvc,
		Notification: notificationSvc,
		Report:       reportSvc,
		Export:       NewExportService(repos.Loan, reportSvc),
		Audit:        auditSvc,
		Email:        emailSvc,
		ModelVersion: modelVersionSvc,
		Job:          NewJobService(worker),
	}
}
