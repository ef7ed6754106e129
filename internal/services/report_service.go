package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"gorm.io/gorm"

	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/repository"
	"github.com/creditiq/creditiq-api/internal/storage"
	"github.com/creditiq/creditiq-api/pkg/logger"
)

type ReportService struct {
	loanRepo  repository.LoanRepository
	auditRepo repository.AuditRepository
	userRepo  repository.UserRepository
	archive   *storage.LocalStorage
}

func NewReportService(
	loanRepo repository.LoanRepository,
	auditRepo repository.AuditRepository,
	userRepo repository.UserRepository,
	archive *storage.LocalStorage,
) *ReportService {
	return &ReportService{
		loanRepo:  loanRepo,
		auditRepo: auditRepo,
		userRepo:  userRepo,
		archive:   archive,
	}
}

// GenerateLoansCSV dumps applications matching the query, one row per
// application with its authoritative (latest) decision inline.
func (s *ReportService) GenerateLoansCSV(ctx context.Context, query *repository.LoanQuery) (*bytes.Buffer, error) {
	apps, _, err := s.loanRepo.List(ctx, query)
	if err != nil {
		return nil, err
	}

	b := &bytes.Buffer{}
	w := csv.NewWriter(b)

	header := []string{
		"ID", "Reference", "Applicant", "Email", "Status",
		"Income", "Loan Amount", "Tenure", "Employment", "Existing EMIs",
		"Credit Score", "Age", "Dependents", "Submitted At",
		"Decision", "Probability", "Risk Band", "Policy Reason",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, a := range apps {
		applicantName := "N/A"
		applicantEmail := "N/A"
		if a.User.ID != 0 {
			applicantName = a.User.FullName()
			applicantEmail = a.User.Email
		}

		submittedAt := ""
		if a.SubmittedAt != nil {
			submittedAt = a.SubmittedAt.Format("2006-01-02 15:04")
		}

		decision := ""
		probability := ""
		riskBand := ""
		policyReason := ""
		if len(a.Decisions) > 0 {
			d := a.Decisions[0]
			decision = d.Decision
			if d.Probability != nil {
				probability = fmt.Sprintf("%.4f", *d.Probability)
			}
			if d.RiskBand != nil {
				riskBand = *d.RiskBand
			}
			if d.PolicyReason != nil {
				policyReason = *d.PolicyReason
			}
		}

		record := []string{
			fmt.Sprintf("%d", a.ID),
			a.GUID,
			applicantName,
			applicantEmail,
			a.Status,
			fmt.Sprintf("%.2f", a.Income),
			fmt.Sprintf("%.2f", a.LoanAmount),
			fmt.Sprintf("%d", a.Tenure),
			a.EmploymentType,
			fmt.Sprintf("%.2f", a.ExistingEmis),
			fmt.Sprintf("%d", a.CreditScore),
			fmt.Sprintf("%d", a.Age),
			fmt.Sprintf("%d", a.Dependents),
			submittedAt,
			decision,
			probability,
			riskBand,
			policyReason,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return b, nil
}

// GenerateAuditCSV dumps the audit trail matching the query
func (s *ReportService) GenerateAuditCSV(ctx context.Context, query *repository.AuditQuery) (*bytes.Buffer, error) {
	logs, _, err := s.auditRepo.List(ctx, query)
	if err != nil {
		return nil, err
	}

	b := &bytes.Buffer{}
	w := csv.NewWriter(b)

	header := []string{"ID", "Timestamp", "Actor", "Action", "Entity", "Entity ID", "Metadata"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, l := range logs {
		actor := "system"
		if l.Actor != nil {
			actor = l.Actor.Email
		} else if l.ActorID != nil {
			actor = fmt.Sprintf("%d", *l.ActorID)
		}

		metadata := ""
		if len(l.Metadata) > 0 {
			metadata = fmt.Sprintf("%v", l.Metadata)
		}

		record := []string{
			fmt.Sprintf("%d", l.ID),
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			actor,
			l.Action,
			l.EntityType,
			fmt.Sprintf("%d", l.EntityID),
			metadata,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return b, nil
}

// PortfolioStats aggregates application counts and risk band spread
type PortfolioStats struct {
	Applications *repository.LoanStats `json:"applications"`
	RiskBands    map[string]int64      `json:"risk_bands"`
	ApprovalRate float64               `json:"approval_rate"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

// GetPortfolioStats combines status counts with the risk band distribution
func (s *ReportService) GetPortfolioStats(ctx context.Context) (*PortfolioStats, error) {
	stats, err := s.loanRepo.GetStats(ctx)
	if err != nil {
		return nil, err
	}

	bands, err := s.loanRepo.GetRiskBandDistribution(ctx)
	if err != nil {
		return nil, err
	}

	approvalRate := 0.0
	decided := stats.Approved + stats.Rejected
	if decided > 0 {
		approvalRate = float64(stats.Approved) / float64(decided) * 100
	}

	return &PortfolioStats{
		Applications: stats,
		RiskBands:    bands,
		ApprovalRate: approvalRate,
		GeneratedAt:  time.Now(),
	}, nil
}

// GenerateLoanReportPDF renders a single application with its decision
// history into a PDF
func (s *ReportService) GenerateLoanReportPDF(ctx context.Context, applicationID uint) (*bytes.Buffer, error) {
	app, err := s.loanRepo.FindByIDWithDecisions(ctx, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	type DecisionData struct {
		Decision     string
		Probability  string
		RiskBand     string
		PolicyPassed string
		PolicyReason string
		ModelVersion string
		CreatedAt    string
	}

	type ReportData struct {
		App       *models.LoanApplication
		Applicant string
		Email     string
		DTI       string
		Submitted string
		Date      string
		Decisions []DecisionData
	}

	submitted := "not submitted"
	if app.SubmittedAt != nil {
		submitted = app.SubmittedAt.Format("02/01/2006 15:04")
	}

	var decisions []DecisionData
	for _, d := range app.Decisions {
		dd := DecisionData{
			Decision:     d.Decision,
			Probability:  "n/a",
			RiskBand:     "n/a",
			PolicyPassed: "no",
			PolicyReason: "",
			ModelVersion: "n/a",
			CreatedAt:    d.CreatedAt.Format("02/01/2006 15:04"),
		}
		if d.Probability != nil {
			dd.Probability = fmt.Sprintf("%.4f", *d.Probability)
		}
		if d.RiskBand != nil {
			dd.RiskBand = *d.RiskBand
		}
		if d.PolicyPassed {
			dd.PolicyPassed = "yes"
		}
		if d.PolicyReason != nil {
			dd.PolicyReason = *d.PolicyReason
		}
		if d.ModelVersion != nil {
			dd.ModelVersion = *d.ModelVersion
		}
		decisions = append(decisions, dd)
	}

	data := ReportData{
		App:       app,
		Applicant: app.User.FullName(),
		Email:     app.User.Email,
		DTI:       fmt.Sprintf("%.2f%%", app.DebtToIncomeRatio()),
		Submitted: submitted,
		Date:      time.Now().Format("02/01/2006"),
		Decisions: decisions,
	}

	buf, err := s.generatePDF("loan_report.html", data)
	if err != nil {
		return nil, err
	}

	// Keep an archived copy; failures here never block the download
	if s.archive != nil {
		filename := fmt.Sprintf("loan_application_%d.pdf", app.ID)
		if _, err := s.archive.Save(buf.Bytes(), filename, "reports"); err != nil {
			logger.Warn("Failed to archive loan report", "application_id", app.ID, "error", err)
		}
	}

	return buf, nil
}

// Helper to generate PDF from HTML template
func (s *ReportService) generatePDF(templateName string, data interface{}) (*bytes.Buffer, error) {
	// Path relative to project root, with a package-relative fallback
	// so tests resolve the template too
	tmplPath := fmt.Sprintf("internal/services/templates/reports/%s", templateName)
	if _, err := os.Stat(tmplPath); os.IsNotExist(err) {
		tmplPath = fmt.Sprintf("templates/reports/%s", templateName)
	}

	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s (path: %s): %w", templateName, tmplPath, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.Grayscale.Set(false)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(buf.Bytes()))
	page.EnableLocalFileAccess.Set(true)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create pdf: %w", err)
	}

	return pdfg.Buffer(), nil
}
