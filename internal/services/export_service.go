package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/repository"
)

// ExportService renders portfolio-level exports in spreadsheet and
// document formats
type ExportService struct {
	loanRepo  repository.LoanRepository
	reportSvc *ReportService
}

func NewExportService(loanRepo repository.LoanRepository, reportSvc *ReportService) *ExportService {
	return &ExportService{loanRepo: loanRepo, reportSvc: reportSvc}
}

// ExportStatsCSV writes the portfolio summary as CSV
func (s *ExportService) ExportStatsCSV(ctx context.Context) ([]byte, string, error) {
	stats, err := s.reportSvc.GetPortfolioStats(ctx)
	if err != nil {
		return nil, "", err
	}

	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	_ = writer.Write([]string{"Portfolio Report", time.Now().Format("2006-01-02 15:04")})
	_ = writer.Write([]string{""})

	_ = writer.Write([]string{"Applications by Status"})
	_ = writer.Write([]string{"Status", "Count"})
	_ = writer.Write([]string{"Draft", fmt.Sprintf("%d", stats.Applications.Draft)})
	_ = writer.Write([]string{"Submitted", fmt.Sprintf("%d", stats.Applications.Submitted)})
	_ = writer.Write([]string{"Under Review", fmt.Sprintf("%d", stats.Applications.UnderReview)})
	_ = writer.Write([]string{"Approved", fmt.Sprintf("%d", stats.Applications.Approved)})
	_ = writer.Write([]string{"Rejected", fmt.Sprintf("%d", stats.Applications.Rejected)})
	_ = writer.Write([]string{"Total", fmt.Sprintf("%d", stats.Applications.Total)})
	_ = writer.Write([]string{""})

	_ = writer.Write([]string{"Risk Band Distribution"})
	_ = writer.Write([]string{"Band", "Count"})
	for _, band := range []string{models.RiskBandLow, models.RiskBandMedium, models.RiskBandHigh} {
		_ = writer.Write([]string{band, fmt.Sprintf("%d", stats.RiskBands[band])})
	}
	_ = writer.Write([]string{""})
	_ = writer.Write([]string{"Approval Rate", fmt.Sprintf("%.2f%%", stats.ApprovalRate)})

	writer.Flush()

	filename := fmt.Sprintf("portfolio_report_%s.csv", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// ExportLoansXLSX writes the decision book: every application matching
// the query as a spreadsheet row
func (s *ExportService) ExportLoansXLSX(ctx context.Context, query *repository.LoanQuery) ([]byte, string, error) {
	apps, _, err := s.loanRepo.List(ctx, query)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Applications"
	_ = f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	headers := []string{"ID", "Reference", "Applicant", "Status", "Income", "Loan Amount",
		"Tenure", "Credit Score", "Decision", "Probability", "Risk Band"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
		_ = f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for row, a := range apps {
		applicant := ""
		if a.User.ID != 0 {
			applicant = a.User.FullName()
		}

		decision := ""
		var probability any
		riskBand := ""
		if len(a.Decisions) > 0 {
			d := a.Decisions[0]
			decision = d.Decision
			if d.Probability != nil {
				probability = *d.Probability
			}
			if d.RiskBand != nil {
				riskBand = *d.RiskBand
			}
		}

		values := []any{a.ID, a.GUID, applicant, a.Status, a.Income, a.LoanAmount,
			a.Tenure, a.CreditScore, decision, probability, riskBand}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("loan_applications_%s.xlsx", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}

// ExportStatsPDF writes the portfolio summary as a one-page PDF
func (s *ExportService) ExportStatsPDF(ctx context.Context) ([]byte, string, error) {
	stats, err := s.reportSvc.GetPortfolioStats(ctx)
	if err != nil {
		return nil, "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Portfolio Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 10, "Applications by Status")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	rows := []struct {
		label string
		value int64
	}{
		{"Draft", stats.Applications.Draft},
		{"Submitted", stats.Applications.Submitted},
		{"Under Review", stats.Applications.UnderReview},
		{"Approved", stats.Applications.Approved},
		{"Rejected", stats.Applications.Rejected},
		{"Total", stats.Applications.Total},
	}
	for _, r := range rows {
		pdf.Cell(60, 7, r.label)
		pdf.Cell(40, 7, fmt.Sprintf("%d", r.value))
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 10, "Risk Band Distribution")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	for _, band := range []string{models.RiskBandLow, models.RiskBandMedium, models.RiskBandHigh} {
		pdf.Cell(60, 7, band)
		pdf.Cell(40, 7, fmt.Sprintf("%d", stats.RiskBands[band]))
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(60, 7, "Approval Rate")
	pdf.Cell(40, 7, fmt.Sprintf("%.2f%%", stats.ApprovalRate))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("portfolio_report_%s.pdf", time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}
