package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/creditiq/creditiq-api/internal/middleware"
	"github.com/creditiq/creditiq-api/internal/repository"
	"github.com/creditiq/creditiq-api/internal/services"
)

type ReportHandler struct {
	reportService *services.ReportService
	exportService *services.ExportService
}

func NewReportHandler(reportService *services.ReportService, exportService *services.ExportService) *ReportHandler {
	return &ReportHandler{reportService: reportService, exportService: exportService}
}

func loanQueryFromRequest(c *gin.Context, userID uint, isAdmin bool) *repository.LoanQuery {
	query := &repository.LoanQuery{ListQuery: repository.NewListQuery()}
	// Reports are not paginated; fetch everything matching the filters
	query.Page = 1
	query.PerPage = 10000
	query.Status = c.Query("status")
	if startDate := c.Query("start_date"); startDate != "" {
		query.Filters["start_date"] = startDate
	}
	if endDate := c.Query("end_date"); endDate != "" {
		query.Filters["end_date"] = endDate
	}
	query.UserID = userID
	query.IsAdmin = isAdmin
	return query
}

func sendCSV(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

// @Summary Loans CSV Report
// @Description Download all applications as CSV (admin only)
// @Tags Reports
// @Produce text/csv
// @Success 200 {string} string
// @Security BearerAuth
// @Router /reports/loans/csv [get]
func (h *ReportHandler) LoansCSV(c *gin.Context) {
	query := loanQueryFromRequest(c, middleware.GetUserID(c), true)

	buf, err := h.reportService.GenerateLoansCSV(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("loan_applications_%s.csv", time.Now().Format("2006-01-02"))
	sendCSV(c, filename, buf.Bytes())
}

// @Summary My Applications CSV
// @Description Download the current user's applications as CSV
// @Tags Reports
// @Produce text/csv
// @Success 200 {string} string
// @Security BearerAuth
// @Router /reports/my-applications/csv [get]
func (h *ReportHandler) MyApplicationsCSV(c *gin.Context) {
	query := loanQueryFromRequest(c, middleware.GetUserID(c), false)

	buf, err := h.reportService.GenerateLoansCSV(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("my_applications_%s.csv", time.Now().Format("2006-01-02"))
	sendCSV(c, filename, buf.Bytes())
}

// @Summary Audit CSV Report
// @Description Download the audit trail as CSV (admin only)
// @Tags Reports
// @Produce text/csv
// @Success 200 {string} string
// @Security BearerAuth
// @Router /reports/audit/csv [get]
func (h *ReportHandler) AuditCSV(c *gin.Context) {
	query := &repository.AuditQuery{ListQuery: repository.NewListQuery()}
	query.Page = 1
	query.PerPage = 10000
	query.Action = c.Query("action")
	query.EntityType = c.Query("entity_type")
	if startDate := c.Query("start_date"); startDate != "" {
		query.Filters["start_date"] = startDate
	}
	if endDate := c.Query("end_date"); endDate != "" {
		query.Filters["end_date"] = endDate
	}

	buf, err := h.reportService.GenerateAuditCSV(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("audit_trail_%s.csv", time.Now().Format("2006-01-02"))
	sendCSV(c, filename, buf.Bytes())
}

// @Summary Loan Report PDF
// @Description Download a single application as a PDF report (admin only)
// @Tags Reports
// @Produce application/pdf
// @Param id path int true "Application ID"
// @Success 200 {string} string
// @Security BearerAuth
// @Router /reports/loans/{id}/pdf [get]
func (h *ReportHandler) LoanPDF(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
		return
	}

	buf, err := h.reportService.GenerateLoanReportPDF(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("loan_application_%d.pdf", id)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// @Summary Loans XLSX Export
// @Description Download all applications as a spreadsheet (admin only)
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {string} string
// @Security BearerAuth
// @Router /reports/loans/xlsx [get]
func (h *ReportHandler) LoansXLSX(c *gin.Context) {
	query := loanQueryFromRequest(c, middleware.GetUserID(c), true)

	data, filename, err := h.exportService.ExportLoansXLSX(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// @Summary Portfolio Stats
// @Description Get portfolio-level statistics (admin only)
// @Tags Reports
// @Produce json
// @Success 200 {object} services.PortfolioStats
// @Security BearerAuth
// @Router /reports/stats [get]
func (h *ReportHandler) Stats(c *gin.Context) {
	stats, err := h.reportService.GetPortfolioStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Portfolio Stats Export
// @Description Download the portfolio summary as CSV or PDF (admin only)
// @Tags Reports
// @Produce json
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Success 200 {string} string
// @Security BearerAuth
// @Router /reports/stats/export [get]
func (h *ReportHandler) StatsExport(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	switch format {
	case "pdf":
		data, filename, err := h.exportService.ExportStatsPDF(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
		c.Data(http.StatusOK, "application/pdf", data)
	case "csv":
		data, filename, err := h.exportService.ExportStatsCSV(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		sendCSV(c, filename, data)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported export format"})
	}
}
