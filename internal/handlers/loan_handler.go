package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/creditiq/creditiq-api/internal/middleware"
	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/repository"
	"github.com/creditiq/creditiq-api/internal/services"
)

type LoanHandler struct {
	loanService *services.LoanService
}

func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// @Summary List Loan Applications
// @Description Get a paginated list of the current user's applications (or all for admin)
// @Tags Loans
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search_term query string false "Search term"
// @Param status query string false "Filter by status"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans [get]
func (h *LoanHandler) Index(c *gin.Context) {
	query := &repository.LoanQuery{ListQuery: repository.NewListQuery()}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search_term")
	query.Status = c.Query("status")
	if startDate := c.Query("start_date"); startDate != "" {
		query.Filters["start_date"] = startDate
	}
	if endDate := c.Query("end_date"); endDate != "" {
		query.Filters["end_date"] = endDate
	}
	if guid := c.Query("reference"); guid != "" {
		query.Filters["guid"] = guid
	}
	query.UserID = middleware.GetUserID(c)
	query.IsAdmin = middleware.IsAdmin(c)

	apps, total, err := h.loanService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.LoanApplicationResponse, 0, len(apps))
	for _, app := range apps {
		responses = append(responses, app.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"applications": responses,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
		},
	})
}

// @Summary Get Application Stats
// @Description Get application count statistics by status
// @Tags Loans
// @Produce json
// @Success 200 {object} repository.LoanStats
// @Security BearerAuth
// @Router /loans/stats [get]
func (h *LoanHandler) GetStats(c *gin.Context) {
	stats, err := h.loanService.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Get Loan Application
// @Description Get an application by ID with its decision history
// @Tags Loans
// @Produce json
// @Param id path int true "Application ID"
// @Success 200 {object} models.LoanApplicationResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{id} [get]
func (h *LoanHandler) Show(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
		return
	}

	app, err := h.loanService.FindByID(c.Request.Context(), uint(id),
		middleware.GetUserID(c), middleware.IsAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"application": app.ToResponse()})
}

// @Summary Create Loan Application
// @Description Create a new DRAFT application for the current user
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body services.CreateLoanInput true "Application Data"
// @Success 201 {object} models.LoanApplicationResponse
// @Security BearerAuth
// @Router /loans [post]
func (h *LoanHandler) Create(c *gin.Context) {
	var input services.CreateLoanInput
	if err := BindNestedOrFlat(c, "application", &input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateStruct(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := h.loanService.Create(c.Request.Context(), middleware.GetUserID(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"application": app.ToResponse()})
}

// @Summary Update Loan Application
// @Description Apply partial updates to a DRAFT application
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path int true "Application ID"
// @Param request body services.UpdateLoanInput true "Fields to update"
// @Success 200 {object} models.LoanApplicationResponse
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{id} [patch]
func (h *LoanHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
		return
	}

	var input services.UpdateLoanInput
	if err := BindNestedOrFlat(c, "application", &input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateStruct(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := h.loanService.Update(c.Request.Context(), uint(id), middleware.GetUserID(c), &input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"application": app.ToResponse()})
}

// @Summary Submit Loan Application
// @Description Submit a DRAFT application for an immediate decision
// @Tags Loans
// @Produce json
// @Param id path int true "Application ID"
// @Success 200 {object} services.SubmissionResult
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{id}/submit [post]
func (h *LoanHandler) Submit(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
		return
	}

	result, err := h.loanService.Submit(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"application": result.Application.ToResponse(),
		"decision":    result.Decision.ToResponse(),
	})
}

// @Summary List Decisions
// @Description Get the decision history of an application, newest first
// @Tags Loans
// @Produce json
// @Param id path int true "Application ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /loans/{id}/decisions [get]
func (h *LoanHandler) Decisions(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
		return
	}

	decisions, err := h.loanService.ListDecisions(c.Request.Context(), uint(id),
		middleware.GetUserID(c), middleware.IsAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.LoanDecisionResponse, 0, len(decisions))
	for _, d := range decisions {
		responses = append(responses, d.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"decisions": responses})
}
