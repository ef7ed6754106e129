package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/creditiq/creditiq-api/internal/models"
	"github.com/creditiq/creditiq-api/internal/repository"
	"github.com/creditiq/creditiq-api/internal/services"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary List Audit Logs
// @Description Get a paginated, filterable view of the audit trail
// @Tags Audits
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param action query string false "Filter by action"
// @Param entity_type query string false "Filter by entity type"
// @Param entity_id query int false "Filter by entity ID"
// @Param actor_id query int false "Filter by actor"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /audits [get]
func (h *AuditHandler) Index(c *gin.Context) {
	query := &repository.AuditQuery{ListQuery: repository.NewListQuery()}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Action = c.Query("action")
	query.EntityType = c.Query("entity_type")
	if entityID, err := strconv.ParseUint(c.Query("entity_id"), 10, 32); err == nil {
		query.EntityID = uint(entityID)
	}
	if actorID, err := strconv.ParseUint(c.Query("actor_id"), 10, 32); err == nil {
		query.ActorID = uint(actorID)
	}
	if startDate := c.Query("start_date"); startDate != "" {
		query.Filters["start_date"] = startDate
	}
	if endDate := c.Query("end_date"); endDate != "" {
		query.Filters["end_date"] = endDate
	}

	logs, total, err := h.auditService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		responses = append(responses, l.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"audits": responses,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
		},
	})
}

// @Summary Audit Trail for Entity
// @Description Get the full audit history of a single entity
// @Tags Audits
// @Produce json
// @Param entity_type path string true "Entity type"
// @Param entity_id path int true "Entity ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /audits/{entity_type}/{entity_id} [get]
func (h *AuditHandler) ByEntity(c *gin.Context) {
	entityID, err := strconv.ParseUint(c.Param("entity_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entity ID"})
		return
	}

	logs, err := h.auditService.FindByEntity(c.Request.Context(), c.Param("entity_type"), uint(entityID))
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		responses = append(responses, l.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"audits": responses})
}
