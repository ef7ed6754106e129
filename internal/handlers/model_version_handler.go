package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/creditiq/creditiq-api/internal/services"
)

type ModelVersionHandler struct {
	modelVersionService *services.ModelVersionService
}

func NewModelVersionHandler(modelVersionService *services.ModelVersionService) *ModelVersionHandler {
	return &ModelVersionHandler{modelVersionService: modelVersionService}
}

// @Summary List Model Versions
// @Description Get all scorer model versions observed in decisions (admin only)
// @Tags ModelVersions
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /model-versions [get]
func (h *ModelVersionHandler) Index(c *gin.Context) {
	versions, err := h.modelVersionService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	active, err := h.modelVersionService.Active(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"model_versions": versions}
	if active != nil {
		resp["active"] = active.Version
	}
	c.JSON(http.StatusOK, resp)
}
