package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleet_dashboard/internal/models"
	"fleet_dashboard/internal/service"
)

// SelectionRequest replaces vehicle and date range in one generation.
type SelectionRequest struct {
	// Vehicle number; empty clears the selection
	EntityID string `json:"entity_id" example:"KA01AB1234"`
	// Inclusive start, RFC3339 or YYYY-MM-DD; empty means unbounded
	Start string `json:"start,omitempty" example:"2024-03-01"`
	// Inclusive end, RFC3339 or YYYY-MM-DD; empty means unbounded
	End string `json:"end,omitempty" example:"2024-03-31"`
}

type entityRequest struct {
	EntityID string `json:"entity_id"`
}

type dateRangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type selectionResponse struct {
	Selection models.Selection `json:"selection"`
	Token     models.Token     `json:"token"`
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if start != "" {
		if from, err = parseQueryTime(start); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if end != "" {
		if to, err = parseQueryTime(end); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

// selectionError maps validation errors to 4xx and anything else to 500.
func (h *Handler) selectionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownVehicle):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidDateRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to update selection", "selection_update_failed", err)
	}
}

func (h *Handler) respondSelection(c *gin.Context, token models.Token) {
	sel, _ := h.services.Selection.Current()
	c.JSON(http.StatusOK, selectionResponse{Selection: sel, Token: token})
}

// @Summary      Current selection
// @Tags         selection
// @Produce      json
// @Success      200  {object}  selectionResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/selection [get]
// @Security     BearerAuth
func (h *Handler) getSelection(c *gin.Context) {
	sel, token := h.services.Selection.Current()
	c.JSON(http.StatusOK, selectionResponse{Selection: sel, Token: token})
}

// @Summary      Replace selection
// @Tags         selection
// @Accept       json
// @Produce      json
// @Param        body  body      SelectionRequest  true  "Selection"
// @Success      200   {object}  selectionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/selection [put]
// @Security     BearerAuth
func (h *Handler) putSelection(c *gin.Context) {
	var req SelectionRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := h.services.Selection.Select(c.Request.Context(), models.Selection{
		EntityID:  req.EntityID,
		DateRange: models.DateRange{Start: start, End: end},
	})
	if err != nil {
		h.selectionError(c, err)
		return
	}
	h.respondSelection(c, token)
}

// @Summary      Select vehicle
// @Tags         selection
// @Accept       json
// @Produce      json
// @Param        body  body      entityRequest  true  "Vehicle"
// @Success      200   {object}  selectionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/selection/entity [put]
// @Security     BearerAuth
func (h *Handler) putEntity(c *gin.Context) {
	var req entityRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	token, err := h.services.Selection.SelectEntity(c.Request.Context(), req.EntityID)
	if err != nil {
		h.selectionError(c, err)
		return
	}
	h.respondSelection(c, token)
}

// @Summary      Select date range
// @Tags         selection
// @Accept       json
// @Produce      json
// @Param        body  body      dateRangeRequest  true  "Range"
// @Success      200   {object}  selectionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/selection/date-range [put]
// @Security     BearerAuth
func (h *Handler) putDateRange(c *gin.Context) {
	var req dateRangeRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := h.services.Selection.SelectDateRange(c.Request.Context(), start, end)
	if err != nil {
		h.selectionError(c, err)
		return
	}
	h.respondSelection(c, token)
}
