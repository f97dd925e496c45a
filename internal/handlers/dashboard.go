package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet_dashboard/internal/analytics"
	"fleet_dashboard/internal/models"
)

const (
	statusOK = "ok"

	errListVehicles    = "failed to load vehicles"
	errUnknownPanel    = "unknown panel; use heatmap, health, schedule or clusters"
	errSendReport      = "failed to send failure report"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		if uid, ok := userIDFrom(c); ok {
			fields = append(fields, "user", uid)
		}
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List vehicles
// @Tags         vehicles
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, vehicles"
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/vehicles [get]
// @Security     BearerAuth
func (h *Handler) listVehicles(c *gin.Context) {
	vehicles, err := h.services.Directory.Vehicles(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errListVehicles, "vehicles_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(vehicles),
		"vehicles": vehicles,
	})
}

// @Summary      Dashboard view
// @Description  All four panels for the current selection generation.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  dashboard.View
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/dashboard [get]
// @Security     BearerAuth
func (h *Handler) getDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Dashboard.View())
}

// @Summary      Dashboard panel
// @Tags         dashboard
// @Produce      json
// @Param        panel  path      string  true  "Panel"  Enums(heatmap,health,schedule,clusters)
// @Success      200    {object}  map[string]interface{}
// @Failure      401    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Router       /api/v1/dashboard/{panel} [get]
// @Security     BearerAuth
func (h *Handler) getPanel(c *gin.Context) {
	p, ok := h.services.Dashboard.View().Panel(models.Domain(c.Param("panel")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownPanel})
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Send failure report
// @Description  Asks the analytics backend to mail the current failure report.
// @Tags         reports
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/reports/failure [post]
// @Security     BearerAuth
func (h *Handler) sendFailureReport(c *gin.Context) {
	msg, err := h.services.Reports.SendFailureReport(c.Request.Context())
	if err != nil {
		if errors.Is(err, analytics.ErrReportRejected) {
			h.logAndJSONError(c, http.StatusBadGateway, err.Error(), "report_rejected", err)
			return
		}
		h.logAndJSONError(c, http.StatusBadGateway, errSendReport, "report_send_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
