package api

import (
	"net/http"

	"campus-events/internal/models"
	"campus-events/internal/service"

	"github.com/gin-gonic/gin"
)

type scanRequest struct {
	TicketID string            `json:"ticket_id" binding:"required"`
	Method   models.ScanMethod `json:"method"`
}

func (h *Handler) scan(c *gin.Context) {
	var req scanRequest
	if !bind(c, &req) {
		return
	}

	out, err := h.attendance.Scan(c.Request.Context(), actorFrom(c), c.Param("id"), req.TicketID, req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) overrideAttendance(c *gin.Context) {
	var req service.OverrideRequest
	if !bind(c, &req) {
		return
	}

	r, err := h.attendance.ManualOverride(c.Request.Context(), actorFrom(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) attendanceHistory(c *gin.Context) {
	hist, err := h.attendance.History(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}
