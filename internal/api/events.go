package api

import (
	"net/http"

	"campus-events/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createEvent(c *gin.Context) {
	var req service.CreateEventRequest
	if !bind(c, &req) {
		return
	}

	e, err := h.events.CreateEvent(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) listEvents(c *gin.Context) {
	events, err := h.events.ListEvents(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) getEvent(c *gin.Context) {
	e, err := h.events.GetEvent(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) updateEvent(c *gin.Context) {
	var req service.UpdateEventRequest
	if !bind(c, &req) {
		return
	}

	e, err := h.events.UpdateEvent(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

type webhookRequest struct {
	URL string `json:"url"`
}

func (h *Handler) setWebhook(c *gin.Context) {
	var req webhookRequest
	if !bind(c, &req) {
		return
	}

	if err := h.events.SetOrganizerWebhook(c.Request.Context(), actorFrom(c), req.URL); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
