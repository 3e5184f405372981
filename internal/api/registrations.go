package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Responses map[string]json.RawMessage `json:"responses"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}

	r, err := h.registrations.Register(c.Request.Context(), actorFrom(c), c.Param("id"), req.Responses)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) cancelRegistration(c *gin.Context) {
	r, err := h.registrations.Cancel(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) listEventRegistrations(c *gin.Context) {
	regs, err := h.registrations.ListEventRegistrations(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs})
}

func (h *Handler) listMyRegistrations(c *gin.Context) {
	regs, err := h.registrations.ListMyRegistrations(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs})
}

func (h *Handler) getRegistration(c *gin.Context) {
	r, err := h.registrations.GetRegistration(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// getTicketImage serves the QR image of a live ticket
func (h *Handler) getTicketImage(c *gin.Context) {
	r, err := h.registrations.GetRegistration(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	t := r.Ticket()
	if t == nil || len(t.Image) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no ticket issued"})
		return
	}
	c.Data(http.StatusOK, t.ContentType, t.Image)
}
