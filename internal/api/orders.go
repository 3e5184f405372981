package api

import (
	"net/http"

	"campus-events/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) purchase(c *gin.Context) {
	var req service.PurchaseRequest
	if !bind(c, &req) {
		return
	}

	r, err := h.orders.Purchase(c.Request.Context(), actorFrom(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}

	r, err := h.orders.CreateOrder(c.Request.Context(), actorFrom(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

type proofRequest struct {
	Proof string `json:"proof" binding:"required"`
}

func (h *Handler) uploadProof(c *gin.Context) {
	var req proofRequest
	if !bind(c, &req) {
		return
	}

	r, err := h.orders.UploadProof(c.Request.Context(), actorFrom(c), c.Param("id"), req.Proof)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req service.UpdateOrderStatusRequest
	if !bind(c, &req) {
		return
	}

	r, err := h.orders.UpdateOrderStatus(c.Request.Context(), actorFrom(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) itemAvailability(c *gin.Context) {
	available, err := h.orders.ItemAvailability(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item_id":   c.Param("itemId"),
		"available": available,
	})
}
