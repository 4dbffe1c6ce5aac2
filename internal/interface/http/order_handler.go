package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evigrid/assess-console/internal/domain/orders"
)

// ListOrders returns the caller's order history, newest first.
func (h *Handler) ListOrders(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	items, err := h.orderSvc.List(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	if items == nil {
		items = []orders.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetOrder fetches a single order.
func (h *Handler) GetOrder(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	order, err := h.orderSvc.Get(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus applies a backend progress callback. Transitions are
// scoped to the caller's own orders.
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil))
		return
	}
	status := trimmedQuery(c, "status")
	if status == "" {
		var payload struct {
			Status string `json:"status"`
		}
		if err := c.ShouldBindJSON(&payload); err == nil {
			status = payload.Status
		}
	}
	if err := h.orderSvc.SetStatus(c.Request.Context(), c.Param("id"), claims.UserID, orders.Status(status)); err != nil {
		abortWithDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
