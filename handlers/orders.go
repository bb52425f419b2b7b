package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"restaurant-order-engine/apperror"
	"restaurant-order-engine/engine"
	"restaurant-order-engine/middleware"
	"restaurant-order-engine/models"
	"restaurant-order-engine/orders"
)

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type PaymentRequest struct {
	Action string `json:"action" binding:"required"`
}

// PlaceOrder creates an order for a seat (waiter)
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req engine.OrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := h.Engine.CreateOrder(middleware.GetRole(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Order created", "order": order})
}

// ListOrders returns orders for any staff role, filtered by seat_number,
// status (comma separated) and paid
func (h *Handler) ListOrders(c *gin.Context) {
	f, err := orderFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.listOrders(c, f)
}

// ListCookOrders shows the kitchen every order not yet paid
func (h *Handler) ListCookOrders(c *gin.Context) {
	f, err := orderFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	unpaid := false
	f.Paid = &unpaid
	h.listOrders(c, f)
}

// ListCashierOrders defaults to Ready orders, paid or not
func (h *Handler) ListCashierOrders(c *gin.Context) {
	f, err := orderFilter(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(f.Statuses) == 0 {
		f.Statuses = []models.OrderStatus{models.StatusReady}
	}
	h.listOrders(c, f)
}

func (h *Handler) listOrders(c *gin.Context, f orders.Filter) {
	list, err := h.Engine.ListOrders(middleware.GetRole(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	summary := map[string]int{}
	for _, o := range list {
		summary[string(o.Status)]++
	}
	c.JSON(http.StatusOK, gin.H{
		"count":         len(list),
		"order_summary": summary,
		"orders":        list,
	})
}

// GetOrder returns a single order
func (h *Handler) GetOrder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	order, err := h.Engine.GetOrder(middleware.GetRole(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// GetOrderHistory returns the journaled status trail of an order
func (h *Handler) GetOrderHistory(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := h.Engine.GetOrder(middleware.GetRole(c), id); err != nil {
		h.fail(c, err)
		return
	}
	if h.Journal == nil {
		h.fail(c, apperror.Unavailablef("order history is not recorded"))
		return
	}
	rows, err := h.Journal.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "count": len(rows), "history": rows})
}

// UpdateOrderStatus moves an order along the state machine as the caller's role
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, ok := models.ParseOrderStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of Pending, Preparing, Ready, Cancelled"})
		return
	}

	order, err := h.Engine.AdvanceOrder(middleware.GetRole(c), id, target)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order " + strconv.FormatUint(uint64(id), 10) + " status updated", "order": order})
}

// ProcessPayment settles a Ready order (cashier)
func (h *Handler) ProcessPayment(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Action != "pay" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be 'pay'"})
		return
	}

	p, err := h.Engine.ApplyPayment(middleware.GetRole(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Order " + strconv.FormatUint(uint64(id), 10) + " paid successfully",
		"order":      p.Order,
		"total_paid": p.TotalPaid,
	})
}

func orderFilter(c *gin.Context) (orders.Filter, error) {
	var f orders.Filter
	if seat := strings.TrimSpace(c.Query("seat_number")); seat != "" {
		f.SeatNumber = &seat
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, ok := models.ParseOrderStatus(strings.TrimSpace(part))
			if !ok {
				return orders.Filter{}, apperror.Validationf("unknown status %q", part)
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if raw := c.Query("paid"); raw != "" {
		paid, err := strconv.ParseBool(raw)
		if err != nil {
			return orders.Filter{}, apperror.Validationf("paid must be true or false")
		}
		f.Paid = &paid
	}
	return f, nil
}
