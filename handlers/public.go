package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant-order-engine/events"
	"restaurant-order-engine/models"
	"restaurant-order-engine/statemachine"
)

// Health reports liveness and how many live subscribers each topic has
func (h *Handler) Health(c *gin.Context) {
	bus := h.Engine.Bus()
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "Restaurant Order Engine",
		"subscribers": gin.H{
			events.TopicMenu:   bus.Subscribers(events.TopicMenu),
			events.TopicOrders: bus.Subscribers(events.TopicOrders),
		},
	})
}

// GetStateMachineInfo returns the full state machine for informational purposes
func (h *Handler) GetStateMachineInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state_machine":   statemachine.GetAllTransitions(),
		"payment":         gin.H{"from": models.StatusReady, "roles": statemachine.PaymentRoles()},
		"terminal_states": []string{string(models.StatusCancelled), "paid"},
		"description":     "Restaurant Order Lifecycle State Machine",
	})
}
