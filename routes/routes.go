package routes

import (
	"github.com/gin-gonic/gin"

	"restaurant-order-engine/handlers"
	"restaurant-order-engine/middleware"
	"restaurant-order-engine/models"
)

func SetupRoutes(r *gin.Engine, h *handlers.Handler) {
	auth := middleware.AuthRequired(h.JWTSecret)

	r.GET("/health", h.Health)
	if h.Images != nil {
		r.Static("/static/images", h.Images.Dir())
	}

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.POST("/auth/register", h.Register)
		public.POST("/auth/login", h.Login)

		// Customers browse the menu without an account
		public.GET("/menu", h.ListMenu)
		public.GET("/customer/menu", h.ListMenu)

		public.GET("/state-machine", h.GetStateMachineInfo)

		// Menu changes are as public as the menu itself
		public.GET("/events/menu", h.SubscribeMenu)
	}

	// ── Authenticated routes ───────────────────────────────────────
	authed := r.Group("/api")
	authed.Use(auth)
	{
		authed.GET("/profile", h.GetProfile)
		authed.GET("/events/:topic", h.Subscribe)
	}

	// ── Admin: catalog management ──────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(auth, middleware.RoleRequired(models.RoleAdmin))
	{
		admin.POST("/users", h.CreateUser)
		admin.GET("/menu", h.ListMenu)
		admin.POST("/menu", h.CreateMenuItem)
		admin.PUT("/menu/:id", h.UpdateMenuItem)
		admin.DELETE("/menu/:id", h.DeleteMenuItem)
	}

	// ── Waiter: takes orders ───────────────────────────────────────
	waiter := r.Group("/api/waiter")
	waiter.Use(auth, middleware.RoleRequired(models.RoleWaiter, models.RoleAdmin))
	{
		waiter.GET("/menu", h.ListMenu)
		waiter.POST("/orders", h.PlaceOrder)
	}

	// ── Staff: shared order views ──────────────────────────────────
	staff := r.Group("/api/orders")
	staff.Use(auth, middleware.RoleRequired(models.StaffRoles...))
	{
		staff.GET("", h.ListOrders)
		staff.GET("/:id", h.GetOrder)
		staff.GET("/:id/history", h.GetOrderHistory)
		staff.PATCH("/:id/status", h.UpdateOrderStatus)
	}

	// ── Cook ───────────────────────────────────────────────────────
	cook := r.Group("/api/cook")
	cook.Use(auth, middleware.RoleRequired(models.RoleCook))
	{
		cook.GET("/orders", h.ListCookOrders)
		cook.PATCH("/orders/:id", h.UpdateOrderStatus)
	}

	// ── Cashier ────────────────────────────────────────────────────
	cashier := r.Group("/api/cashier")
	cashier.Use(auth, middleware.RoleRequired(models.RoleCashier, models.RoleAdmin))
	{
		cashier.GET("/orders", h.ListCashierOrders)
		cashier.GET("/orders/:id", h.GetOrder)
		cashier.PATCH("/orders/:id", h.ProcessPayment)
	}
}
