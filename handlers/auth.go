package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"restaurant-order-engine/middleware"
	"restaurant-order-engine/models"
)

type RegisterRequest struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=6"`
	Role     models.Role `json:"role" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// publicRoles may sign themselves up; every other role is created by an admin.
var publicRoles = []models.Role{models.RoleCustomer, models.RoleWaiter}

// Register creates a customer or waiter account
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role. Must be: customer, waiter, cook, cashier, or admin"})
		return
	}
	if !req.Role.In(publicRoles...) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only customer and waiter accounts can self-register; staff accounts are created by an admin"})
		return
	}
	h.createUser(c, req, "Account created successfully")
}

// CreateUser lets an admin open an account with any role (admin)
func (h *Handler) CreateUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role. Must be: customer, waiter, cook, cashier, or admin"})
		return
	}
	h.createUser(c, req, "Account created by admin")
}

func (h *Handler) createUser(c *gin.Context, req RegisterRequest, msg string) {
	var existing models.User
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		h.fail(c, err)
		return
	}

	user, err := newUser(req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.DB.Create(&user).Error; err != nil {
		h.fail(c, err)
		return
	}
	h.issueToken(c, http.StatusCreated, msg, &user)
}

func newUser(name, email, password string, role models.Role) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	return models.User{Name: name, Email: email, PasswordHash: string(hash), Role: role}, nil
}

// EnsureAdmin creates the bootstrap admin account unless the email is taken.
func (h *Handler) EnsureAdmin(email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	var existing models.User
	err := h.DB.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("look up admin %s: %w", email, err)
	}
	user, err := newUser("Administrator", email, password, models.RoleAdmin)
	if err != nil {
		return err
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return fmt.Errorf("create admin %s: %w", email, err)
	}
	h.Log.Info("bootstrap admin created", zap.String("email", email))
	return nil
}

// Login authenticates a user and returns a JWT
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	h.issueToken(c, http.StatusOK, "Login successful", &user)
}

func (h *Handler) issueToken(c *gin.Context, status int, msg string, user *models.User) {
	token, err := middleware.GenerateToken(h.JWTSecret, user)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, gin.H{
		"message": msg,
		"token":   token,
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// GetProfile returns the authenticated user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	var user models.User
	if err := h.DB.First(&user, middleware.GetUserID(c)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
