package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"restaurant-order-engine/apperror"
	"restaurant-order-engine/engine"
	"restaurant-order-engine/middleware"
)

type MenuItemRequest struct {
	Name     string           `json:"name" binding:"required"`
	Price    *decimal.Decimal `json:"price" binding:"required"`
	ImageURL *string          `json:"image_url"`
}

type MenuItemUpdateRequest struct {
	Name     *string          `json:"name"`
	Price    *decimal.Decimal `json:"price"`
	ImageURL *string          `json:"image_url"`
}

// ListMenu returns the whole catalog; customers, waiters and admins all read it
func (h *Handler) ListMenu(c *gin.Context) {
	menus := h.Engine.ListMenu()
	c.JSON(http.StatusOK, gin.H{"count": len(menus), "menus": menus})
}

// CreateMenuItem adds an item from JSON or a multipart form with an image file
func (h *Handler) CreateMenuItem(c *gin.Context) {
	var (
		in       engine.MenuInput
		uploaded string
	)
	if isMultipart(c) {
		patch, url, err := h.menuForm(c)
		uploaded = url
		if err != nil {
			h.fail(c, err)
			return
		}
		if patch.Name == nil || patch.Price == nil {
			h.discardUpload(uploaded)
			h.fail(c, apperror.Validationf("Missing required fields: name and price"))
			return
		}
		in = engine.MenuInput{Name: *patch.Name, Price: *patch.Price, ImageURL: patch.ImageURL}
	} else {
		var req MenuItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		in = engine.MenuInput{Name: req.Name, Price: *req.Price, ImageURL: req.ImageURL}
	}

	item, err := h.Engine.CreateMenu(middleware.GetRole(c), in)
	if err != nil {
		h.discardUpload(uploaded)
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Menu item added", "menu": item})
}

// UpdateMenuItem changes only the supplied fields
func (h *Handler) UpdateMenuItem(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := h.Engine.GetMenu(id); err != nil {
		h.fail(c, err)
		return
	}

	var (
		patch    engine.MenuPatch
		uploaded string
	)
	if isMultipart(c) {
		if patch, uploaded, err = h.menuForm(c); err != nil {
			h.fail(c, err)
			return
		}
	} else {
		var req MenuItemUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		patch = engine.MenuPatch{Name: req.Name, Price: req.Price, ImageURL: req.ImageURL}
	}

	item, err := h.Engine.UpdateMenu(middleware.GetRole(c), id, patch)
	if err != nil {
		h.discardUpload(uploaded)
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item updated", "menu": item})
}

// DeleteMenuItem removes a menu item; placed orders keep their snapshots
func (h *Handler) DeleteMenuItem(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Engine.DeleteMenu(middleware.GetRole(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item deleted", "id": id})
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// menuForm reads name, price and an optional image file from a multipart form.
// It returns the URL of a saved upload so the caller can discard it if the
// menu change is rejected.
func (h *Handler) menuForm(c *gin.Context) (engine.MenuPatch, string, error) {
	var patch engine.MenuPatch
	if name, ok := c.GetPostForm("name"); ok {
		patch.Name = &name
	}
	if raw, ok := c.GetPostForm("price"); ok {
		price, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return engine.MenuPatch{}, "", apperror.Validationf("Price must be a number")
		}
		patch.Price = &price
	}
	if u, ok := c.GetPostForm("image_url"); ok {
		patch.ImageURL = &u
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return patch, "", nil
	}
	if h.Images == nil {
		return engine.MenuPatch{}, "", apperror.Unavailablef("image uploads are disabled")
	}
	f, err := fh.Open()
	if err != nil {
		return engine.MenuPatch{}, "", apperror.Wrap(apperror.Validation, err, "read uploaded image")
	}
	defer f.Close()
	url, err := h.Images.Save(fh.Filename, f)
	if err != nil {
		return engine.MenuPatch{}, "", err
	}
	patch.ImageURL = &url
	return patch, url, nil
}

func (h *Handler) discardUpload(url string) {
	if url == "" || h.Images == nil {
		return
	}
	if err := h.Images.Delete(url); err != nil {
		h.Log.Warn("discard rejected upload", zap.String("url", url), zap.Error(err))
	}
}
