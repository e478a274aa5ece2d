package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanbitlab/storefront-backend/internal/app/service"
	apperrors "github.com/hanbitlab/storefront-backend/internal/errors"
	"github.com/hanbitlab/storefront-backend/internal/middleware"
)

// GuestCartController serves carts identified by a session token
// instead of an authenticated user. The token travels in the
// X-Session-Id header, or in the request body for item adds.
type GuestCartController struct {
	cartService service.CartService
}

func NewGuestCartController(cartService service.CartService) *GuestCartController {
	return &GuestCartController{cartService: cartService}
}

type GuestAddItemRequest struct {
	SessionID string `json:"session_id"`
	VariantID uint   `json:"variant_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// guestSession resolves the caller's session token from the header.
func guestSession(c *gin.Context) (string, bool) {
	sessionID := c.GetHeader("X-Session-Id")
	if sessionID == "" {
		apperrors.RespondWithDetail(c, http.StatusBadRequest, apperrors.DetailMissingSessionID)
		return "", false
	}
	return sessionID, true
}

// GetCart returns the guest's active cart with totals
// GET /api/v1/cart/guest
func (ctrl *GuestCartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	sessionID, ok := guestSession(c)
	if !ok {
		return
	}

	cart, totals, err := ctrl.cartService.GetCart(service.GuestOwner(sessionID))
	if err != nil {
		log.Error("Failed to fetch guest cart", err, map[string]interface{}{
			"session_id": sessionID,
		})
		apperrors.InternalError(c, "")
		return
	}

	cartResponse(c, cart, totals)
}

// AddItem sets the guest cart line for a variant to the requested
// quantity. The session may come from the body instead of the header.
// POST /api/v1/cart/guest/items
func (ctrl *GuestCartController) AddItem(c *gin.Context) {
	var req GuestAddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithDetail(c, http.StatusBadRequest, apperrors.DetailUnableToUpdateCart)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = c.GetHeader("X-Session-Id")
	}
	if sessionID == "" {
		apperrors.RespondWithDetail(c, http.StatusBadRequest, apperrors.DetailMissingSessionID)
		return
	}

	item, err := ctrl.cartService.AddItem(service.GuestOwner(sessionID), req.VariantID, req.Quantity)
	if err != nil {
		respondCartMutationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// UpdateItem changes a guest cart line's quantity
// PATCH /api/v1/cart/guest/items/:id
func (ctrl *GuestCartController) UpdateItem(c *gin.Context) {
	sessionID, ok := guestSession(c)
	if !ok {
		return
	}

	itemID, ok := parseItemID(c)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondWithDetail(c, http.StatusBadRequest, apperrors.DetailUnableToUpdateCart)
		return
	}

	item, err := ctrl.cartService.UpdateItemQuantity(service.GuestOwner(sessionID), itemID, req.Quantity)
	if err != nil {
		respondCartMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// RemoveItem deletes a guest cart line
// DELETE /api/v1/cart/guest/items/:id/delete
func (ctrl *GuestCartController) RemoveItem(c *gin.Context) {
	sessionID, ok := guestSession(c)
	if !ok {
		return
	}

	itemID, ok := parseItemID(c)
	if !ok {
		return
	}

	if err := ctrl.cartService.RemoveItem(service.GuestOwner(sessionID), itemID); err != nil {
		respondCartMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed"})
}

// Clear removes all guest cart lines, keeping the cart active
// POST /api/v1/cart/guest/clear
func (ctrl *GuestCartController) Clear(c *gin.Context) {
	sessionID, ok := guestSession(c)
	if !ok {
		return
	}

	if err := ctrl.cartService.Clear(service.GuestOwner(sessionID)); err != nil {
		respondCartMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
