package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hanbitlab/storefront-backend/internal/app/service"
	apperrors "github.com/hanbitlab/storefront-backend/internal/errors"
	"github.com/hanbitlab/storefront-backend/internal/middleware"
)

// CartController serves the authenticated user's cart. Mutation
// failures collapse to one generic message so callers cannot probe
// which variant or constraint rejected them.
type CartController struct {
	cartService     service.CartService
	checkoutService service.CheckoutService
	idemService     service.IdempotencyService
}

func NewCartController(
	cartService service.CartService,
	checkoutService service.CheckoutService,
	idemService service.IdempotencyService,
) *CartController {
	return &CartController{
		cartService:     cartService,
		checkoutService: checkoutService,
		idemService:     idemService,
	}
}

type AddItemRequest struct {
	VariantID uint `json:"variant_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type MergeGuestRequest struct {
	SessionID string `json:"session_id"`
}

// cartResponse renders a cart with its totals.
func cartResponse(c *gin.Context, cart interface{}, totals service.CartTotals) {
	c.JSON(http.StatusOK, gin.H{
		"cart":   cart,
		"totals": totals,
	})
}

// GetCart returns the user's active cart with totals
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	cart, totals, err := ctrl.cartService.GetCart(service.UserOwner(userID))
	if err != nil {
		log.Error("Failed to fetch cart", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.InternalError(c, "")
		return
	}

	cartResponse(c, cart, totals)
}

// AddItem sets the cart line for a variant to the requested quantity
// POST /api/v1/cart/items
func (ctrl *CartController) AddItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add item request", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		apperrors.RespondWithDetail(c, http.StatusBadRequest, apperrors.DetailUnableToUpdateCart)
		return
	}

	item, err := ctrl.cartService.AddItem(service.UserOwner(userID), req.VariantID, req.Quantity)
	if err != nil {
		respondCartMutationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// UpdateItem changes a line's quantity
// PATCH /api/v1/cart/items/:id
func (ctrl *CartController) UpdateItem(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
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

	item, err := ctrl.cartService.UpdateItemQuantity(service.UserOwner(userID), itemID, req.Quantity)
	if err != nil {
		respondCartMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// RemoveItem deletes a line and releases its reservation
// DELETE /api/v1/cart/items/:id/delete
func (ctrl *CartController) RemoveItem(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	itemID, ok := parseItemID(c)
	if !ok {
		return
	}

	if err := ctrl.cartService.RemoveItem(service.UserOwner(userID), itemID); err != nil {
		respondCartMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed"})
}

// Clear removes all lines but keeps the cart active
// POST /api/v1/cart/clear
func (ctrl *CartController) Clear(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	if err := ctrl.cartService.Clear(service.UserOwner(userID)); err != nil {
		respondCartMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

// Abandon releases all reservations and marks the cart abandoned
// POST /api/v1/cart/abandon
func (ctrl *CartController) Abandon(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	if err := ctrl.cartService.Abandon(service.UserOwner(userID)); err != nil {
		respondCartMutationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart abandoned"})
}

// Checkout converts the active cart into an order. With an
// Idempotency-Key header, retries replay the recorded response
// byte-for-byte instead of charging stock twice.
// POST /api/v1/cart/checkout
func (ctrl *CartController) Checkout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		code, body := ctrl.runCheckout(c, userID)
		c.Data(code, "application/json", body)
		return
	}

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apperrors.RespondWithDetail(c, http.StatusBadRequest, apperrors.DetailUnableToUpdateCart)
		return
	}
	requestHash := service.ComputeRequestHash(rawBody)

	record, stored, err := ctrl.idemService.Begin(userID, c.FullPath(), c.Request.Method, key, requestHash)
	switch {
	case errors.Is(err, service.ErrIdempotencyInFlight):
		apperrors.Conflict(c, apperrors.IdempotencyInFlight, "An identical request is already in progress")
		return
	case errors.Is(err, service.ErrIdempotencyKeyReused):
		apperrors.Conflict(c, apperrors.IdempotencyKeyReused, "Idempotency key was used with a different payload")
		return
	case err != nil:
		log.Error("Idempotency begin failed", err, map[string]interface{}{
			"user_id": userID,
			"key":     key,
		})
		apperrors.InternalError(c, "")
		return
	}

	if stored != nil {
		c.Data(stored.Code, "application/json", stored.Body)
		return
	}

	code, body := ctrl.runCheckout(c, userID)

	// Failures are recorded too, so a retry of a failed attempt sees
	// the same answer instead of racing a half-open window.
	if err := ctrl.idemService.Complete(record.ID, code, body); err != nil {
		log.Error("Failed to record idempotent response", err, map[string]interface{}{
			"record_id": record.ID,
		})
	}

	c.Data(code, "application/json", body)
}

// runCheckout executes the checkout and returns the response to both
// send and record.
func (ctrl *CartController) runCheckout(c *gin.Context, userID uint) (int, []byte) {
	log := middleware.GetLoggerFromContext(c)

	order, err := ctrl.checkoutService.Checkout(userID)
	if err != nil {
		log.Warn("Checkout failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		body, _ := json.Marshal(apperrors.DetailResponse{Detail: apperrors.DetailUnableToUpdateCart})
		return http.StatusBadRequest, body
	}

	body, _ := json.Marshal(gin.H{
		"status":   "ordered",
		"order_id": order.ID,
	})
	return http.StatusOK, body
}

// MergeGuest folds the guest session's cart into the user's cart
// POST /api/v1/cart/merge-guest
func (ctrl *CartController) MergeGuest(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apperrors.Unauthorized(c, "")
		return
	}

	var req MergeGuestRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		apperrors.RespondWithDetail(c, http.StatusBadRequest, apperrors.DetailUnableToMergeCart)
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

	if err := ctrl.cartService.MergeGuestCart(sessionID, userID); err != nil {
		log.Warn("Guest cart merge failed", map[string]interface{}{
			"user_id":    userID,
			"session_id": sessionID,
			"error":      err.Error(),
		})
		apperrors.RespondWithDetail(c, http.StatusBadRequest, apperrors.DetailUnableToMergeCart)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart merged"})
}

// parseItemID reads the :id path parameter. Items the caller does not
// own answer identically to items that do not exist.
func parseItemID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apperrors.RespondWithDetail(c, http.StatusNotFound, apperrors.DetailNotFound)
		return 0, false
	}
	return uint(id), true
}

// respondCartMutationError maps service failures onto the cart error
// contract: unknown items look like 404, everything else is the
// generic mutation failure.
func respondCartMutationError(c *gin.Context, err error) {
	log := middleware.GetLoggerFromContext(c)

	if errors.Is(err, service.ErrCartItemNotFound) {
		apperrors.RespondWithDetail(c, http.StatusNotFound, apperrors.DetailNotFound)
		return
	}

	log.Warn("Cart mutation rejected", map[string]interface{}{
		"error": err.Error(),
	})
	apperrors.RespondWithDetail(c, http.StatusBadRequest, apperrors.DetailUnableToUpdateCart)
}
