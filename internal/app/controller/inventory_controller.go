package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hanbitlab/storefront-backend/internal/app/service"
	apperrors "github.com/hanbitlab/storefront-backend/internal/errors"
	"github.com/hanbitlab/storefront-backend/internal/middleware"
)

// InventoryController exposes read-only stock views: on-hand quantity,
// active holds and the resulting availability per variant.
type InventoryController struct {
	inventoryService service.InventoryService
}

func NewInventoryController(inventoryService service.InventoryService) *InventoryController {
	return &InventoryController{inventoryService: inventoryService}
}

// ListStock returns availability for all variants
// GET /api/v1/inventory
func (ctrl *InventoryController) ListStock(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	stock, err := ctrl.inventoryService.ListStock()
	if err != nil {
		log.Error("Failed to list stock", err, nil)
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stock": stock,
		"count": len(stock),
	})
}

// GetStock returns availability for one variant
// GET /api/v1/inventory/:variant_id
func (ctrl *InventoryController) GetStock(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	variantID, err := strconv.ParseUint(c.Param("variant_id"), 10, 32)
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid variant ID")
		return
	}

	view, err := ctrl.inventoryService.GetStock(uint(variantID))
	if err != nil {
		if errors.Is(err, service.ErrStockNotFound) {
			apperrors.NotFound(c, apperrors.StockNotFound, "No stock record for variant")
			return
		}
		log.Error("Failed to fetch stock", err, map[string]interface{}{
			"variant_id": variantID,
		})
		apperrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"stock": view})
}
