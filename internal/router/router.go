package router

import (
	"github.com/gin-gonic/gin"
	"github.com/hanbitlab/storefront-backend/config"
	"github.com/hanbitlab/storefront-backend/internal/app/controller"
	"github.com/hanbitlab/storefront-backend/internal/middleware"
)

type Router struct {
	catalogController   *controller.CatalogController
	inventoryController *controller.InventoryController
	cartController      *controller.CartController
	guestCartController *controller.GuestCartController
	orderController     *controller.OrderController
	authMiddleware      *middleware.AuthMiddleware
	throttleMiddleware  *middleware.ThrottleMiddleware
	config              *config.Config
}

func NewRouter(
	catalogController *controller.CatalogController,
	inventoryController *controller.InventoryController,
	cartController *controller.CartController,
	guestCartController *controller.GuestCartController,
	orderController *controller.OrderController,
	authMiddleware *middleware.AuthMiddleware,
	throttleMiddleware *middleware.ThrottleMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		catalogController:   catalogController,
		inventoryController: inventoryController,
		cartController:      cartController,
		guestCartController: guestCartController,
		orderController:     orderController,
		authMiddleware:      authMiddleware,
		throttleMiddleware:  throttleMiddleware,
		config:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "STOREFRONT API is running",
		})
	})

	throttleRead := r.throttleMiddleware.Scope(middleware.ScopeCart)
	throttleWrite := r.throttleMiddleware.Scope(middleware.ScopeCartWrite)

	v1 := router.Group("/api/v1")
	{
		products := v1.Group("/products")
		{
			products.GET("", r.catalogController.ListProducts)
			products.GET("/:id", r.catalogController.GetProduct)
		}

		inventory := v1.Group("/inventory")
		{
			inventory.GET("", r.inventoryController.ListStock)
			inventory.GET("/:variant_id", r.inventoryController.GetStock)
		}

		cart := v1.Group("/cart")
		{
			// Guest routes carry no auth; identity is the session header.
			guest := cart.Group("/guest")
			{
				guest.GET("", throttleRead, r.guestCartController.GetCart)
				guest.POST("/items", throttleWrite, r.guestCartController.AddItem)
				guest.PATCH("/items/:id", throttleWrite, r.guestCartController.UpdateItem)
				guest.DELETE("/items/:id/delete", throttleWrite, r.guestCartController.RemoveItem)
				guest.POST("/clear", throttleWrite, r.guestCartController.Clear)
			}

			user := cart.Group("")
			user.Use(r.authMiddleware.Authenticate())
			{
				user.GET("", throttleRead, r.cartController.GetCart)
				user.POST("/items", throttleWrite, r.cartController.AddItem)
				user.PATCH("/items/:id", throttleWrite, r.cartController.UpdateItem)
				user.DELETE("/items/:id/delete", throttleWrite, r.cartController.RemoveItem)
				user.POST("/checkout", throttleWrite, r.cartController.Checkout)
				user.POST("/abandon", throttleWrite, r.cartController.Abandon)
				user.POST("/clear", throttleWrite, r.cartController.Clear)
				user.POST("/merge-guest", throttleWrite, r.cartController.MergeGuest)
			}
		}

		orders := v1.Group("/orders")
		orders.Use(r.authMiddleware.Authenticate())
		{
			orders.GET("", r.orderController.ListOrders)
			orders.GET("/:id", r.orderController.GetOrder)
			orders.POST("/:id/pay", r.orderController.PayOrder)
			orders.POST("/:id/cancel", r.orderController.CancelOrder)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Session-Id, Idempotency-Key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
