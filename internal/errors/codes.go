package errors

// Error code constants, format: CATEGORY_SPECIFIC_DETAIL.
// Clients map these codes to display messages.

const (
	// ==================== Auth (AUTH_) ====================
	AuthUnauthorized = "AUTH_UNAUTHORIZED"
	AuthTokenExpired = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid = "AUTH_TOKEN_INVALID"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"

	// ==================== Resource (RESOURCE_) ====================
	ResourceNotFound = "RESOURCE_NOT_FOUND"
	ResourceConflict = "RESOURCE_CONFLICT"

	// ==================== Cart (CART_) ====================
	CartMutationFailed = "CART_MUTATION_FAILED"
	CartMergeFailed    = "CART_MERGE_FAILED"
	CartInvalid        = "CART_INVALID"
	CartMissingSession = "CART_MISSING_SESSION"

	// ==================== Stock (STOCK_) ====================
	StockInsufficient = "STOCK_INSUFFICIENT"
	StockNotFound     = "STOCK_NOT_FOUND"

	// ==================== Orders (ORDER_) ====================
	OrderNotFound       = "ORDER_NOT_FOUND"
	OrderInvalidState   = "ORDER_INVALID_STATE"
	OrderCheckoutFailed = "ORDER_CHECKOUT_FAILED"

	// ==================== Idempotency (IDEMPOTENCY_) ====================
	IdempotencyInFlight  = "IDEMPOTENCY_IN_FLIGHT"
	IdempotencyKeyReused = "IDEMPOTENCY_KEY_REUSED"

	// ==================== Throttling (THROTTLE_) ====================
	ThrottleExceeded = "THROTTLE_EXCEEDED"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
)
