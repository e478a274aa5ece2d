package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/hanbitlab/storefront-backend/internal/app/model"
	"github.com/hanbitlab/storefront-backend/internal/app/repository"
	"github.com/hanbitlab/storefront-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCheckoutTest(t *testing.T) (CheckoutService, CartService, *model.User, *model.ProductVariant, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	user := &model.User{Email: "buyer@example.com", Name: "Buyer", Role: model.RoleUser}
	require.NoError(t, testDB.Create(user).Error)

	product := &model.Product{Title: "Test Product"}
	require.NoError(t, testDB.Create(product).Error)

	variant := &model.ProductVariant{
		ProductID: product.ID,
		SKU:       "TEST-SKU",
		Price:     20.0,
		Status:    model.VariantStatusActive,
	}
	require.NoError(t, testDB.Create(variant).Error)

	require.NoError(t, testDB.Create(&model.StockItem{VariantID: variant.ID, Quantity: 10}).Error)

	cartRepo := repository.NewCartRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	reservationSvc := NewReservationService(testDB, repository.NewInventoryRepository(testDB), 30*time.Minute)
	cartService := NewCartService(testDB, cartRepo, productRepo, reservationSvc)
	checkoutService := NewCheckoutService(testDB, reservationSvc)

	return checkoutService, cartService, user, variant, testDB
}

func TestCheckoutService_Checkout_Success(t *testing.T) {
	checkoutService, cartService, user, variant, testDB := setupCheckoutTest(t)

	_, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 3)
	require.NoError(t, err)
	cart, _, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)

	order, err := checkoutService.Checkout(user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, fmt.Sprintf("ORD-%06d", order.ID), order.Number)
	assert.Equal(t, 60.0, order.Total)
	assert.Equal(t, user.Email, order.Email)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Test Product", order.Items[0].ProductTitle)
	assert.Equal(t, "TEST-SKU", order.Items[0].VariantSKU)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, 20.0, order.Items[0].UnitPrice)

	// Stock dropped and the hold converted.
	var stock model.StockItem
	require.NoError(t, testDB.Where("variant_id = ?", variant.ID).First(&stock).Error)
	assert.Equal(t, 7, stock.Quantity)

	var active int64
	testDB.Model(&model.StockReservation{}).
		Where("state = ?", model.ReservationStateActive).
		Count(&active)
	assert.Equal(t, int64(0), active)

	// The cart flipped to checked_out and its lines are gone.
	var stored model.Cart
	require.NoError(t, testDB.First(&stored, cart.ID).Error)
	assert.Equal(t, model.CartStatusCheckedOut, stored.Status)

	var items int64
	testDB.Model(&model.CartItem{}).Where("cart_id = ?", cart.ID).Count(&items)
	assert.Equal(t, int64(0), items)
}

func TestCheckoutService_Checkout_EmptyCart(t *testing.T) {
	checkoutService, cartService, user, _, _ := setupCheckoutTest(t)

	// No cart at all.
	_, err := checkoutService.Checkout(user.ID)
	assert.ErrorIs(t, err, ErrEmptyCart)

	// Active but empty cart.
	_, _, err = cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)
	_, err = checkoutService.Checkout(user.ID)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutService_Checkout_LapsedHoldStillFits(t *testing.T) {
	checkoutService, cartService, user, variant, testDB := setupCheckoutTest(t)

	_, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 3)
	require.NoError(t, err)

	// Expire the hold; nobody else claimed the stock, so checkout
	// still succeeds on re-validation.
	expired := time.Now().Add(-time.Minute)
	require.NoError(t, testDB.Model(&model.StockReservation{}).
		Where("state = ?", model.ReservationStateActive).
		Update("expires_at", expired).Error)

	order, err := checkoutService.Checkout(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, order.Total)
}

func TestCheckoutService_Checkout_StockGoneRollsBack(t *testing.T) {
	checkoutService, cartService, user, variant, testDB := setupCheckoutTest(t)

	_, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 8)
	require.NoError(t, err)
	cart, _, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)

	// Hold lapses and another cart grabs most of the stock.
	expired := time.Now().Add(-time.Minute)
	require.NoError(t, testDB.Model(&model.StockReservation{}).
		Where("state = ?", model.ReservationStateActive).
		Update("expires_at", expired).Error)
	_, err = cartService.AddItem(GuestOwner("sess-abc"), variant.ID, 5)
	require.NoError(t, err)

	_, err = checkoutService.Checkout(user.ID)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Full rollback: stock, cart and lines untouched, no order rows.
	var stock model.StockItem
	require.NoError(t, testDB.Where("variant_id = ?", variant.ID).First(&stock).Error)
	assert.Equal(t, 10, stock.Quantity)

	var stored model.Cart
	require.NoError(t, testDB.First(&stored, cart.ID).Error)
	assert.Equal(t, model.CartStatusActive, stored.Status)

	var items int64
	testDB.Model(&model.CartItem{}).Where("cart_id = ?", cart.ID).Count(&items)
	assert.Equal(t, int64(1), items)

	var orders int64
	testDB.Model(&model.Order{}).Count(&orders)
	assert.Equal(t, int64(0), orders)
}
