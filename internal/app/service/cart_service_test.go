package service

import (
	"testing"
	"time"

	"github.com/hanbitlab/storefront-backend/internal/app/model"
	"github.com/hanbitlab/storefront-backend/internal/app/repository"
	"github.com/hanbitlab/storefront-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCartServiceTest(t *testing.T) (CartService, *model.User, *model.ProductVariant, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	user := &model.User{Email: "test@example.com", Name: "Test User", Role: model.RoleUser}
	require.NoError(t, testDB.Create(user).Error)

	product := &model.Product{Title: "Test Product"}
	require.NoError(t, testDB.Create(product).Error)

	variant := &model.ProductVariant{
		ProductID: product.ID,
		SKU:       "TEST-SKU",
		Price:     25.0,
		Status:    model.VariantStatusActive,
	}
	require.NoError(t, testDB.Create(variant).Error)

	require.NoError(t, testDB.Create(&model.StockItem{VariantID: variant.ID, Quantity: 10}).Error)

	cartRepo := repository.NewCartRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	reservationSvc := NewReservationService(testDB, repository.NewInventoryRepository(testDB), 30*time.Minute)
	cartService := NewCartService(testDB, cartRepo, productRepo, reservationSvc)

	return cartService, user, variant, testDB
}

func TestCartService_GetCart_CreatesLazily(t *testing.T) {
	cartService, user, _, testDB := setupCartServiceTest(t)

	cart, totals, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)
	assert.Equal(t, model.CartStatusActive, cart.Status)
	require.NotNil(t, cart.UserID)
	assert.Equal(t, user.ID, *cart.UserID)
	assert.Nil(t, cart.SessionID)
	assert.Empty(t, cart.Items)
	assert.Zero(t, totals.Total)

	// Second access returns the same cart.
	again, _, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	var count int64
	testDB.Model(&model.Cart{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCartService_GetCart_GuestIsSeparate(t *testing.T) {
	cartService, user, _, _ := setupCartServiceTest(t)

	userCart, _, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)

	guestCart, _, err := cartService.GetCart(GuestOwner("sess-abc"))
	require.NoError(t, err)

	assert.NotEqual(t, userCart.ID, guestCart.ID)
	assert.Nil(t, guestCart.UserID)
	require.NotNil(t, guestCart.SessionID)
	assert.Equal(t, "sess-abc", *guestCart.SessionID)
}

func TestCartService_AddItem_CreatesLineAndHold(t *testing.T) {
	cartService, user, variant, testDB := setupCartServiceTest(t)

	item, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, variant.Price, item.UnitPrice)
	require.NotNil(t, item.ReservationID)

	var reservation model.StockReservation
	require.NoError(t, testDB.First(&reservation, *item.ReservationID).Error)
	assert.Equal(t, model.ReservationStateActive, reservation.State)
	assert.Equal(t, 3, reservation.Quantity)

	_, totals, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)
	assert.Equal(t, 75.0, totals.Total)
}

func TestCartService_AddItem_ReplacesQuantity(t *testing.T) {
	cartService, user, variant, testDB := setupCartServiceTest(t)

	first, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 2)
	require.NoError(t, err)

	// Adding the same variant again sets the line to the new quantity
	// rather than accumulating.
	second, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Quantity)

	cart, _, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	// The old hold is released; only the new one counts.
	var active int64
	testDB.Model(&model.StockReservation{}).
		Where("state = ?", model.ReservationStateActive).
		Count(&active)
	assert.Equal(t, int64(1), active)
}

func TestCartService_AddItem_InvalidQuantity(t *testing.T) {
	cartService, user, variant, _ := setupCartServiceTest(t)

	_, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCartService_AddItem_VariantNotFound(t *testing.T) {
	cartService, user, _, _ := setupCartServiceTest(t)

	_, err := cartService.AddItem(UserOwner(user.ID), 9999, 1)
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestCartService_AddItem_InactiveVariant(t *testing.T) {
	cartService, user, variant, testDB := setupCartServiceTest(t)

	require.NoError(t, testDB.Model(variant).Update("status", model.VariantStatusInactive).Error)

	_, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 1)
	assert.ErrorIs(t, err, ErrVariantInactive)
}

func TestCartService_AddItem_InsufficientStock(t *testing.T) {
	cartService, user, variant, testDB := setupCartServiceTest(t)

	_, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 11)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Nothing persisted: the rejected add leaves no line behind.
	var count int64
	testDB.Model(&model.CartItem{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCartService_UpdateItemQuantity(t *testing.T) {
	cartService, user, variant, testDB := setupCartServiceTest(t)

	item, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 2)
	require.NoError(t, err)

	updated, err := cartService.UpdateItemQuantity(UserOwner(user.ID), item.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Quantity)

	var active []model.StockReservation
	testDB.Where("state = ?", model.ReservationStateActive).Find(&active)
	require.Len(t, active, 1)
	assert.Equal(t, 7, active[0].Quantity)
}

func TestCartService_UpdateItemQuantity_NotOwned(t *testing.T) {
	cartService, user, variant, _ := setupCartServiceTest(t)

	// Line lives in a guest cart; the user must not reach it.
	guestItem, err := cartService.AddItem(GuestOwner("sess-abc"), variant.ID, 2)
	require.NoError(t, err)

	_, err = cartService.UpdateItemQuantity(UserOwner(user.ID), guestItem.ID, 3)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestCartService_RemoveItem(t *testing.T) {
	cartService, user, variant, testDB := setupCartServiceTest(t)

	item, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 2)
	require.NoError(t, err)

	require.NoError(t, cartService.RemoveItem(UserOwner(user.ID), item.ID))

	cart, _, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	var reservation model.StockReservation
	require.NoError(t, testDB.First(&reservation, *item.ReservationID).Error)
	assert.Equal(t, model.ReservationStateReleased, reservation.State)
}

func TestCartService_RemoveItem_NotFound(t *testing.T) {
	cartService, user, _, _ := setupCartServiceTest(t)

	err := cartService.RemoveItem(UserOwner(user.ID), 9999)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestCartService_Clear_KeepsCartActive(t *testing.T) {
	cartService, user, variant, testDB := setupCartServiceTest(t)

	_, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 2)
	require.NoError(t, err)

	require.NoError(t, cartService.Clear(UserOwner(user.ID)))

	cart, _, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)
	assert.Equal(t, model.CartStatusActive, cart.Status)
	assert.Empty(t, cart.Items)

	var active int64
	testDB.Model(&model.StockReservation{}).
		Where("state = ?", model.ReservationStateActive).
		Count(&active)
	assert.Equal(t, int64(0), active)
}

func TestCartService_Abandon(t *testing.T) {
	cartService, user, variant, testDB := setupCartServiceTest(t)

	_, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 2)
	require.NoError(t, err)

	abandonedCart, _, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)

	require.NoError(t, cartService.Abandon(UserOwner(user.ID)))

	var stored model.Cart
	require.NoError(t, testDB.First(&stored, abandonedCart.ID).Error)
	assert.Equal(t, model.CartStatusAbandoned, stored.Status)

	var active int64
	testDB.Model(&model.StockReservation{}).
		Where("state = ?", model.ReservationStateActive).
		Count(&active)
	assert.Equal(t, int64(0), active)

	// The next access starts a fresh active cart.
	fresh, _, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)
	assert.NotEqual(t, abandonedCart.ID, fresh.ID)
	assert.Equal(t, model.CartStatusActive, fresh.Status)
}

func TestCartService_MergeGuestCart_IntoEmptyUserCart(t *testing.T) {
	cartService, user, variant, testDB := setupCartServiceTest(t)

	_, err := cartService.AddItem(GuestOwner("sess-abc"), variant.ID, 2)
	require.NoError(t, err)
	guestCart, _, err := cartService.GetCart(GuestOwner("sess-abc"))
	require.NoError(t, err)

	require.NoError(t, cartService.MergeGuestCart("sess-abc", user.ID))

	cart, _, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, variant.ID, cart.Items[0].VariantID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	require.NotNil(t, cart.Items[0].ReservationID)

	// Guest state is gone.
	err = testDB.First(&model.Cart{}, guestCart.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var active []model.StockReservation
	testDB.Where("state = ?", model.ReservationStateActive).Find(&active)
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].Quantity)
	assert.Equal(t, CartReference(cart.ID), active[0].Reference)
}

func TestCartService_MergeGuestCart_SumsQuantities(t *testing.T) {
	cartService, user, variant, testDB := setupCartServiceTest(t)

	_, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 3)
	require.NoError(t, err)
	_, err = cartService.AddItem(GuestOwner("sess-abc"), variant.ID, 4)
	require.NoError(t, err)

	require.NoError(t, cartService.MergeGuestCart("sess-abc", user.ID))

	cart, totals, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 7, cart.Items[0].Quantity)
	assert.Equal(t, 7*variant.Price, totals.Total)

	var active []model.StockReservation
	testDB.Where("state = ?", model.ReservationStateActive).Find(&active)
	require.Len(t, active, 1)
	assert.Equal(t, 7, active[0].Quantity)
}

func TestCartService_MergeGuestCart_AllOrNothing(t *testing.T) {
	cartService, user, variant, testDB := setupCartServiceTest(t)

	// Both carts hold 2 of a 4-unit variant. A third party grabbing one
	// unit before the merge makes the summed re-reserve of 4 impossible,
	// which must roll back the whole merge.
	product := &model.Product{Title: "Second Product"}
	require.NoError(t, testDB.Create(product).Error)
	scarce := &model.ProductVariant{
		ProductID: product.ID,
		SKU:       "SCARCE-SKU",
		Price:     5.0,
		Status:    model.VariantStatusActive,
	}
	require.NoError(t, testDB.Create(scarce).Error)
	require.NoError(t, testDB.Create(&model.StockItem{VariantID: scarce.ID, Quantity: 4}).Error)

	_, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 6)
	require.NoError(t, err)
	_, err = cartService.AddItem(UserOwner(user.ID), scarce.ID, 2)
	require.NoError(t, err)
	_, err = cartService.AddItem(GuestOwner("sess-abc"), variant.ID, 3)
	require.NoError(t, err)
	_, err = cartService.AddItem(GuestOwner("sess-abc"), scarce.ID, 2)
	require.NoError(t, err)

	expires := time.Now().Add(time.Hour)
	require.NoError(t, testDB.Create(&model.StockReservation{
		VariantID: scarce.ID,
		Quantity:  1,
		Reference: "cart:999",
		State:     model.ReservationStateActive,
		ExpiresAt: &expires,
	}).Error)

	err = cartService.MergeGuestCart("sess-abc", user.ID)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Both carts are untouched.
	userCart, _, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)
	require.Len(t, userCart.Items, 2)
	for _, item := range userCart.Items {
		if item.VariantID == variant.ID {
			assert.Equal(t, 6, item.Quantity)
		} else {
			assert.Equal(t, 2, item.Quantity)
		}
	}

	guestCart, _, err := cartService.GetCart(GuestOwner("sess-abc"))
	require.NoError(t, err)
	assert.Len(t, guestCart.Items, 2)
}

func TestCartService_MergeGuestCart_NoGuestCart(t *testing.T) {
	cartService, user, _, _ := setupCartServiceTest(t)

	// Nothing to merge is not an error.
	assert.NoError(t, cartService.MergeGuestCart("sess-none", user.ID))
}

func TestCartService_AbandonStaleCarts(t *testing.T) {
	cartService, user, variant, testDB := setupCartServiceTest(t)

	_, err := cartService.AddItem(UserOwner(user.ID), variant.ID, 2)
	require.NoError(t, err)
	staleCart, _, err := cartService.GetCart(UserOwner(user.ID))
	require.NoError(t, err)

	freshCart, _, err := cartService.GetCart(GuestOwner("sess-fresh"))
	require.NoError(t, err)

	// Backdate one cart past the TTL; leave the other recent.
	old := time.Now().Add(-121 * time.Minute)
	require.NoError(t, testDB.Model(&model.Cart{}).Where("id = ?", staleCart.ID).
		Update("updated_at", old).Error)
	recent := time.Now().Add(-60 * time.Minute)
	require.NoError(t, testDB.Model(&model.Cart{}).Where("id = ?", freshCart.ID).
		Update("updated_at", recent).Error)

	count, err := cartService.AbandonStaleCarts(120 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var stored model.Cart
	require.NoError(t, testDB.First(&stored, staleCart.ID).Error)
	assert.Equal(t, model.CartStatusAbandoned, stored.Status)

	var storedFresh model.Cart
	require.NoError(t, testDB.First(&storedFresh, freshCart.ID).Error)
	assert.Equal(t, model.CartStatusActive, storedFresh.Status)

	// Reservations of the reaped cart are gone from availability.
	var active int64
	testDB.Model(&model.StockReservation{}).
		Where("state = ?", model.ReservationStateActive).
		Count(&active)
	assert.Equal(t, int64(0), active)

	// Re-running the sweep finds nothing new.
	count, err = cartService.AbandonStaleCarts(120 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
