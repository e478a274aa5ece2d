package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/hanbitlab/storefront-backend/internal/app/model"
	"github.com/hanbitlab/storefront-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCartRepoTest(t *testing.T) (CartRepository, *model.User, *model.ProductVariant, *gorm.DB) {
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
		Price:     10.0,
		Status:    model.VariantStatusActive,
	}
	require.NoError(t, testDB.Create(variant).Error)

	return NewCartRepository(testDB), user, variant, testDB
}

func TestCartRepository_CreateAndFind(t *testing.T) {
	repo, user, _, _ := setupCartRepoTest(t)

	cart := &model.Cart{UserID: &user.ID, Status: model.CartStatusActive}
	require.NoError(t, repo.Create(cart))
	assert.NotZero(t, cart.ID)

	found, err := repo.FindActiveByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, found.ID)
}

func TestCartRepository_FindActiveBySessionID(t *testing.T) {
	repo, _, _, _ := setupCartRepoTest(t)

	sessionID := "sess-abc"
	cart := &model.Cart{SessionID: &sessionID, Status: model.CartStatusActive}
	require.NoError(t, repo.Create(cart))

	found, err := repo.FindActiveBySessionID("sess-abc")
	require.NoError(t, err)
	assert.Equal(t, cart.ID, found.ID)

	_, err = repo.FindActiveBySessionID("sess-missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCartRepository_UpdateStatus_HidesFromActiveLookup(t *testing.T) {
	repo, user, _, _ := setupCartRepoTest(t)

	cart := &model.Cart{UserID: &user.ID, Status: model.CartStatusActive}
	require.NoError(t, repo.Create(cart))

	require.NoError(t, repo.UpdateStatus(cart.ID, model.CartStatusAbandoned))

	_, err := repo.FindActiveByUserID(user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCartRepository_FindStaleActive(t *testing.T) {
	repo, user, _, testDB := setupCartRepoTest(t)

	stale := &model.Cart{UserID: &user.ID, Status: model.CartStatusActive}
	require.NoError(t, repo.Create(stale))
	require.NoError(t, testDB.Model(&model.Cart{}).Where("id = ?", stale.ID).
		Update("updated_at", time.Now().Add(-3*time.Hour)).Error)

	sessionID := "sess-fresh"
	fresh := &model.Cart{SessionID: &sessionID, Status: model.CartStatusActive}
	require.NoError(t, repo.Create(fresh))

	// Abandoned carts are never stale candidates, however old.
	sessionID2 := "sess-done"
	done := &model.Cart{SessionID: &sessionID2, Status: model.CartStatusAbandoned}
	require.NoError(t, repo.Create(done))
	require.NoError(t, testDB.Model(&model.Cart{}).Where("id = ?", done.ID).
		Update("updated_at", time.Now().Add(-3*time.Hour)).Error)

	carts, err := repo.FindStaleActive(time.Now().Add(-2 * time.Hour))
	require.NoError(t, err)
	require.Len(t, carts, 1)
	assert.Equal(t, stale.ID, carts[0].ID)
}

func TestCartRepository_Touch(t *testing.T) {
	repo, user, _, testDB := setupCartRepoTest(t)

	cart := &model.Cart{UserID: &user.ID, Status: model.CartStatusActive}
	require.NoError(t, repo.Create(cart))
	require.NoError(t, testDB.Model(&model.Cart{}).Where("id = ?", cart.ID).
		Update("updated_at", time.Now().Add(-3*time.Hour)).Error)

	require.NoError(t, repo.Touch(cart.ID))

	carts, err := repo.FindStaleActive(time.Now().Add(-2 * time.Hour))
	require.NoError(t, err)
	assert.Empty(t, carts)
}

func TestCartRepository_Items(t *testing.T) {
	repo, user, variant, _ := setupCartRepoTest(t)

	cart := &model.Cart{UserID: &user.ID, Status: model.CartStatusActive}
	require.NoError(t, repo.Create(cart))

	item := &model.CartItem{
		CartID:    cart.ID,
		VariantID: variant.ID,
		Quantity:  2,
		UnitPrice: variant.Price,
	}
	require.NoError(t, repo.CreateItem(item))
	assert.NotZero(t, item.ID)

	item.Quantity = 4
	require.NoError(t, repo.UpdateItem(item))

	items, err := repo.FindItemsByCartID(cart.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 4, items[0].Quantity)
	assert.Equal(t, variant.SKU, items[0].Variant.SKU)

	require.NoError(t, repo.DeleteItem(item.ID))
	items, err = repo.FindItemsByCartID(cart.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCartRepository_WithTx_RollbackDiscardsWrites(t *testing.T) {
	repo, user, _, testDB := setupCartRepoTest(t)

	boom := errors.New("boom")
	err := testDB.Transaction(func(tx *gorm.DB) error {
		cart := &model.Cart{UserID: &user.ID, Status: model.CartStatusActive}
		if err := repo.WithTx(tx).Create(cart); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The write was bound to the rolled-back transaction.
	_, err = repo.FindActiveByUserID(user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCartRepository_DeleteItemsByCartID(t *testing.T) {
	repo, user, variant, _ := setupCartRepoTest(t)

	cart := &model.Cart{UserID: &user.ID, Status: model.CartStatusActive}
	require.NoError(t, repo.Create(cart))
	require.NoError(t, repo.CreateItem(&model.CartItem{
		CartID:    cart.ID,
		VariantID: variant.ID,
		Quantity:  1,
	}))

	require.NoError(t, repo.DeleteItemsByCartID(cart.ID))

	items, err := repo.FindItemsByCartID(cart.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}
