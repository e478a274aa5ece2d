package service

import (
	"net/http"
	"testing"
	"time"

	"github.com/hanbitlab/storefront-backend/internal/app/model"
	"github.com/hanbitlab/storefront-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupIdempotencyTest(t *testing.T) (IdempotencyService, *model.User, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	user := &model.User{Email: "test@example.com", Name: "Test User", Role: model.RoleUser}
	require.NoError(t, testDB.Create(user).Error)

	svc := NewIdempotencyService(testDB, 24*time.Hour)
	return svc, user, testDB
}

func TestIdempotencyService_Begin_FirstWriterWins(t *testing.T) {
	svc, user, _ := setupIdempotencyTest(t)

	record, stored, err := svc.Begin(user.ID, "/cart/checkout", "POST", "key-1", "")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Nil(t, stored)
	assert.False(t, record.Completed())
}

func TestIdempotencyService_Begin_InFlightConflict(t *testing.T) {
	svc, user, _ := setupIdempotencyTest(t)

	_, _, err := svc.Begin(user.ID, "/cart/checkout", "POST", "key-1", "")
	require.NoError(t, err)

	// Same key again while the first handler has not completed.
	record, stored, err := svc.Begin(user.ID, "/cart/checkout", "POST", "key-1", "")
	assert.ErrorIs(t, err, ErrIdempotencyInFlight)
	assert.Nil(t, record)
	assert.Nil(t, stored)
}

func TestIdempotencyService_Begin_ReplaysStoredResponse(t *testing.T) {
	svc, user, _ := setupIdempotencyTest(t)

	record, _, err := svc.Begin(user.ID, "/cart/checkout", "POST", "key-1", "")
	require.NoError(t, err)

	body := []byte(`{"status":"ordered","order_id":42}`)
	require.NoError(t, svc.Complete(record.ID, http.StatusOK, body))

	newRecord, stored, err := svc.Begin(user.ID, "/cart/checkout", "POST", "key-1", "")
	require.NoError(t, err)
	assert.Nil(t, newRecord)
	require.NotNil(t, stored)
	assert.Equal(t, http.StatusOK, stored.Code)
	assert.Equal(t, body, stored.Body)
}

func TestIdempotencyService_Begin_HashMismatch(t *testing.T) {
	svc, user, _ := setupIdempotencyTest(t)

	hashA := ComputeRequestHash([]byte(`{"note":"a"}`))
	hashB := ComputeRequestHash([]byte(`{"note":"b"}`))
	require.NotEqual(t, hashA, hashB)

	_, _, err := svc.Begin(user.ID, "/cart/checkout", "POST", "key-1", hashA)
	require.NoError(t, err)

	_, _, err = svc.Begin(user.ID, "/cart/checkout", "POST", "key-1", hashB)
	assert.ErrorIs(t, err, ErrIdempotencyKeyReused)
}

func TestIdempotencyService_Begin_ScopedByUserAndPath(t *testing.T) {
	svc, user, testDB := setupIdempotencyTest(t)

	other := &model.User{Email: "other@example.com", Name: "Other", Role: model.RoleUser}
	require.NoError(t, testDB.Create(other).Error)

	_, _, err := svc.Begin(user.ID, "/cart/checkout", "POST", "key-1", "")
	require.NoError(t, err)

	// Same key under a different user or path is a fresh record.
	record, stored, err := svc.Begin(other.ID, "/cart/checkout", "POST", "key-1", "")
	require.NoError(t, err)
	assert.NotNil(t, record)
	assert.Nil(t, stored)

	record, stored, err = svc.Begin(user.ID, "/cart/abandon", "POST", "key-1", "")
	require.NoError(t, err)
	assert.NotNil(t, record)
	assert.Nil(t, stored)
}

func TestIdempotencyService_ComputeRequestHash_Canonical(t *testing.T) {
	// Key order must not matter.
	a := ComputeRequestHash([]byte(`{"x":1,"y":2}`))
	b := ComputeRequestHash([]byte(`{"y":2,"x":1}`))
	assert.Equal(t, a, b)

	assert.Empty(t, ComputeRequestHash(nil))
	assert.NotEmpty(t, ComputeRequestHash([]byte(`{"x":1}`)))
}

func TestIdempotencyService_CleanupExpired(t *testing.T) {
	svc, user, testDB := setupIdempotencyTest(t)

	record, _, err := svc.Begin(user.ID, "/cart/checkout", "POST", "key-1", "")
	require.NoError(t, err)
	_, _, err = svc.Begin(user.ID, "/cart/checkout", "POST", "key-2", "")
	require.NoError(t, err)

	// Push one record past its expiry.
	require.NoError(t, testDB.Model(&model.IdempotencyKey{}).
		Where("id = ?", record.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	count, err := svc.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var remaining int64
	testDB.Model(&model.IdempotencyKey{}).Count(&remaining)
	assert.Equal(t, int64(1), remaining)
}
