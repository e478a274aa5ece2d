package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hanbitlab/storefront-backend/internal/app/model"
	"github.com/hanbitlab/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrIdempotencyInFlight  = errors.New("an identical request is already in progress")
	ErrIdempotencyKeyReused = errors.New("idempotency key reused with a different request payload")
)

// StoredResponse is a previously completed request's recorded outcome.
type StoredResponse struct {
	Code int
	Body []byte
}

// IdempotencyService serializes retried mutating requests. Begin is an
// atomic insert against the unique (user, path, method, key) index: the
// first caller wins and must run the handler, later callers either get
// the stored response or a conflict while the first is still in flight.
type IdempotencyService interface {
	Begin(userID uint, path, method, key, requestHash string) (*model.IdempotencyKey, *StoredResponse, error)
	Complete(recordID uint, code int, body []byte) error
	Lookup(userID uint, path, method, key string) (*model.IdempotencyKey, error)
	CleanupExpired() (int, error)
}

type idempotencyService struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewIdempotencyService(db *gorm.DB, ttl time.Duration) IdempotencyService {
	return &idempotencyService{db: db, ttl: ttl}
}

// ComputeRequestHash returns a canonical SHA-256 fingerprint of the
// request body, or empty for an empty body. Key order is stabilized so
// equivalent payloads hash identically.
func ComputeRequestHash(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if canonical, err := json.Marshal(decoded); err == nil {
			body = canonical
		}
	}

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func (s *idempotencyService) Begin(userID uint, path, method, key, requestHash string) (*model.IdempotencyKey, *StoredResponse, error) {
	record := &model.IdempotencyKey{
		Key:         key,
		UserID:      userID,
		Path:        path,
		Method:      strings.ToUpper(method),
		RequestHash: requestHash,
		ExpiresAt:   time.Now().Add(s.ttl),
	}

	err := s.db.Create(record).Error
	if err == nil {
		logger.Debug("Idempotency record created", map[string]interface{}{
			"user_id": userID,
			"path":    path,
			"key":     key,
		})
		return record, nil, nil
	}
	if !isDuplicateKeyError(err) {
		logger.Error("Failed to create idempotency record", err, map[string]interface{}{
			"user_id": userID,
			"key":     key,
		})
		return nil, nil, err
	}

	existing, lookupErr := s.Lookup(userID, path, method, key)
	if lookupErr != nil {
		return nil, nil, lookupErr
	}

	if existing.RequestHash != "" && requestHash != "" && existing.RequestHash != requestHash {
		logger.Warn("Idempotency key reused with different payload", map[string]interface{}{
			"user_id": userID,
			"key":     key,
		})
		return nil, nil, ErrIdempotencyKeyReused
	}

	if existing.Completed() {
		logger.Info("Replaying stored idempotent response", map[string]interface{}{
			"user_id":       userID,
			"key":           key,
			"response_code": existing.ResponseCode,
		})
		return nil, &StoredResponse{Code: existing.ResponseCode, Body: existing.ResponseBody}, nil
	}

	// First writer is still running the handler.
	return nil, nil, ErrIdempotencyInFlight
}

func (s *idempotencyService) Complete(recordID uint, code int, body []byte) error {
	now := time.Now()
	err := s.db.Model(&model.IdempotencyKey{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"response_code": code,
			"response_body": body,
			"completed_at":  now,
		}).Error
	if err != nil {
		logger.Error("Failed to complete idempotency record", err, map[string]interface{}{
			"record_id": recordID,
		})
		return err
	}
	return nil
}

func (s *idempotencyService) Lookup(userID uint, path, method, key string) (*model.IdempotencyKey, error) {
	var record model.IdempotencyKey
	err := s.db.Where("user_id = ? AND path = ? AND method = ? AND key = ?",
		userID, path, strings.ToUpper(method), key).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CleanupExpired purges ledger rows past their expiry.
func (s *idempotencyService) CleanupExpired() (int, error) {
	result := s.db.Where("expires_at < ?", time.Now()).Delete(&model.IdempotencyKey{})
	if result.Error != nil {
		logger.Error("Failed to delete expired idempotency records", result.Error, nil)
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		logger.Info("Expired idempotency records deleted", map[string]interface{}{
			"count": result.RowsAffected,
		})
	}
	return int(result.RowsAffected), nil
}

// isDuplicateKeyError matches unique-constraint violations across
// Postgres and the SQLite test database.
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
