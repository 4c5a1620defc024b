package repositories

import (
	"errors"
	"fmt"
	"time"

	"bookshelf/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMSessionStorage persists Fiber sessions in the sessions table.
// It satisfies fiber.Storage.
type GORMSessionStorage struct {
	db *gorm.DB
}

// NewGORMSessionStorage creates a new instance of GORMSessionStorage.
func NewGORMSessionStorage(db *gorm.DB) *GORMSessionStorage {
	return &GORMSessionStorage{
		db: db,
	}
}

// Get returns the stored value, or nil when the key is missing or expired.
func (s *GORMSessionStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	var rec models.SessionRecord
	err := s.db.First(&rec, "id = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if rec.ExpiresAt != 0 && rec.ExpiresAt <= time.Now().Unix() {
		return nil, nil
	}
	return rec.Data, nil
}

// Set stores val under key. A zero exp means the entry never expires.
func (s *GORMSessionStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	rec := models.SessionRecord{ID: key, Data: val}
	if exp > 0 {
		rec.ExpiresAt = time.Now().Add(exp).Unix()
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *GORMSessionStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	if err := s.db.Delete(&models.SessionRecord{}, "id = ?", key).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Reset removes every session.
func (s *GORMSessionStorage) Reset() error {
	if err := s.db.Where("1 = 1").Delete(&models.SessionRecord{}).Error; err != nil {
		return fmt.Errorf("failed to reset sessions: %w", err)
	}
	return nil
}

// Close is a no-op; the database handle is owned by the caller.
func (s *GORMSessionStorage) Close() error {
	return nil
}

// DeleteExpired removes expired sessions and returns how many were removed.
func (s *GORMSessionStorage) DeleteExpired() (int64, error) {
	res := s.db.Where("expires_at <> 0 AND expires_at <= ?", time.Now().Unix()).Delete(&models.SessionRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
