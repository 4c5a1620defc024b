package repositories

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrRecordNotFound is returned when no row matches, including rows owned by someone else.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when a write would break a uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate key")
)

// translateError maps driver and GORM errors onto the repository sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return ErrDuplicateKey
	}
	return err
}
