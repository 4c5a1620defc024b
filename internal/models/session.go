package models

// SessionRecord is a persisted server-side session.
type SessionRecord struct {
	ID        string `gorm:"primaryKey;type:varchar(128)"`
	Data      []byte `gorm:"not null"`
	ExpiresAt int64  `gorm:"index"` // unix seconds, 0 = no expiry
}

func (SessionRecord) TableName() string {
	return "sessions"
}
