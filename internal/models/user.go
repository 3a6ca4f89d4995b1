package models

import "time"

// User is a registered account. Email is the account identifier used for the
// remote mirror and is stored lower-cased.
type User struct {
	ID           uint64 `gorm:"primaryKey"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	Username     string `gorm:"type:varchar(32);uniqueIndex;not null"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
