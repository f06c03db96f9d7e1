package models

import "time"

// User is an account keyed by its normalized (lowercase, trimmed)
// username. Usernames are unique.
type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

func (User) TableName() string { return "users" }
