package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the member identity consumed by tab ownership and close
// authorization. Accounts are provisioned out of band.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string    `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;type:text;not null"`
	Admin     bool      `gorm:"column:admin;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
