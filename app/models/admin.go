package models

import "time"

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// AdminUser is a back-office account.
type AdminUser struct {
	ID           uint      `gorm:"primaryKey"                    json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null"             json:"-"`
	Role         string    `gorm:"size:32;not null;default:staff" json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}
