package auth

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           uint64     `gorm:"primaryKey"`
	Email        string     `gorm:"uniqueIndex;not null"`
	PasswordHash string     `gorm:"not null"`
	DisplayName  string     `gorm:"not null"`
	Role         Role       `gorm:"type:text;index;not null;default:'user'"`
	IsActive     bool       `gorm:"not null;default:true"`
	IsLoggedIn   bool       `gorm:"not null;default:false"`
	LoginAttempt int        `gorm:"column:login_attempts;not null;default:0"`
	LastLoginAt  *time.Time `gorm:"type:timestamptz"`
	CreatedAt    time.Time  `gorm:"not null;default:now()"`
	UpdatedAt    time.Time  `gorm:"not null;default:now()"`
}
