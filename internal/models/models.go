package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Config represents the global configuration for the deployment
// This is a singleton model (only one row should exist)
type Config struct {
	BaseModel
	JWTSecret string `json:"-" gorm:"type:varchar(64);not null"` // Auto-generated on first start (64 hex chars)
}

// Role is a user's access level
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Roles lists every valid role
var Roles = []Role{RoleAdmin, RoleUser, RoleGuest}

// User represents a local user account
type User struct {
	BaseModel
	Email        string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Name         string    `json:"name" gorm:"type:varchar(255);not null"`
	Role         Role      `json:"role" gorm:"type:varchar(16);not null;default:user"`
	Avatar       string    `json:"avatar,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RevokedToken records a logged-out JWT until it would have expired anyway
type RevokedToken struct {
	BaseModel
	TokenID   string    `json:"tokenId" gorm:"type:varchar(26);uniqueIndex;not null"`
	UserID    string    `json:"userId" gorm:"type:varchar(26);index;not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"index;not null"`
}

// PasswordReset is a single-use password reset token. Only its hash is stored.
type PasswordReset struct {
	BaseModel
	UserID    string     `json:"userId" gorm:"type:varchar(26);index;not null"`
	TokenHash string     `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt time.Time  `json:"expiresAt" gorm:"not null"`
	UsedAt    *time.Time `json:"usedAt"`

	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	// Collect all models
	models := []interface{}{
		&User{}, &Config{}, &RevokedToken{}, &PasswordReset{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}
