// models/registration_mirror.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RegistrationMirror is the local read-model of on-chain registry state for a
// wallet address. Written only by the registry sync worker and by the
// reconciler's post-write re-reads; handlers read it instead of hitting the
// chain on every request.
// Table name: registration_mirror
type RegistrationMirror struct {
	ID           string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Address      string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"address"` // Primary lookup key
	IsRegistered bool            `gorm:"not null" json:"is_registered"`
	ChainRole    Role            `gorm:"type:varchar(16)" json:"chain_role"`
	PointBalance decimal.Decimal `gorm:"type:numeric(38,0);not null;default:0" json:"point_balance"`
	TokenBalance decimal.Decimal `gorm:"type:numeric(38,0);not null;default:0" json:"token_balance"`

	LastCheckedAt time.Time `gorm:"not null" json:"last_checked_at"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (RegistrationMirror) TableName() string { return "registration_mirror" }
