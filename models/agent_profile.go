package models

import (
	"time"

	"gorm.io/gorm"
)

// AgentProfile is the 1:1 sub-record for accounts with RoleAgent.
// Created alongside agent registration; counters mutated by collection and
// processing actions, status by admin approval.
type AgentProfile struct {
	ID        string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AccountID string `gorm:"type:uuid;uniqueIndex;not null" json:"account_id"`

	// Contact details shown to users whose reports the agent collects.
	Phone string `gorm:"type:varchar(32)" json:"phone,omitempty"`
	Bio   string `gorm:"type:text" json:"bio,omitempty"`

	PointBalance   int64   `gorm:"not null;default:0" json:"point_balance"`
	CollectedCount int64   `gorm:"not null;default:0" json:"collected_count"`
	ProcessedCount int64   `gorm:"not null;default:0" json:"processed_count"`
	Rating         float64 `gorm:"not null;default:0" json:"rating"`
	RatingCount    int64   `gorm:"not null;default:0" json:"rating_count"`

	ServiceAreas []ServiceArea          `gorm:"foreignKey:AgentProfileID;constraint:OnDelete:CASCADE" json:"service_areas"`
	Documents    []VerificationDocument `gorm:"foreignKey:AgentProfileID;constraint:OnDelete:CASCADE" json:"documents"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ServiceArea is a named geo-circle an agent serves.
type ServiceArea struct {
	ID             string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AgentProfileID string  `gorm:"type:uuid;index;not null" json:"agent_profile_id"`
	Name           string  `gorm:"not null" json:"name"`
	Slug           string  `gorm:"index;not null" json:"slug"`
	Latitude       float64 `gorm:"not null" json:"latitude"`
	Longitude      float64 `gorm:"not null" json:"longitude"`
	RadiusKm       float64 `gorm:"not null" json:"radius_km"`
}

// VerificationDocument references an uploaded identity/licence document in
// object storage.
type VerificationDocument struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AgentProfileID string    `gorm:"type:uuid;index;not null" json:"agent_profile_id"`
	Kind           string    `gorm:"type:varchar(32);not null" json:"kind"` // e.g. "id_card", "licence"
	URL            string    `gorm:"type:text;not null" json:"url"`
	UploadedAt     time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
}
