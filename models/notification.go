package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationType names the domain event a notification was fanned out from.
type NotificationType string

const (
	NotifyWasteReported  NotificationType = "waste_reported"
	NotifyAgentApproved  NotificationType = "agent_approved"
	NotifyAgentRejected  NotificationType = "agent_rejected"
	NotifyChainDivergent NotificationType = "chain_divergent"
)

// Notification is a fan-out record of a domain event addressed to one
// recipient. Mutated only by read/delete from the recipient.
type Notification struct {
	ID          string           `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	RecipientID string           `gorm:"type:uuid;index;not null" json:"recipient_id"`
	Type        NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title       string           `gorm:"not null" json:"title"`
	Message     string           `gorm:"type:text" json:"message"`
	ReferenceID string           `gorm:"type:uuid" json:"reference_id,omitempty"`
	Read        bool             `gorm:"default:false;index" json:"read"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
