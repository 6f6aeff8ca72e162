package models

import (
	"time"

	"gorm.io/gorm"
)

// Role of an off-chain account.
type Role string

const (
	RoleRegular Role = "regular"
	RoleAgent   Role = "agent"
)

// AgentApprovalStatus applies only to accounts with RoleAgent.
type AgentApprovalStatus string

const (
	AgentPending  AgentApprovalStatus = "pending"
	AgentApproved AgentApprovalStatus = "approved"
	AgentRejected AgentApprovalStatus = "rejected"
)

// ChainStatus tracks how the account relates to its on-chain registration.
// "pending" is the explicit divergence flag: the account exists off-chain but
// its on-chain registration could not be confirmed yet.
type ChainStatus string

const (
	ChainStatusNone       ChainStatus = "none"
	ChainStatusRegistered ChainStatus = "registered"
	ChainStatusPending    ChainStatus = "pending"
)

// Account is the off-chain user identity record.
// WalletAddress is nullable and unique when present: a wallet address maps to
// at most one account.
type Account struct {
	ID            string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username      string  `gorm:"index;not null" json:"username"`
	Email         string  `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string  `gorm:"not null" json:"-"`
	Role          Role    `gorm:"type:varchar(16);not null;default:'regular'" json:"role"`
	WalletAddress *string `gorm:"type:varchar(64);uniqueIndex" json:"wallet_address,omitempty"`

	ChainStatus ChainStatus `gorm:"type:varchar(16);not null;default:'none';index" json:"chain_status"`

	// AgentStatus is meaningful only when Role == RoleAgent.
	AgentStatus AgentApprovalStatus `gorm:"type:varchar(16);default:'pending'" json:"agent_status,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// OnchainRegistered reports whether the account's registration is confirmed.
func (a *Account) OnchainRegistered() bool {
	return a.ChainStatus == ChainStatusRegistered
}

// IsApprovedAgent reports whether the account may act as a collection agent.
func (a *Account) IsApprovedAgent() bool {
	return a.Role == RoleAgent && a.AgentStatus == AgentApproved
}
