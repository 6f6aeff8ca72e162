package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// PlasticType enumerates the recyclable material categories.
type PlasticType string

const (
	PlasticPET   PlasticType = "PET"
	PlasticHDPE  PlasticType = "HDPE"
	PlasticPVC   PlasticType = "PVC"
	PlasticLDPE  PlasticType = "LDPE"
	PlasticPP    PlasticType = "PP"
	PlasticPS    PlasticType = "PS"
	PlasticOther PlasticType = "other"
)

// ValidPlasticType reports whether t is a known plastic category.
func ValidPlasticType(t PlasticType) bool {
	switch t {
	case PlasticPET, PlasticHDPE, PlasticPVC, PlasticLDPE, PlasticPP, PlasticPS, PlasticOther:
		return true
	}
	return false
}

// ReportStatus is monotonic: reported → collected → processed, no reverse
// transitions.
type ReportStatus string

const (
	StatusReported  ReportStatus = "reported"
	StatusCollected ReportStatus = "collected"
	StatusProcessed ReportStatus = "processed"
)

// MirrorOutcome records how the best-effort on-chain mirror of a transition
// went. Off-chain state is authoritative either way.
type MirrorOutcome string

const (
	MirrorConfirmed        MirrorOutcome = "confirmed"
	MirrorDegradedOffchain MirrorOutcome = "degraded"
	MirrorNotAttempted     MirrorOutcome = ""
)

var (
	ErrNotCollectable   = errors.New("report is not in reported state")
	ErrNotProcessable   = errors.New("report is not in collected state")
	ErrOwnerCollect     = errors.New("owner cannot collect their own report")
	ErrNotReportAgent   = errors.New("only the agent who collected the report may process it")
	ErrAgentNotApproved = errors.New("agent is not approved")
)

// WasteReport is a user-submitted claim of recyclable material.
type WasteReport struct {
	ID            string       `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	OwnerID       string       `gorm:"type:uuid;index;not null" json:"owner_id"`
	PlasticType   PlasticType  `gorm:"type:varchar(16);not null" json:"plastic_type"`
	QuantityGrams int64        `gorm:"not null" json:"quantity_grams"`
	Latitude      float64      `json:"latitude"`
	Longitude     float64      `json:"longitude"`
	Status        ReportStatus `gorm:"type:varchar(16);not null;default:'reported';index" json:"status"`

	// QRCodeHash is the opaque unique identifier printed on the physical bag.
	QRCodeHash string `gorm:"uniqueIndex;not null" json:"qr_code_hash"`

	AssignedAgentID *string `gorm:"type:uuid;index" json:"assigned_agent_id,omitempty"`

	ReportTxHash  *string       `gorm:"type:varchar(80)" json:"report_tx_hash,omitempty"`
	CollectTxHash *string       `gorm:"type:varchar(80)" json:"collect_tx_hash,omitempty"`
	ProcessTxHash *string       `gorm:"type:varchar(80)" json:"process_tx_hash,omitempty"`
	LastMirror    MirrorOutcome `gorm:"type:varchar(16)" json:"last_mirror,omitempty"`

	CollectedAt *time.Time `json:"collected_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// GuardCollect checks the reported→collected transition for the acting
// account. Owners cannot self-collect and only approved agents may collect.
func (r *WasteReport) GuardCollect(actor *Account) error {
	if !actor.IsApprovedAgent() {
		return ErrAgentNotApproved
	}
	if actor.ID == r.OwnerID {
		return ErrOwnerCollect
	}
	if r.Status != StatusReported {
		return ErrNotCollectable
	}
	return nil
}

// GuardProcess checks the collected→processed transition: only the same agent
// that collected the report may advance it.
func (r *WasteReport) GuardProcess(actor *Account) error {
	if !actor.IsApprovedAgent() {
		return ErrAgentNotApproved
	}
	if r.Status != StatusCollected {
		return ErrNotProcessable
	}
	if r.AssignedAgentID == nil || *r.AssignedAgentID != actor.ID {
		return ErrNotReportAgent
	}
	return nil
}
