package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"

	"waste-rewards-system/models"
	"waste-rewards-system/queue"
	"waste-rewards-system/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

var ErrAgentProfileNotFound = errors.New("agent profile not found")

// AgentService manages agent profiles: approval workflow, service areas and
// verification documents.
type AgentService struct {
	DB     *gorm.DB
	Events queue.Producer
}

func NewAgentService(db *gorm.DB, events queue.Producer) *AgentService {
	return &AgentService{DB: db, Events: events}
}

// Profile loads the agent sub-record for an account, with areas and documents.
func (s *AgentService) Profile(ctx context.Context, accountID string) (*models.AgentProfile, error) {
	var profile models.AgentProfile
	err := s.DB.WithContext(ctx).
		Preload("ServiceAreas").
		Preload("Documents").
		Where("account_id = ?", accountID).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// ProfileInput carries the agent-editable profile fields.
type ProfileInput struct {
	Phone string `json:"phone"`
	Bio   string `json:"bio"`
}

// UpdateProfile updates the agent's contact details.
func (s *AgentService) UpdateProfile(ctx context.Context, accountID string, in ProfileInput) (*models.AgentProfile, error) {
	res := s.DB.WithContext(ctx).Model(&models.AgentProfile{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{"phone": in.Phone, "bio": in.Bio})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrAgentProfileNotFound
	}
	return s.Profile(ctx, accountID)
}

// ServiceAreaInput is one named geo-circle.
type ServiceAreaInput struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"radius_km"`
}

// ReplaceServiceAreas swaps the agent's service areas for the given set.
func (s *AgentService) ReplaceServiceAreas(ctx context.Context, accountID string, areas []ServiceAreaInput) (*models.AgentProfile, error) {
	for _, a := range areas {
		if a.Name == "" || a.RadiusKm <= 0 {
			return nil, fmt.Errorf("%w: each service area needs a name and a positive radius", ErrValidation)
		}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.AgentProfile
		if err := tx.Where("account_id = ?", accountID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAgentProfileNotFound
			}
			return err
		}
		if err := tx.Unscoped().Where("agent_profile_id = ?", profile.ID).Delete(&models.ServiceArea{}).Error; err != nil {
			return err
		}
		for _, a := range areas {
			area := models.ServiceArea{
				AgentProfileID: profile.ID,
				Name:           a.Name,
				Slug:           slug.Make(a.Name),
				Latitude:       a.Latitude,
				Longitude:      a.Longitude,
				RadiusKm:       a.RadiusKm,
			}
			if err := tx.Create(&area).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Profile(ctx, accountID)
}

// UploadDocument stores a verification document in object storage and records
// the reference.
func (s *AgentService) UploadDocument(ctx context.Context, accountID, kind string, file *multipart.FileHeader) (*models.VerificationDocument, error) {
	profile, err := s.Profile(ctx, accountID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("verification/%s/%s", profile.ID, uuid.NewString())
	url, err := utils.UploadFile(file, key)
	if err != nil {
		return nil, fmt.Errorf("upload verification document: %w", err)
	}

	doc := models.VerificationDocument{
		AgentProfileID: profile.ID,
		Kind:           kind,
		URL:            url,
	}
	if err := s.DB.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// PendingAgents lists agent accounts awaiting approval.
func (s *AgentService) PendingAgents(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := s.DB.WithContext(ctx).
		Where("role = ? AND agent_status = ?", models.RoleAgent, models.AgentPending).
		Order("created_at ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// Decide approves or rejects a pending agent and notifies them.
func (s *AgentService) Decide(ctx context.Context, accountID string, approve bool) (*models.Account, error) {
	status := models.AgentRejected
	if approve {
		status = models.AgentApproved
	}

	var account models.Account
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&account, "id = ? AND role = ?", accountID, models.RoleAgent).Error; err != nil {
			return err
		}
		account.AgentStatus = status
		return tx.Save(&account).Error
	})
	if err != nil {
		return nil, err
	}

	decision := "rejected"
	message := "your agent application was rejected"
	if approve {
		decision = "approved"
		message = "your agent application was approved"
	}
	if err := s.Events.Publish(ctx, queue.Event{
		Type:      queue.EventAgentDecision,
		AccountID: accountID,
		Decision:  decision,
		Message:   message,
	}); err != nil {
		log.Printf("⚠️ [AGENT] failed to publish decision event for %s: %v", accountID, err)
	}

	log.Printf("✅ [AGENT] account %s agent status set to %s", accountID, status)
	return &account, nil
}

// Rate records a rating for an agent and maintains the running average.
func (s *AgentService) Rate(ctx context.Context, accountID string, stars int) (*models.AgentProfile, error) {
	if stars < 1 || stars > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.AgentProfile
		if err := tx.Where("account_id = ?", accountID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAgentProfileNotFound
			}
			return err
		}
		total := profile.Rating*float64(profile.RatingCount) + float64(stars)
		profile.RatingCount++
		profile.Rating = total / float64(profile.RatingCount)
		return tx.Save(&profile).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Profile(ctx, accountID)
}
