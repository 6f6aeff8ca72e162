package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"waste-rewards-system/chain"
	"waste-rewards-system/models"
	"waste-rewards-system/reconcile"
	"waste-rewards-system/security"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateWallet    = errors.New("wallet address already bound to an account")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrValidation         = errors.New("validation failed")
)

// PendingApprovalError is returned by the wallet-signature verification path
// for agents that are not approved yet. The credential-login path deliberately
// does not enforce this (see auth_routes.go).
type PendingApprovalError struct {
	AgentStatus models.AgentApprovalStatus
}

func (e *PendingApprovalError) Error() string {
	return fmt.Sprintf("agent approval is %s", e.AgentStatus)
}

// AuthService is the off-chain account registry: registration, credential and
// wallet authentication, session teardown and the registration mirror.
// It implements reconcile.Offchain.
type AuthService struct {
	DB       *gorm.DB
	Secret   []byte
	TokenTTL time.Duration
	Revoker  security.Revoker
}

func NewAuthService(db *gorm.DB, secret []byte, tokenTTL time.Duration, revoker security.Revoker) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{DB: db, Secret: secret, TokenTTL: tokenTTL, Revoker: revoker}
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Register creates an account, plus the agent sub-record when the role is
// agent. Wallet address is optional; unique when present.
func (s *AuthService) Register(ctx context.Context, in reconcile.RegistrationInput, walletAddress string) (*models.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: username and a valid email are required", ErrValidation)
	}
	if len(in.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	if in.Role != models.RoleRegular && in.Role != models.RoleAgent {
		return nil, fmt.Errorf("%w: role must be regular or agent", ErrValidation)
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	account := models.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		ChainStatus:  models.ChainStatusNone,
	}
	if in.Role == models.RoleAgent {
		account.AgentStatus = models.AgentPending
	}
	if walletAddress != "" {
		addr := normalizeAddress(walletAddress)
		account.WalletAddress = &addr
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("email = ?", account.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateEmail
		}
		if account.WalletAddress != nil {
			if err := tx.Model(&models.Account{}).Where("wallet_address = ?", *account.WalletAddress).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateWallet
			}
		}
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
		if account.Role == models.RoleAgent {
			profile := models.AgentProfile{AccountID: account.ID}
			if err := tx.Create(&profile).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ [AUTH] registered %s account %s (%s)", account.Role, account.ID, account.Email)
	return &account, nil
}

// Login authenticates by credentials. It succeeds for pending agents; callers
// gate dashboard access on approval status.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Account, string, error) {
	var account models.Account
	err := s.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !security.VerifyPassword(password, account.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(ctx, &account)
	if err != nil {
		return nil, "", err
	}
	return &account, token, nil
}

// VerifyWallet authenticates by wallet address. Unlike Login, this path
// enforces the pending-agent block with a 403-style error.
func (s *AuthService) VerifyWallet(ctx context.Context, address string) (*models.Account, string, error) {
	account, err := s.FindByWallet(ctx, address)
	if err != nil {
		return nil, "", err
	}
	if account.Role == models.RoleAgent && account.AgentStatus != models.AgentApproved {
		return nil, "", &PendingApprovalError{AgentStatus: account.AgentStatus}
	}

	token, err := s.IssueToken(ctx, account)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

// FindByWallet returns the account bound to an address, or
// reconcile.ErrAccountNotFound.
func (s *AuthService) FindByWallet(ctx context.Context, address string) (*models.Account, error) {
	var account models.Account
	err := s.DB.WithContext(ctx).Where("wallet_address = ?", normalizeAddress(address)).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reconcile.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// BindWallet attaches an address to an account that has none yet, preserving
// the one-account-per-address invariant.
func (s *AuthService) BindWallet(ctx context.Context, accountID, address string) (*models.Account, error) {
	addr := normalizeAddress(address)
	var account models.Account

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
			return err
		}
		if account.WalletAddress != nil && *account.WalletAddress != addr {
			return ErrDuplicateWallet
		}
		var count int64
		if err := tx.Model(&models.Account{}).Where("wallet_address = ? AND id <> ?", addr, accountID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateWallet
		}
		account.WalletAddress = &addr
		return tx.Save(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// DeleteAccount hard-deletes an account and cascades to the agent sub-record.
// Used as the compensating action when on-chain registration cannot be
// completed after off-chain registration succeeded, and by explicit admin
// action.
func (s *AuthService) DeleteAccount(ctx context.Context, accountID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile models.AgentProfile
		if err := tx.Where("account_id = ?", accountID).First(&profile).Error; err == nil {
			if err := tx.Unscoped().Where("agent_profile_id = ?", profile.ID).Delete(&models.ServiceArea{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("agent_profile_id = ?", profile.ID).Delete(&models.VerificationDocument{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Delete(&profile).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Unscoped().Delete(&models.Account{}, "id = ?", accountID).Error
	})
	if err != nil {
		return err
	}
	return s.TeardownSession(ctx, accountID)
}

// SetChainStatus updates the account's on-chain-registered flag.
func (s *AuthService) SetChainStatus(ctx context.Context, accountID string, status models.ChainStatus) error {
	return s.DB.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("chain_status", status).Error
}

// IssueToken mints an access token for the account.
func (s *AuthService) IssueToken(_ context.Context, account *models.Account) (string, error) {
	return security.NewAccessToken(account.ID, string(account.Role), string(account.AgentStatus), s.Secret, s.TokenTTL, time.Now())
}

// TeardownSession revokes every token issued to the account so far: the
// logout-equivalent state the compensation path requires.
func (s *AuthService) TeardownSession(ctx context.Context, accountID string) error {
	return s.Revoker.RevokeAll(ctx, accountID, time.Now())
}

// RecordRegistration upserts the local mirror of on-chain state for an
// address.
func (s *AuthService) RecordRegistration(ctx context.Context, address string, reg chain.Registration) error {
	now := time.Now().UTC()
	points := decimal.Zero
	if reg.PointBalance != nil {
		points = decimal.NewFromBigInt(reg.PointBalance, 0)
	}
	mirror := models.RegistrationMirror{
		Address:       normalizeAddress(address),
		IsRegistered:  reg.IsRegistered,
		ChainRole:     models.Role(reg.Role),
		PointBalance:  points,
		LastCheckedAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"is_registered",
			"chain_role",
			"point_balance",
			"last_checked_at",
			"updated_at",
		}),
	}).Create(&mirror).Error
}

// GetAccount fetches one account by id.
func (s *AuthService) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.DB.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}
