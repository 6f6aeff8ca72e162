package workers

import (
	"context"
	"log"
	"time"

	"waste-rewards-system/chain"
	"waste-rewards-system/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegistrySyncClient polls on-chain registration state for every account with
// a bound wallet and persists it into the registration_mirror table. It also
// performs the read-only half of divergence recovery: accounts flagged
// onchain-pending flip to registered once the chain shows them registered.
type RegistrySyncClient struct {
	DB       *gorm.DB
	Registry *chain.Client
}

func NewRegistrySyncClient(db *gorm.DB, registry *chain.Client) *RegistrySyncClient {
	return &RegistrySyncClient{DB: db, Registry: registry}
}

func (c *RegistrySyncClient) syncAddress(ctx context.Context, address string) (models.RegistrationMirror, error) {
	reg, err := c.Registry.GetRegistration(ctx, address)
	if err != nil {
		return models.RegistrationMirror{}, err
	}

	points := decimal.Zero
	if reg.PointBalance != nil {
		points = decimal.NewFromBigInt(reg.PointBalance, 0)
	}
	tokens := decimal.Zero
	if bal, err := c.Registry.TokenBalance(ctx, address); err == nil && bal != nil {
		tokens = decimal.NewFromBigInt(bal, 0)
	}

	now := time.Now().UTC()
	return models.RegistrationMirror{
		Address:       address,
		IsRegistered:  reg.IsRegistered,
		ChainRole:     models.Role(reg.Role),
		PointBalance:  points,
		TokenBalance:  tokens,
		LastCheckedAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// PollRegistrations runs the sync loop until the context is cancelled.
func PollRegistrations(ctx context.Context, client *RegistrySyncClient, pollInterval time.Duration) {
	log.Println("Starting registry polling (DB-backed)...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Registry polling stopped.")
			return
		case <-ticker.C:
			var accounts []models.Account
			if err := client.DB.Where("wallet_address IS NOT NULL").Find(&accounts).Error; err != nil {
				log.Printf("❌ Error listing wallet-bound accounts: %v", err)
				continue
			}
			if len(accounts) == 0 {
				continue
			}

			mirrors := make([]models.RegistrationMirror, 0, len(accounts))
			for _, account := range accounts {
				mirror, err := client.syncAddress(ctx, *account.WalletAddress)
				if err != nil {
					log.Printf("❌ Error reading chain state for %s: %v", *account.WalletAddress, err)
					continue
				}
				mirrors = append(mirrors, mirror)
			}
			if len(mirrors) == 0 {
				continue
			}

			if err := client.DB.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "address"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"is_registered",
						"chain_role",
						"point_balance",
						"token_balance",
						"last_checked_at",
						"updated_at",
					}),
				},
			).Create(&mirrors).Error; err != nil {
				log.Printf("❌ Failed to upsert %d registration mirror(s): %v", len(mirrors), err)
				continue
			}

			// Divergence recovery, read-only half: the chain caught up on its
			// own, clear the pending flag.
			recovered := 0
			for _, mirror := range mirrors {
				if !mirror.IsRegistered {
					continue
				}
				res := client.DB.Model(&models.Account{}).
					Where("wallet_address = ? AND chain_status = ?", mirror.Address, models.ChainStatusPending).
					Update("chain_status", models.ChainStatusRegistered)
				if res.Error != nil {
					log.Printf("❌ Failed to clear pending flag for %s: %v", mirror.Address, res.Error)
					continue
				}
				recovered += int(res.RowsAffected)
			}
			if recovered > 0 {
				log.Printf("✅ Cleared onchain-pending flag for %d account(s).", recovered)
			}
			log.Printf("📥 Synced %d registration mirror(s).", len(mirrors))
		}
	}
}
