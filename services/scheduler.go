// services/scheduler.go
package services

import (
	"log"
	"time"

	"waste-rewards-system/metrics"
	"waste-rewards-system/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// StartDivergenceSweep runs a periodic read-only sweep over accounts flagged
// onchain-pending. When the registration mirror shows the chain caught up,
// the flag is cleared; otherwise the divergence count is exported for
// alerting. The sweep never signs transactions; write-side recovery happens
// on the account's next reconciliation.
func StartDivergenceSweep(db *gorm.DB) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every 5 minutes: reconcile pending flags against the mirror
	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			var pending []models.Account
			err := db.Where("chain_status = ? AND wallet_address IS NOT NULL", models.ChainStatusPending).
				Find(&pending).Error
			if err != nil {
				log.Printf("[Sweep] DB error: %v", err)
				return
			}
			metrics.ChainDivergence.Set(float64(len(pending)))
			if len(pending) == 0 {
				return
			}

			cleared := 0
			for _, account := range pending {
				var mirror models.RegistrationMirror
				if err := db.Where("address = ?", *account.WalletAddress).First(&mirror).Error; err != nil {
					continue
				}
				if !mirror.IsRegistered {
					continue
				}
				account.ChainStatus = models.ChainStatusRegistered
				if err := db.Save(&account).Error; err != nil {
					log.Printf("[Sweep] Failed to clear pending flag for %s: %v", account.ID, err)
				} else {
					cleared++
					log.Printf("✅ Divergence resolved for account %s (%s)", account.ID, *account.WalletAddress)
				}
			}
			if cleared > 0 {
				metrics.ChainDivergence.Sub(float64(cleared))
			}
		}),
	)
}
