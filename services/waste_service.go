package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"waste-rewards-system/chain"
	"waste-rewards-system/metrics"
	"waste-rewards-system/models"
	"waste-rewards-system/queue"
	"waste-rewards-system/utils"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"gorm.io/gorm"
)

var (
	ErrReportNotFound     = errors.New("waste report not found")
	ErrTransitionConflict = errors.New("report already transitioned")
)

// ChainMirror is the subset of the registry client the waste lifecycle
// mirrors through, best-effort.
type ChainMirror interface {
	ReportWaste(ctx context.Context, signer *bind.TransactOpts, qrHash, plasticType string, grams int64) (string, error)
	CollectWaste(ctx context.Context, signer *bind.TransactOpts, qrHash string) (string, error)
	ProcessWaste(ctx context.Context, signer *bind.TransactOpts, reportID string) (string, error)
}

// WasteService owns the report lifecycle: reported → collected → processed,
// monotonic. Each transition mirrors itself on-chain best-effort and reports
// the outcome explicitly; off-chain state is authoritative regardless.
type WasteService struct {
	DB     *gorm.DB
	Events queue.Producer
	Mirror ChainMirror        // nil when no chain is configured
	Signer *bind.TransactOpts // operator signer for mirror writes
}

func NewWasteService(db *gorm.DB, events queue.Producer, mirror ChainMirror, signer *bind.TransactOpts) *WasteService {
	return &WasteService{DB: db, Events: events, Mirror: mirror, Signer: signer}
}

// ReportInput is the payload for a new waste report.
type ReportInput struct {
	PlasticType   models.PlasticType `json:"plastic_type"`
	QuantityGrams int64              `json:"quantity_grams"`
	Latitude      float64            `json:"latitude"`
	Longitude     float64            `json:"longitude"`
}

// Report creates a waste report, fans out notifications to approved agents
// via the event queue and mirrors the report on-chain best-effort.
func (s *WasteService) Report(ctx context.Context, owner *models.Account, in ReportInput) (*models.WasteReport, models.MirrorOutcome, error) {
	if !models.ValidPlasticType(in.PlasticType) {
		return nil, models.MirrorNotAttempted, fmt.Errorf("%w: unknown plastic type %q", ErrValidation, in.PlasticType)
	}
	if in.QuantityGrams <= 0 {
		return nil, models.MirrorNotAttempted, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	report := models.WasteReport{
		OwnerID:       owner.ID,
		PlasticType:   in.PlasticType,
		QuantityGrams: in.QuantityGrams,
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
		Status:        models.StatusReported,
		QRCodeHash:    utils.NewQRHash(),
	}
	if err := s.DB.WithContext(ctx).Create(&report).Error; err != nil {
		return nil, models.MirrorNotAttempted, err
	}

	if err := s.Events.Publish(ctx, queue.Event{
		Type:          queue.EventReportCreated,
		ReportID:      report.ID,
		OwnerID:       owner.ID,
		PlasticType:   string(report.PlasticType),
		QuantityGrams: report.QuantityGrams,
	}); err != nil {
		log.Printf("⚠️ [WASTE] failed to publish report event for %s: %v", report.ID, err)
	}

	outcome := s.mirrorReport(ctx, &report)
	metrics.WasteTransitions.WithLabelValues("reported", string(outcome)).Inc()
	return &report, outcome, nil
}

// Collect advances reported → collected. The actor must be an approved agent
// other than the owner; a repeat collect fails with a conflict, not a
// duplicate transition.
func (s *WasteService) Collect(ctx context.Context, actor *models.Account, reportID string) (*models.WasteReport, models.MirrorOutcome, error) {
	var report models.WasteReport

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&report, "id = ?", reportID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReportNotFound
			}
			return err
		}
		if err := report.GuardCollect(actor); err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.WasteReport{}).
			Where("id = ? AND status = ?", reportID, models.StatusReported).
			Updates(map[string]interface{}{
				"status":            models.StatusCollected,
				"assigned_agent_id": actor.ID,
				"collected_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTransitionConflict
		}

		report.Status = models.StatusCollected
		report.AssignedAgentID = &actor.ID
		report.CollectedAt = &now

		return tx.Model(&models.AgentProfile{}).
			Where("account_id = ?", actor.ID).
			Update("collected_count", gorm.Expr("collected_count + 1")).Error
	})
	if err != nil {
		return nil, models.MirrorNotAttempted, err
	}

	outcome := s.mirrorCollect(ctx, &report)
	metrics.WasteTransitions.WithLabelValues("collected", string(outcome)).Inc()
	return &report, outcome, nil
}

// Process advances collected → processed. Only the agent who collected the
// report may advance it; points are credited to that agent.
func (s *WasteService) Process(ctx context.Context, actor *models.Account, reportID string) (*models.WasteReport, models.MirrorOutcome, error) {
	var report models.WasteReport

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&report, "id = ?", reportID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReportNotFound
			}
			return err
		}
		if err := report.GuardProcess(actor); err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.WasteReport{}).
			Where("id = ? AND status = ? AND assigned_agent_id = ?", reportID, models.StatusCollected, actor.ID).
			Updates(map[string]interface{}{
				"status":       models.StatusProcessed,
				"processed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTransitionConflict
		}

		report.Status = models.StatusProcessed
		report.ProcessedAt = &now

		return tx.Model(&models.AgentProfile{}).
			Where("account_id = ?", actor.ID).
			Updates(map[string]interface{}{
				"processed_count": gorm.Expr("processed_count + 1"),
				"point_balance":   gorm.Expr("point_balance + ?", report.QuantityGrams),
			}).Error
	})
	if err != nil {
		return nil, models.MirrorNotAttempted, err
	}

	outcome := s.mirrorProcess(ctx, &report)
	metrics.WasteTransitions.WithLabelValues("processed", string(outcome)).Inc()
	return &report, outcome, nil
}

// GetByQRHash resolves a report from its QR identifier.
func (s *WasteService) GetByQRHash(ctx context.Context, hash string) (*models.WasteReport, error) {
	var report models.WasteReport
	if err := s.DB.WithContext(ctx).Where("qr_code_hash = ?", hash).First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

// Get fetches one report by id.
func (s *WasteService) Get(ctx context.Context, id string) (*models.WasteReport, error) {
	var report models.WasteReport
	if err := s.DB.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

// List returns reports, optionally filtered by owner and status.
func (s *WasteService) List(ctx context.Context, ownerID string, status models.ReportStatus, limit int) ([]models.WasteReport, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	db := s.DB.WithContext(ctx).Model(&models.WasteReport{}).Order("created_at DESC").Limit(limit)
	if ownerID != "" {
		db = db.Where("owner_id = ?", ownerID)
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}
	var reports []models.WasteReport
	if err := db.Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// Nearby returns uncollected reports within radiusKm of a point. Candidates
// are narrowed with a bounding box in SQL, then filtered by great-circle
// distance.
func (s *WasteService) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]models.WasteReport, error) {
	if radiusKm <= 0 {
		radiusKm = 10
	}
	latDelta := radiusKm / 111.0
	lngDelta := latDelta * 2 // generous box; haversine below is the real filter

	var candidates []models.WasteReport
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.StatusReported).
		Where("latitude BETWEEN ? AND ?", lat-latDelta, lat+latDelta).
		Where("longitude BETWEEN ? AND ?", lng-lngDelta, lng+lngDelta).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	nearby := make([]models.WasteReport, 0, len(candidates))
	for _, r := range candidates {
		if HaversineKm(lat, lng, r.Latitude, r.Longitude) <= radiusKm {
			nearby = append(nearby, r)
		}
	}
	return nearby, nil
}

// UserStatistics summarises one owner's reports plus mirrored balances.
type UserStatistics struct {
	TotalReports    int64  `json:"total_reports"`
	Reported        int64  `json:"reported"`
	Collected       int64  `json:"collected"`
	Processed       int64  `json:"processed"`
	TotalGrams      int64  `json:"total_grams"`
	TokenBalance    string `json:"token_balance"`
	ChainRegistered bool   `json:"chain_registered"`
}

// Statistics aggregates an owner's report counts and the mirrored on-chain
// balances for their wallet.
func (s *WasteService) Statistics(ctx context.Context, account *models.Account) (*UserStatistics, error) {
	stats := &UserStatistics{TokenBalance: "0"}

	type row struct {
		Status models.ReportStatus
		N      int64
		Grams  int64
	}
	var rows []row
	err := s.DB.WithContext(ctx).Model(&models.WasteReport{}).
		Select("status, COUNT(*) AS n, COALESCE(SUM(quantity_grams),0) AS grams").
		Where("owner_id = ?", account.ID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.TotalReports += r.N
		stats.TotalGrams += r.Grams
		switch r.Status {
		case models.StatusReported:
			stats.Reported = r.N
		case models.StatusCollected:
			stats.Collected = r.N
		case models.StatusProcessed:
			stats.Processed = r.N
		}
	}

	if account.WalletAddress != nil {
		var mirror models.RegistrationMirror
		err := s.DB.WithContext(ctx).Where("address = ?", *account.WalletAddress).First(&mirror).Error
		if err == nil {
			stats.TokenBalance = mirror.TokenBalance.String()
			stats.ChainRegistered = mirror.IsRegistered
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return stats, nil
}

// mirror* run the best-effort on-chain mirror of a transition. Failures are
// reported as an explicit degraded outcome, never as an error: the reward
// ledger is allowed to degrade to off-chain-only bookkeeping.
func (s *WasteService) mirrorReport(ctx context.Context, report *models.WasteReport) models.MirrorOutcome {
	return s.mirror(ctx, report, "report_tx_hash", func() (string, error) {
		return s.Mirror.ReportWaste(ctx, s.Signer, report.QRCodeHash, string(report.PlasticType), report.QuantityGrams)
	})
}

func (s *WasteService) mirrorCollect(ctx context.Context, report *models.WasteReport) models.MirrorOutcome {
	return s.mirror(ctx, report, "collect_tx_hash", func() (string, error) {
		return s.Mirror.CollectWaste(ctx, s.Signer, report.QRCodeHash)
	})
}

func (s *WasteService) mirrorProcess(ctx context.Context, report *models.WasteReport) models.MirrorOutcome {
	return s.mirror(ctx, report, "process_tx_hash", func() (string, error) {
		return s.Mirror.ProcessWaste(ctx, s.Signer, report.ID)
	})
}

func (s *WasteService) mirror(ctx context.Context, report *models.WasteReport, column string, call func() (string, error)) models.MirrorOutcome {
	if s.Mirror == nil || s.Signer == nil {
		s.recordMirror(ctx, report, column, "", models.MirrorDegradedOffchain)
		return models.MirrorDegradedOffchain
	}
	txHash, err := call()
	if err != nil {
		var chainErr *chain.ChainError
		if errors.As(err, &chainErr) {
			log.Printf("⚠️ [WASTE] chain mirror degraded for report %s: %v", report.ID, chainErr)
		} else {
			log.Printf("⚠️ [WASTE] chain mirror degraded for report %s: %v", report.ID, err)
		}
		s.recordMirror(ctx, report, column, txHash, models.MirrorDegradedOffchain)
		return models.MirrorDegradedOffchain
	}
	s.recordMirror(ctx, report, column, txHash, models.MirrorConfirmed)
	return models.MirrorConfirmed
}

func (s *WasteService) recordMirror(ctx context.Context, report *models.WasteReport, column, txHash string, outcome models.MirrorOutcome) {
	updates := map[string]interface{}{"last_mirror": outcome}
	if txHash != "" {
		updates[column] = txHash
	}
	if err := s.DB.WithContext(ctx).Model(&models.WasteReport{}).Where("id = ?", report.ID).Updates(updates).Error; err != nil {
		log.Printf("❌ [WASTE] failed to record mirror outcome for %s: %v", report.ID, err)
	}
	report.LastMirror = outcome
}
