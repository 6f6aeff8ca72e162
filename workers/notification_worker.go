package workers

import (
	"context"
	"fmt"
	"log"

	"waste-rewards-system/models"
	"waste-rewards-system/queue"

	"gorm.io/gorm"
)

// NotificationWorker consumes domain events and fans them out into
// per-recipient notification rows.
type NotificationWorker struct {
	DB    *gorm.DB
	Queue queue.Consumer
}

func NewNotificationWorker(db *gorm.DB, q queue.Consumer) *NotificationWorker {
	return &NotificationWorker{DB: db, Queue: q}
}

// Start blocks consuming events until the context is cancelled.
func (w *NotificationWorker) Start(ctx context.Context, workerCount int) error {
	log.Println("Starting notification fan-out worker...")
	return w.Queue.Consume(ctx, workerCount, w.handle)
}

func (w *NotificationWorker) handle(ctx context.Context, ev queue.Event) error {
	switch ev.Type {
	case queue.EventReportCreated:
		return w.fanOutReport(ctx, ev)
	case queue.EventAgentDecision:
		return w.notifyDecision(ctx, ev)
	default:
		log.Printf("⚠️ [NOTIFY] unknown event type %q — dropping", ev.Type)
		return nil
	}
}

// fanOutReport creates one notification per approved agent for a new report.
func (w *NotificationWorker) fanOutReport(ctx context.Context, ev queue.Event) error {
	var agents []models.Account
	err := w.DB.WithContext(ctx).
		Where("role = ? AND agent_status = ?", models.RoleAgent, models.AgentApproved).
		Find(&agents).Error
	if err != nil {
		return fmt.Errorf("list approved agents: %w", err)
	}
	if len(agents) == 0 {
		return nil
	}

	notifications := make([]models.Notification, 0, len(agents))
	for _, agent := range agents {
		if agent.ID == ev.OwnerID {
			continue
		}
		notifications = append(notifications, models.Notification{
			RecipientID: agent.ID,
			Type:        models.NotifyWasteReported,
			Title:       "New waste report",
			Message:     fmt.Sprintf("%d g of %s reported for collection", ev.QuantityGrams, ev.PlasticType),
			ReferenceID: ev.ReportID,
		})
	}
	if len(notifications) == 0 {
		return nil
	}
	if err := w.DB.WithContext(ctx).Create(&notifications).Error; err != nil {
		return fmt.Errorf("fan out %d notification(s): %w", len(notifications), err)
	}
	log.Printf("📣 [NOTIFY] fanned out report %s to %d agent(s)", ev.ReportID, len(notifications))
	return nil
}

func (w *NotificationWorker) notifyDecision(ctx context.Context, ev queue.Event) error {
	kind := models.NotifyAgentRejected
	title := "Agent application rejected"
	if ev.Decision == "approved" {
		kind = models.NotifyAgentApproved
		title = "Agent application approved"
	}
	notification := models.Notification{
		RecipientID: ev.AccountID,
		Type:        kind,
		Title:       title,
		Message:     ev.Message,
	}
	return w.DB.WithContext(ctx).Create(&notification).Error
}
