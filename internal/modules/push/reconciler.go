package push

import (
	"context"
	"log"
	"time"

	"planora/internal/domain"
)

const (
	// pendingSweepLimit caps how many receipts one sweep iteration loads.
	pendingSweepLimit = 1000
	// receiptChunkSize is the provider's cap per getReceipts call.
	receiptChunkSize = 300
)

// Reconciler periodically polls the provider for delivery receipts and
// settles PENDING records into their terminal status. A DeviceNotRegistered
// receipt additionally evicts the dead device token.
type Reconciler struct {
	receipts DeviceReceiptSweep
	devices  DeviceTokenStore
	provider Provider
	interval time.Duration
}

// DeviceReceiptSweep is the slice of ReceiptStore the sweep needs.
type DeviceReceiptSweep interface {
	ListPending(ctx context.Context, limit int) ([]domain.NotificationReceipt, error)
	Resolve(ctx context.Context, ticketID string, status domain.ReceiptStatus, details string) error
}

func NewReconciler(receipts DeviceReceiptSweep, devices DeviceTokenStore, provider Provider, interval time.Duration) *Reconciler {
	return &Reconciler{
		receipts: receipts,
		devices:  devices,
		provider: provider,
		interval: interval,
	}
}

// Run executes SweepOnce on a fixed cadence until the context is canceled.
// Sweep errors are logged and never stop the loop.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("push: receipt reconciler started interval=%s", r.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("push: receipt reconciler stopped")
			return
		case <-ticker.C:
			if err := r.SweepOnce(ctx); err != nil {
				log.Printf("push: receipt sweep failed: %v", err)
			}
		}
	}
}

// SweepOnce reconciles one batch of pending receipts. A provider failure for
// a receipt chunk aborts the iteration before any receipt from that chunk is
// marked; everything left PENDING is retried next cycle.
func (r *Reconciler) SweepOnce(ctx context.Context) error {
	pending, err := r.receipts.ListPending(ctx, pendingSweepLimit)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	byTicket := make(map[string]domain.NotificationReceipt, len(pending))
	ticketIDs := make([]string, 0, len(pending))
	for _, rec := range pending {
		if rec.TicketID == nil {
			continue
		}
		byTicket[*rec.TicketID] = rec
		ticketIDs = append(ticketIDs, *rec.TicketID)
	}

	for start := 0; start < len(ticketIDs); start += receiptChunkSize {
		end := start + receiptChunkSize
		if end > len(ticketIDs) {
			end = len(ticketIDs)
		}

		results, err := r.provider.GetReceipts(ctx, ticketIDs[start:end])
		if err != nil {
			return err
		}

		for ticketID, receipt := range results {
			rec, ok := byTicket[ticketID]
			if !ok {
				continue
			}
			if err := r.settle(ctx, rec, ticketID, receipt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Reconciler) settle(ctx context.Context, rec domain.NotificationReceipt, ticketID string, receipt Receipt) error {
	if receipt.Status == "ok" {
		return r.receipts.Resolve(ctx, ticketID, domain.ReceiptDelivered, "")
	}

	reason := receipt.Details.Error
	if reason == "" {
		reason = receipt.Message
	}

	if receipt.Details.Error == DeviceNotRegistered {
		if err := r.devices.DeleteByToken(ctx, rec.PushToken); err != nil {
			return err
		}
		log.Printf("push: evicted dead device token user_id=%d", rec.UserID)
		return r.receipts.Resolve(ctx, ticketID, domain.ReceiptInvalidToken, reason)
	}

	log.Printf("push: delivery failed ticket=%s reason=%s", ticketID, reason)
	return r.receipts.Resolve(ctx, ticketID, domain.ReceiptFailed, reason)
}
