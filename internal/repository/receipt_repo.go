package repository

import (
	"context"
	"time"

	"planora/internal/domain"

	"gorm.io/gorm"
)

type ReceiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// CreateBatch persists all receipts from one dispatch run in a single
// transaction; tickets already obtained from the provider must not be lost
// to a partial write.
func (r *ReceiptRepository) CreateBatch(ctx context.Context, receipts []*domain.NotificationReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(receipts, 200).Error
	})
}

// ListPending returns receipts awaiting reconciliation, oldest first.
func (r *ReceiptRepository) ListPending(ctx context.Context, limit int) ([]domain.NotificationReceipt, error) {
	var receipts []domain.NotificationReceipt
	q := r.db.WithContext(ctx).
		Where("status = ? AND ticket_id IS NOT NULL", domain.ReceiptPending).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&receipts).Error
	return receipts, err
}

// Resolve transitions a PENDING receipt to its terminal status. The status
// guard keeps sweeps idempotent and one-directional.
func (r *ReceiptRepository) Resolve(ctx context.Context, ticketID string, status domain.ReceiptStatus, details string) error {
	return r.db.WithContext(ctx).Model(&domain.NotificationReceipt{}).
		Where("ticket_id = ? AND status = ?", ticketID, domain.ReceiptPending).
		Updates(map[string]any{
			"status":  status,
			"details": details,
		}).Error
}

func (r *ReceiptRepository) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status <> ? AND updated_at < ?", domain.ReceiptPending, cutoff).
		Delete(&domain.NotificationReceipt{})
	return res.RowsAffected, res.Error
}
