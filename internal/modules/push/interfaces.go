package push

import (
	"context"

	"planora/internal/domain"
)

// DeviceTokenStore persists the user -> device binding.
type DeviceTokenStore interface {
	Upsert(ctx context.Context, userID int64, token, platform string) error
	DeleteByToken(ctx context.Context, token string) error
	ListByUserIDs(ctx context.Context, userIDs []int64) ([]domain.DeviceToken, error)
}

// ReceiptStore persists dispatch receipts between send and reconciliation.
type ReceiptStore interface {
	CreateBatch(ctx context.Context, receipts []*domain.NotificationReceipt) error
	ListPending(ctx context.Context, limit int) ([]domain.NotificationReceipt, error)
	Resolve(ctx context.Context, ticketID string, status domain.ReceiptStatus, details string) error
}

// Provider is the upstream push service. SendMessages returns one ticket per
// message, in message order. GetReceipts returns delivery receipts keyed by
// ticket ID; tickets the provider has not resolved yet are simply absent.
type Provider interface {
	SendMessages(ctx context.Context, messages []Message) ([]Ticket, error)
	GetReceipts(ctx context.Context, ticketIDs []string) (map[string]Receipt, error)
}
