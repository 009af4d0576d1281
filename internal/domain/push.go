package domain

import "time"

// DeviceToken maps a user to a push-capable device.
type DeviceToken struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"user_id" gorm:"index;not null"`
	Token     string    `json:"-" gorm:"uniqueIndex;not null"`
	Platform  string    `json:"platform,omitempty" gorm:"size:16"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DeviceToken) TableName() string { return "device_tokens" }

type ReceiptStatus string

const (
	ReceiptPending      ReceiptStatus = "PENDING"
	ReceiptDelivered    ReceiptStatus = "DELIVERED"
	ReceiptFailed       ReceiptStatus = "FAILED"
	ReceiptError        ReceiptStatus = "ERROR"
	ReceiptInvalidToken ReceiptStatus = "INVALID_TOKEN"
)

// Resolved reports whether the reconciliation sweep is done with this receipt.
// Sweeps only transition PENDING -> {DELIVERED, FAILED, INVALID_TOKEN}; never back.
func (s ReceiptStatus) Resolved() bool {
	return s != ReceiptPending
}

// NotificationReceipt tracks one dispatched push message from the provider
// ticket it obtained at send time until its delivery receipt is reconciled.
type NotificationReceipt struct {
	ID        int64         `json:"id" gorm:"primaryKey"`
	PushToken string        `json:"push_token" gorm:"index;not null"`
	UserID    int64         `json:"user_id" gorm:"index;not null"`
	TicketID  *string       `json:"ticket_id,omitempty" gorm:"index"`
	Status    ReceiptStatus `json:"status" gorm:"size:16;not null;default:PENDING"`
	Details   string        `json:"details,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (NotificationReceipt) TableName() string { return "notification_receipts" }
