package push

import (
	"context"
	"log"
	"regexp"
	"sync"
	"time"

	"planora/internal/domain"
)

// maxConcurrentChunks bounds how many provider calls one dispatch run has in
// flight at once.
const maxConcurrentChunks = 4

var pushTokenPattern = regexp.MustCompile(`^Expo(nent)?PushToken\[[^\[\]]+\]$`)

// Notification is one message addressed to a specific device of a user.
type Notification struct {
	PushToken string
	UserID    int64
	Title     string
	Body      string
	Data      map[string]any
}

// Service dispatches push notifications in provider-sized chunks and records
// a receipt per obtained ticket for later reconciliation.
type Service struct {
	devices   DeviceTokenStore
	receipts  ReceiptStore
	provider  Provider
	chunkSize int
}

func NewService(devices DeviceTokenStore, receipts ReceiptStore, provider Provider, chunkSize int) *Service {
	return &Service{
		devices:   devices,
		receipts:  receipts,
		provider:  provider,
		chunkSize: chunkSize,
	}
}

// RegisterDevice binds a device token to the user, stealing it from any
// previous owner.
func (s *Service) RegisterDevice(ctx context.Context, userID int64, token, platform string) error {
	if !ValidToken(token) {
		return ErrInvalidDeviceToken
	}
	return s.devices.Upsert(ctx, userID, token, platform)
}

func (s *Service) UnregisterDevice(ctx context.Context, token string) error {
	return s.devices.DeleteByToken(ctx, token)
}

// NotifyUsers fans a single message out to every registered device of the
// given users, then dispatches the batch. Returns how many devices were
// addressed.
func (s *Service) NotifyUsers(ctx context.Context, userIDs []int64, title, body string, data map[string]any) (int, error) {
	notifications, err := s.expandToDevices(ctx, userIDs, title, body, data)
	if err != nil {
		return 0, err
	}
	if err := s.SendBatch(ctx, notifications); err != nil {
		return len(notifications), err
	}
	return len(notifications), nil
}

// NotifyUsersAsync looks the devices up synchronously so the caller learns
// the addressed count, then runs the dispatch detached from the request.
func (s *Service) NotifyUsersAsync(ctx context.Context, userIDs []int64, title, body string, data map[string]any) (int, error) {
	notifications, err := s.expandToDevices(ctx, userIDs, title, body, data)
	if err != nil {
		return 0, err
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.SendBatch(sendCtx, notifications); err != nil {
			log.Printf("push: background dispatch failed: %v", err)
		}
	}()

	return len(notifications), nil
}

func (s *Service) expandToDevices(ctx context.Context, userIDs []int64, title, body string, data map[string]any) ([]Notification, error) {
	tokens, err := s.devices.ListByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	notifications := make([]Notification, 0, len(tokens))
	for _, t := range tokens {
		notifications = append(notifications, Notification{
			PushToken: t.Token,
			UserID:    t.UserID,
			Title:     title,
			Body:      body,
			Data:      data,
		})
	}
	return notifications, nil
}

// SendBatch filters out malformed tokens, partitions the rest into provider
// chunks, sends the chunks through a bounded worker pool, and persists every
// obtained ticket as a receipt in one transactional write.
//
// Provider failures are per-chunk: a failed chunk is logged and skipped, the
// rest of the batch still goes out. Only a failure to persist the collected
// receipts is returned, and only after one retry; tickets already issued by
// the provider must not be dropped.
func (s *Service) SendBatch(ctx context.Context, notifications []Notification) error {
	valid := notifications[:0:0]
	for _, n := range notifications {
		if !ValidToken(n.PushToken) {
			log.Printf("push: skipping malformed device token user_id=%d", n.UserID)
			continue
		}
		valid = append(valid, n)
	}
	if len(valid) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		receipts []*domain.NotificationReceipt
		wg       sync.WaitGroup
		sem      = make(chan struct{}, maxConcurrentChunks)
	)

	for start := 0; start < len(valid); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(valid) {
			end = len(valid)
		}
		chunk := valid[start:end]

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			got := s.sendChunk(ctx, chunk)
			if len(got) == 0 {
				return
			}
			mu.Lock()
			receipts = append(receipts, got...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(receipts) == 0 {
		return nil
	}
	if err := s.receipts.CreateBatch(ctx, receipts); err != nil {
		log.Printf("push: receipt batch write failed, retrying: %v", err)
		if err := s.receipts.CreateBatch(ctx, receipts); err != nil {
			return err
		}
	}
	return nil
}

// sendChunk performs one provider call and maps its tickets onto receipt
// records. A ticket rejected up front still gets a receipt in ERROR so the
// dead token can be evicted later.
func (s *Service) sendChunk(ctx context.Context, chunk []Notification) []*domain.NotificationReceipt {
	messages := make([]Message, len(chunk))
	for i, n := range chunk {
		messages[i] = Message{
			To:    n.PushToken,
			Title: n.Title,
			Body:  n.Body,
			Sound: "default",
			Data:  n.Data,
		}
	}

	tickets, err := s.provider.SendMessages(ctx, messages)
	if err != nil {
		log.Printf("push: chunk send failed size=%d: %v", len(chunk), err)
		return nil
	}

	receipts := make([]*domain.NotificationReceipt, 0, len(tickets))
	for i, ticket := range tickets {
		rec := &domain.NotificationReceipt{
			PushToken: chunk[i].PushToken,
			UserID:    chunk[i].UserID,
			Status:    domain.ReceiptPending,
		}
		if ticket.ID != "" {
			id := ticket.ID
			rec.TicketID = &id
		}
		if ticket.Status != "ok" {
			rec.Status = domain.ReceiptError
			rec.Details = ticketError(ticket)
			log.Printf("push: ticket error token=%s reason=%s", chunk[i].PushToken, rec.Details)

			// An up-front DeviceNotRegistered never reaches the receipt
			// sweep (there is no ticket to poll), so evict here.
			if ticket.Details.Error == DeviceNotRegistered {
				if err := s.devices.DeleteByToken(ctx, chunk[i].PushToken); err != nil {
					log.Printf("push: dead token eviction failed user_id=%d: %v", chunk[i].UserID, err)
				} else {
					log.Printf("push: evicted dead device token user_id=%d", chunk[i].UserID)
				}
			}
		}
		receipts = append(receipts, rec)
	}
	return receipts
}

// ValidToken reports whether the string is shaped like a provider device
// token. Anything else is rejected before it reaches the provider.
func ValidToken(token string) bool {
	return pushTokenPattern.MatchString(token)
}

func ticketError(t Ticket) string {
	if t.Details.Error != "" {
		return t.Details.Error
	}
	return t.Message
}
