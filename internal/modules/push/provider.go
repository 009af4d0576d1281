package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is one outbound push notification in the provider's wire shape.
type Message struct {
	To    string         `json:"to"`
	Title string         `json:"title,omitempty"`
	Body  string         `json:"body,omitempty"`
	Sound string         `json:"sound,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Ticket is the provider's immediate answer for one dispatched message.
// Status "ok" carries an ID to poll later; status "error" carries the reason.
type Ticket struct {
	Status  string        `json:"status"`
	ID      string        `json:"id,omitempty"`
	Message string        `json:"message,omitempty"`
	Details TicketDetails `json:"details,omitempty"`
}

type TicketDetails struct {
	Error string `json:"error,omitempty"`
}

// Receipt is the eventual delivery outcome for a ticket.
type Receipt struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Details TicketDetails `json:"details,omitempty"`
}

// DeviceNotRegistered is the provider error code meaning the device token is
// permanently dead and must be evicted.
const DeviceNotRegistered = "DeviceNotRegistered"

// HTTPProvider talks to an Expo-compatible push API
// (POST {base}/send, POST {base}/getReceipts).
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *HTTPProvider) SendMessages(ctx context.Context, messages []Message) ([]Ticket, error) {
	var resp struct {
		Data []Ticket `json:"data"`
	}
	if err := p.post(ctx, "/send", messages, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(messages) {
		return nil, fmt.Errorf("push provider returned %d tickets for %d messages", len(resp.Data), len(messages))
	}
	return resp.Data, nil
}

func (p *HTTPProvider) GetReceipts(ctx context.Context, ticketIDs []string) (map[string]Receipt, error) {
	req := map[string]any{"ids": ticketIDs}
	var resp struct {
		Data map[string]Receipt `json:"data"`
	}
	if err := p.post(ctx, "/getReceipts", req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("push provider %s: status %d: %s", path, res.StatusCode, snippet)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
