package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fulfillment-service/internal/models"
)

// Provider delivers invoices through a transactional mail HTTP API.
// It implements the engine's InvoiceDelivery contract.
type Provider struct {
	apiURL    string
	apiKey    string
	fromEmail string
	fromName  string
	client    *http.Client
}

type payload struct {
	From     person   `json:"from"`
	To       []person `json:"to"`
	Subject  string   `json:"subject"`
	Text     string   `json:"text,omitempty"`
	HTML     string   `json:"html,omitempty"`
	Category string   `json:"category,omitempty"`
}

type person struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// NewProvider creates a provider for the given mail API credentials.
func NewProvider(apiURL, apiKey, fromEmail, fromName string) *Provider {
	return &Provider{
		apiURL:    apiURL,
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Send delivers the rendered invoice to the recipient.
func (p *Provider) Send(ctx context.Context, doc *models.InvoiceDocument, recipientEmail string) error {
	if p.apiURL == "" || p.apiKey == "" {
		return fmt.Errorf("mail API credentials not configured")
	}

	body, err := json.Marshal(payload{
		From:     person{Email: p.fromEmail, Name: p.fromName},
		To:       []person{{Email: recipientEmail, Name: doc.CustomerName}},
		Subject:  fmt.Sprintf("Invoice %s for order %s", doc.Number, doc.OrderID),
		Text:     doc.Text,
		HTML:     doc.HTML,
		Category: "Transactional",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail API returned status %d", resp.StatusCode)
	}
	return nil
}
