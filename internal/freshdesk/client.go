// Package freshdesk is a minimal client for the Freshdesk v2 ticket API,
// covering only what the delivery worker needs.
package freshdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/samtale/samtale/internal/domain"
)

// Freshdesk v2 numeric codes: status 2 is "Open", priority 1 is "Low".
const (
	ticketStatusOpen  = 2
	ticketPriorityLow = 1
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ domain.TicketSender = (*Client)(nil)

// NewClient targets https://<subdomain>.freshdesk.com. The API key doubles as
// the basic auth username; Freshdesk ignores the password.
func NewClient(subdomain, apiKey string) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("https://%s.freshdesk.com", subdomain),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type createTicketRequest struct {
	Email       string `json:"email"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Status      int    `json:"status"`
	Priority    int    `json:"priority"`
}

type createTicketResponse struct {
	ID int64 `json:"id"`
}

type errorResponse struct {
	Description string `json:"description"`
	Errors      []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"errors"`
}

func (c *Client) CreateTicket(ctx context.Context, t *domain.Ticket) (int64, error) {
	body, err := json.Marshal(createTicketRequest{
		Email:       t.RequesterEmail,
		Subject:     t.Subject,
		Description: t.Description,
		Status:      ticketStatusOpen,
		Priority:    ticketPriorityLow,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal freshdesk request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/tickets", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create freshdesk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiKey, "X")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("freshdesk request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read freshdesk response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Description != "" {
			return 0, fmt.Errorf("freshdesk API returned status %d: %s", resp.StatusCode, apiErr.Description)
		}
		return 0, fmt.Errorf("freshdesk API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result createTicketResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("unmarshal freshdesk response: %w", err)
	}
	if result.ID == 0 {
		return 0, fmt.Errorf("freshdesk API returned no ticket id")
	}

	return result.ID, nil
}
