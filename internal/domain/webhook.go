package domain

import (
	"time"
)

// Webhook is a registered delivery target: a destination URL, a shared
// signing secret, and the set of triggers the endpoint wants to receive.
// The secret is never included in envelopes or logs.
type Webhook struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret,omitempty"`
	Triggers  []string  `json:"triggers"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateWebhookRequest struct {
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Triggers []string `json:"triggers"`
}

// CreateWebhookResponse is the only place the secret is returned in full.
type CreateWebhookResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Secret   string   `json:"secret"`
	Triggers []string `json:"triggers"`
}
