package domain

import (
	"time"
)

// Link is a sharing link as stored in the relational store. Nullable columns
// map to pointers; the webhook envelope flattens these with explicit defaults.
type Link struct {
	ID                         string
	TeamID                     string
	Name                       *string
	Slug                       *string
	DomainID                   *string
	DomainSlug                 *string
	ExpiresAt                  *time.Time
	Password                   *string
	AllowList                  []string
	DenyList                   []string
	EmailProtected             bool
	EmailAuthenticated         bool
	AllowDownload              *bool
	IsArchived                 bool
	EnableNotification         *bool
	EnableFeedback             *bool
	EnableQuestion             *bool
	EnableScreenshotProtection *bool
	EnableAgreement            *bool
	EnableWatermark            *bool
	MetaTitle                  *string
	MetaDescription            *string
	MetaImage                  *string
	MetaFavicon                *string
	DocumentID                 *string
	DataroomID                 *string
	GroupID                    *string
	PermissionGroupID          *string
	LinkType                   string
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// View is one recorded visit to a link.
type View struct {
	ID          string
	LinkID      string
	ViewerEmail *string
	Verified    bool
	ViewedAt    time.Time
}

type Document struct {
	ID          string
	TeamID      string
	Name        string
	ContentType *string
	CreatedAt   time.Time
}

type Dataroom struct {
	ID        string
	TeamID    string
	Name      string
	CreatedAt time.Time
}

// DeliveryRecord is one terminal delivery outcome reported by the queue
// service via callback. Append-only.
type DeliveryRecord struct {
	ID           string    `json:"id"`
	MessageID    string    `json:"message_id"`
	WebhookID    string    `json:"webhook_id"`
	EventID      string    `json:"event_id"`
	Event        string    `json:"event"`
	Status       string    `json:"status"`
	HTTPStatus   *int      `json:"http_status,omitempty"`
	ResponseBody *string   `json:"response_body,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Delivery record statuses.
const (
	DeliveryStatusSucceeded = "succeeded"
	DeliveryStatusFailed    = "failed"
)
