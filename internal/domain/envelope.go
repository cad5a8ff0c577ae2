package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the unit dispatched to webhook endpoints. The JSON field names
// and casing are a compatibility contract with existing subscriber
// integrations and must not change.
type Envelope struct {
	ID        string    `json:"id"`
	Event     Trigger   `json:"event"`
	Data      EventData `json:"data"`
	Timestamp string    `json:"timestamp"`
}

// EventData is a union keyed by presence: which sub-records are set depends
// on the envelope's event. Use the NewEnvelope constructor so the key set
// always matches the event.
type EventData struct {
	View     *ViewData     `json:"view,omitempty"`
	Link     *LinkData     `json:"link,omitempty"`
	Document *DocumentData `json:"document,omitempty"`
	Dataroom *DataroomData `json:"dataroom,omitempty"`
}

// ViewData describes one link visit. viewedAt is ISO-8601.
type ViewData struct {
	ViewedAt      string  `json:"viewedAt"`
	ViewID        string  `json:"viewId"`
	Email         *string `json:"email"`
	EmailVerified bool    `json:"emailVerified"`
	Country       string  `json:"country"`
	City          string  `json:"city"`
	Device        string  `json:"device"`
	Browser       string  `json:"browser"`
	OS            string  `json:"os"`
	UA            string  `json:"ua"`
	Referer       string  `json:"referer"`
}

// LinkData is the externally visible shape of a sharing link. Boolean feature
// flags are always present and default to false when the underlying column is
// null. URL derivation must match every other outward-facing reference to the
// link, since subscribers store and compare it.
type LinkData struct {
	ID                          string   `json:"id"`
	URL                         string   `json:"url"`
	Domain                      string   `json:"domain"`
	Key                         string   `json:"key"`
	Name                        *string  `json:"name"`
	ExpiresAt                   *string  `json:"expiresAt"`
	HasPassword                 bool     `json:"hasPassword"`
	AllowList                   []string `json:"allowList"`
	DenyList                    []string `json:"denyList"`
	EnabledEmailProtection      bool     `json:"enabledEmailProtection"`
	EnabledEmailVerification    bool     `json:"enabledEmailVerification"`
	AllowDownload               bool     `json:"allowDownload"`
	IsArchived                  bool     `json:"isArchived"`
	EnabledNotification         bool     `json:"enabledNotification"`
	EnabledFeedback             bool     `json:"enabledFeedback"`
	EnabledQuestion             bool     `json:"enabledQuestion"`
	EnabledScreenshotProtection bool     `json:"enabledScreenshotProtection"`
	EnabledAgreement            bool     `json:"enabledAgreement"`
	EnabledWatermark            bool     `json:"enabledWatermark"`
	MetaTitle                   *string  `json:"metaTitle"`
	MetaDescription             *string  `json:"metaDescription"`
	MetaImage                   *string  `json:"metaImage"`
	MetaFavicon                 *string  `json:"metaFavicon"`
	DocumentID                  *string  `json:"documentId"`
	DataroomID                  *string  `json:"dataroomId"`
	GroupID                     *string  `json:"groupId"`
	PermissionGroupID           *string  `json:"permissionGroupId"`
	LinkType                    string   `json:"linkType"`
	TeamID                      string   `json:"teamId"`
	CreatedAt                   string   `json:"createdAt"`
	UpdatedAt                   string   `json:"updatedAt"`
}

type DocumentData struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ContentType *string `json:"contentType"`
	TeamID      string  `json:"teamId"`
	CreatedAt   string  `json:"createdAt"`
}

type DataroomData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TeamID    string `json:"teamId"`
	CreatedAt string `json:"createdAt"`
}

// NewEnvelope builds an immutable envelope with a fresh id and timestamp and
// verifies that data carries exactly the sub-records relevant to the event.
func NewEnvelope(event Trigger, data EventData) (*Envelope, error) {
	env := &Envelope{
		ID:        "evt_" + uuid.NewString(),
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// Validate checks the presence-keyed union invariant: an envelope never
// carries a sub-record irrelevant to its event.
func (e *Envelope) Validate() error {
	d := e.Data
	switch e.Event {
	case TriggerLinkViewed:
		// document and dataroom are optional: present only when the viewed
		// link belongs to one.
		if d.View == nil || d.Link == nil {
			return fmt.Errorf("%s envelope requires view and link data", e.Event)
		}
	case TriggerLinkCreated:
		if d.Link == nil || d.View != nil || d.Document != nil || d.Dataroom != nil {
			return fmt.Errorf("%s envelope carries exactly link data", e.Event)
		}
	case TriggerDocumentCreated:
		if d.Document == nil || d.View != nil || d.Link != nil || d.Dataroom != nil {
			return fmt.Errorf("%s envelope carries exactly document data", e.Event)
		}
	case TriggerDataroomCreated:
		if d.Dataroom == nil || d.View != nil || d.Link != nil || d.Document != nil {
			return fmt.Errorf("%s envelope carries exactly dataroom data", e.Event)
		}
	default:
		return fmt.Errorf("unknown event %q", e.Event)
	}
	return nil
}
