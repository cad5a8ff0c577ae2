// Package payload assembles immutable event envelopes from raw link, view,
// document, and dataroom records.
package payload

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/papermark/webhook-engine/internal/domain"
)

// ErrMissingIdentifiers is returned when a trigger arrives without the ids
// needed to assemble its envelope. This is a caller bug, unlike a deleted
// record which aborts dispatch silently.
var ErrMissingIdentifiers = errors.New("missing view, link, or team identifier")

// Store is the read-only slice of the relational store the builder needs.
// Lookups return (nil, nil) when the record does not exist.
type Store interface {
	GetLink(ctx context.Context, id, teamID string) (*domain.Link, error)
	GetView(ctx context.Context, id, linkID string) (*domain.View, error)
	GetDocument(ctx context.Context, id, teamID string) (*domain.Document, error)
	GetDataroom(ctx context.Context, id, teamID string) (*domain.Dataroom, error)
}

// ClickData carries the raw attributes of one recorded view.
type ClickData struct {
	ViewID     string `json:"view_id"`
	LinkID     string `json:"link_id"`
	DocumentID string `json:"document_id,omitempty"`
	DataroomID string `json:"dataroom_id,omitempty"`
	Country    string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
	Device     string `json:"device,omitempty"`
	Browser    string `json:"browser,omitempty"`
	OS         string `json:"os,omitempty"`
	UA         string `json:"ua,omitempty"`
	Referer    string `json:"referer,omitempty"`
}

// Builder constructs envelopes. It is pure apart from the read queries needed
// to assemble sub-records.
type Builder struct {
	store       Store
	viewBaseURL string
}

// NewBuilder creates a builder. viewBaseURL is the default host used to
// derive link URLs when no custom domain is bound.
func NewBuilder(store Store, viewBaseURL string) *Builder {
	return &Builder{
		store:       store,
		viewBaseURL: strings.TrimSuffix(viewBaseURL, "/"),
	}
}

// LinkViewed builds a link.viewed envelope. It returns (nil, nil) when the
// referenced view or link no longer exists — a race with deletion is expected
// and aborts dispatch for this event without surfacing an error.
func (b *Builder) LinkViewed(ctx context.Context, teamID string, click ClickData) (*domain.Envelope, error) {
	if click.ViewID == "" || click.LinkID == "" || teamID == "" {
		return nil, ErrMissingIdentifiers
	}

	link, err := b.store.GetLink(ctx, click.LinkID, teamID)
	if err != nil {
		return nil, fmt.Errorf("fetching link: %w", err)
	}
	if link == nil {
		return nil, nil
	}

	view, err := b.store.GetView(ctx, click.ViewID, click.LinkID)
	if err != nil {
		return nil, fmt.Errorf("fetching view: %w", err)
	}
	if view == nil {
		return nil, nil
	}

	// Document and dataroom sub-records are independent; fetch them
	// concurrently.
	var (
		wg          sync.WaitGroup
		document    *domain.Document
		dataroom    *domain.Dataroom
		docErr      error
		dataroomErr error
	)
	if click.DocumentID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			document, docErr = b.store.GetDocument(ctx, click.DocumentID, teamID)
		}()
	}
	if click.DataroomID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dataroom, dataroomErr = b.store.GetDataroom(ctx, click.DataroomID, teamID)
		}()
	}
	wg.Wait()

	if docErr != nil {
		return nil, fmt.Errorf("fetching document: %w", docErr)
	}
	if dataroomErr != nil {
		return nil, fmt.Errorf("fetching dataroom: %w", dataroomErr)
	}

	data := domain.EventData{
		View: viewData(view, click),
		Link: b.linkData(link),
	}
	if document != nil {
		data.Document = documentData(document)
	}
	if dataroom != nil {
		data.Dataroom = dataroomData(dataroom)
	}

	return domain.NewEnvelope(domain.TriggerLinkViewed, data)
}

// LinkCreated builds a link.created envelope, or (nil, nil) if the link was
// deleted in the meantime.
func (b *Builder) LinkCreated(ctx context.Context, teamID, linkID string) (*domain.Envelope, error) {
	if linkID == "" || teamID == "" {
		return nil, ErrMissingIdentifiers
	}

	link, err := b.store.GetLink(ctx, linkID, teamID)
	if err != nil {
		return nil, fmt.Errorf("fetching link: %w", err)
	}
	if link == nil {
		return nil, nil
	}

	return domain.NewEnvelope(domain.TriggerLinkCreated, domain.EventData{
		Link: b.linkData(link),
	})
}

// DocumentCreated builds a document.created envelope, or (nil, nil) if the
// document was deleted in the meantime.
func (b *Builder) DocumentCreated(ctx context.Context, teamID, documentID string) (*domain.Envelope, error) {
	if documentID == "" || teamID == "" {
		return nil, ErrMissingIdentifiers
	}

	document, err := b.store.GetDocument(ctx, documentID, teamID)
	if err != nil {
		return nil, fmt.Errorf("fetching document: %w", err)
	}
	if document == nil {
		return nil, nil
	}

	return domain.NewEnvelope(domain.TriggerDocumentCreated, domain.EventData{
		Document: documentData(document),
	})
}

// DataroomCreated builds a dataroom.created envelope, or (nil, nil) if the
// dataroom was deleted in the meantime.
func (b *Builder) DataroomCreated(ctx context.Context, teamID, dataroomID string) (*domain.Envelope, error) {
	if dataroomID == "" || teamID == "" {
		return nil, ErrMissingIdentifiers
	}

	dataroom, err := b.store.GetDataroom(ctx, dataroomID, teamID)
	if err != nil {
		return nil, fmt.Errorf("fetching dataroom: %w", err)
	}
	if dataroom == nil {
		return nil, nil
	}

	return domain.NewEnvelope(domain.TriggerDataroomCreated, domain.EventData{
		Dataroom: dataroomData(dataroom),
	})
}

// LinkURL derives a link's externally visible URL. A link with a bound custom
// domain resolves to https://{domain}/{slug}; otherwise the default view path
// under base. Subscribers store and compare this value, so the derivation
// must match every other outward-facing reference to the link.
func LinkURL(link *domain.Link, base string) string {
	if link.DomainID != nil && link.DomainSlug != nil && link.Slug != nil {
		return fmt.Sprintf("https://%s/%s", *link.DomainSlug, *link.Slug)
	}
	return fmt.Sprintf("%s/view/%s", strings.TrimSuffix(base, "/"), link.ID)
}

func (b *Builder) linkData(link *domain.Link) *domain.LinkData {
	var expiresAt *string
	if link.ExpiresAt != nil {
		iso := link.ExpiresAt.UTC().Format(time.RFC3339)
		expiresAt = &iso
	}

	linkDomain := b.defaultDomain()
	key := "view/" + link.ID
	if link.DomainID != nil && link.DomainSlug != nil {
		linkDomain = *link.DomainSlug
	}
	if link.DomainID != nil && link.Slug != nil {
		key = *link.Slug
	}

	return &domain.LinkData{
		ID:                          link.ID,
		URL:                         LinkURL(link, b.viewBaseURL),
		Domain:                      linkDomain,
		Key:                         key,
		Name:                        link.Name,
		ExpiresAt:                   expiresAt,
		HasPassword:                 link.Password != nil && *link.Password != "",
		AllowList:                   link.AllowList,
		DenyList:                    link.DenyList,
		EnabledEmailProtection:      link.EmailProtected,
		EnabledEmailVerification:    link.EmailAuthenticated,
		AllowDownload:               boolFlag(link.AllowDownload),
		IsArchived:                  link.IsArchived,
		EnabledNotification:         boolFlag(link.EnableNotification),
		EnabledFeedback:             boolFlag(link.EnableFeedback),
		EnabledQuestion:             boolFlag(link.EnableQuestion),
		EnabledScreenshotProtection: boolFlag(link.EnableScreenshotProtection),
		EnabledAgreement:            boolFlag(link.EnableAgreement),
		EnabledWatermark:            boolFlag(link.EnableWatermark),
		MetaTitle:                   link.MetaTitle,
		MetaDescription:             link.MetaDescription,
		MetaImage:                   link.MetaImage,
		MetaFavicon:                 link.MetaFavicon,
		DocumentID:                  link.DocumentID,
		DataroomID:                  link.DataroomID,
		GroupID:                     link.GroupID,
		PermissionGroupID:           link.PermissionGroupID,
		LinkType:                    link.LinkType,
		TeamID:                      link.TeamID,
		CreatedAt:                   link.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:                   link.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// defaultDomain is the view base host without scheme or www prefix.
func (b *Builder) defaultDomain() string {
	u, err := url.Parse(b.viewBaseURL)
	if err != nil || u.Host == "" {
		return b.viewBaseURL
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

func viewData(view *domain.View, click ClickData) *domain.ViewData {
	return &domain.ViewData{
		ViewedAt:      view.ViewedAt.UTC().Format(time.RFC3339),
		ViewID:        view.ID,
		Email:         view.ViewerEmail,
		EmailVerified: view.Verified,
		Country:       click.Country,
		City:          click.City,
		Device:        click.Device,
		Browser:       click.Browser,
		OS:            click.OS,
		UA:            click.UA,
		Referer:       click.Referer,
	}
}

func documentData(document *domain.Document) *domain.DocumentData {
	return &domain.DocumentData{
		ID:          document.ID,
		Name:        document.Name,
		ContentType: document.ContentType,
		TeamID:      document.TeamID,
		CreatedAt:   document.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func dataroomData(dataroom *domain.Dataroom) *domain.DataroomData {
	return &domain.DataroomData{
		ID:        dataroom.ID,
		Name:      dataroom.Name,
		TeamID:    dataroom.TeamID,
		CreatedAt: dataroom.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// boolFlag maps a nullable feature flag to an explicit false default.
func boolFlag(v *bool) bool {
	return v != nil && *v
}
