package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/papermark/webhook-engine/internal/domain"
)

// The lookups below are the read queries the payload builder issues while
// assembling an envelope. All return (nil, nil) for missing rows: a deleted
// record is an expected race, not an error.

func (s *PostgresStore) GetLink(ctx context.Context, id, teamID string) (*domain.Link, error) {
	var link domain.Link
	err := s.pool.QueryRow(ctx, `
		SELECT id, team_id, name, slug, domain_id, domain_slug, expires_at, password,
		       allow_list, deny_list, email_protected, email_authenticated,
		       allow_download, is_archived, enable_notification, enable_feedback,
		       enable_question, enable_screenshot_protection, enable_agreement,
		       enable_watermark, meta_title, meta_description, meta_image,
		       meta_favicon, document_id, dataroom_id, group_id,
		       permission_group_id, link_type, created_at, updated_at
		FROM links WHERE id = $1 AND team_id = $2
	`, id, teamID).Scan(
		&link.ID, &link.TeamID, &link.Name, &link.Slug, &link.DomainID,
		&link.DomainSlug, &link.ExpiresAt, &link.Password,
		&link.AllowList, &link.DenyList, &link.EmailProtected, &link.EmailAuthenticated,
		&link.AllowDownload, &link.IsArchived, &link.EnableNotification, &link.EnableFeedback,
		&link.EnableQuestion, &link.EnableScreenshotProtection, &link.EnableAgreement,
		&link.EnableWatermark, &link.MetaTitle, &link.MetaDescription, &link.MetaImage,
		&link.MetaFavicon, &link.DocumentID, &link.DataroomID, &link.GroupID,
		&link.PermissionGroupID, &link.LinkType, &link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying link: %w", err)
	}
	return &link, nil
}

func (s *PostgresStore) GetView(ctx context.Context, id, linkID string) (*domain.View, error) {
	var view domain.View
	err := s.pool.QueryRow(ctx, `
		SELECT id, link_id, viewer_email, verified, viewed_at
		FROM views WHERE id = $1 AND link_id = $2
	`, id, linkID).Scan(
		&view.ID, &view.LinkID, &view.ViewerEmail, &view.Verified, &view.ViewedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying view: %w", err)
	}
	return &view, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id, teamID string) (*domain.Document, error) {
	var document domain.Document
	err := s.pool.QueryRow(ctx, `
		SELECT id, team_id, name, content_type, created_at
		FROM documents WHERE id = $1 AND team_id = $2
	`, id, teamID).Scan(
		&document.ID, &document.TeamID, &document.Name, &document.ContentType, &document.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying document: %w", err)
	}
	return &document, nil
}

func (s *PostgresStore) GetDataroom(ctx context.Context, id, teamID string) (*domain.Dataroom, error) {
	var dataroom domain.Dataroom
	err := s.pool.QueryRow(ctx, `
		SELECT id, team_id, name, created_at
		FROM datarooms WHERE id = $1 AND team_id = $2
	`, id, teamID).Scan(
		&dataroom.ID, &dataroom.TeamID, &dataroom.Name, &dataroom.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying dataroom: %w", err)
	}
	return &dataroom, nil
}

// CreateView records one link visit and returns it.
func (s *PostgresStore) CreateView(ctx context.Context, linkID string, viewerEmail *string, verified bool) (*domain.View, error) {
	id := "view_" + uuid.NewString()

	var view domain.View
	err := s.pool.QueryRow(ctx, `
		INSERT INTO views (id, link_id, viewer_email, verified, viewed_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, link_id, viewer_email, verified, viewed_at
	`, id, linkID, viewerEmail, verified).Scan(
		&view.ID, &view.LinkID, &view.ViewerEmail, &view.Verified, &view.ViewedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting view: %w", err)
	}
	return &view, nil
}

// CreateLinkParams is the subset of link fields settable at creation.
type CreateLinkParams struct {
	TeamID     string  `json:"team_id"`
	Name       *string `json:"name"`
	Slug       *string `json:"slug"`
	DomainID   *string `json:"domain_id"`
	DomainSlug *string `json:"domain_slug"`
	DocumentID *string `json:"document_id"`
	DataroomID *string `json:"dataroom_id"`
	LinkType   string  `json:"link_type"`
}

func (s *PostgresStore) CreateLink(ctx context.Context, params CreateLinkParams) (*domain.Link, error) {
	id := "link_" + uuid.NewString()
	linkType := params.LinkType
	if linkType == "" {
		linkType = "DOCUMENT_LINK"
	}

	var link domain.Link
	err := s.pool.QueryRow(ctx, `
		INSERT INTO links (id, team_id, name, slug, domain_id, domain_slug, document_id, dataroom_id, link_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, team_id, name, slug, domain_id, domain_slug, document_id, dataroom_id, link_type, created_at, updated_at
	`, id, params.TeamID, params.Name, params.Slug, params.DomainID,
		params.DomainSlug, params.DocumentID, params.DataroomID, linkType,
	).Scan(
		&link.ID, &link.TeamID, &link.Name, &link.Slug, &link.DomainID,
		&link.DomainSlug, &link.DocumentID, &link.DataroomID, &link.LinkType,
		&link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting link: %w", err)
	}
	return &link, nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, teamID, name string, contentType *string) (*domain.Document, error) {
	id := "doc_" + uuid.NewString()

	var document domain.Document
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, team_id, name, content_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, team_id, name, content_type, created_at
	`, id, teamID, name, contentType).Scan(
		&document.ID, &document.TeamID, &document.Name, &document.ContentType, &document.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	return &document, nil
}

func (s *PostgresStore) CreateDataroom(ctx context.Context, teamID, name string) (*domain.Dataroom, error) {
	id := "dr_" + uuid.NewString()

	var dataroom domain.Dataroom
	err := s.pool.QueryRow(ctx, `
		INSERT INTO datarooms (id, team_id, name)
		VALUES ($1, $2, $3)
		RETURNING id, team_id, name, created_at
	`, id, teamID, name).Scan(
		&dataroom.ID, &dataroom.TeamID, &dataroom.Name, &dataroom.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting dataroom: %w", err)
	}
	return &dataroom, nil
}
