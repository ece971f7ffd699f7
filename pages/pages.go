// Package pages stores user-owned pages and lists them newest first through
// the collection engine's cursor pagination.
package pages

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-bridge/collection"
	apperrors "github.com/jrsteele09/go-auth-bridge/internal/errors"
	"github.com/rs/zerolog/log"
)

const CollectionName = "pages"

type Page struct {
	ID        string    `bson:"_id" json:"id"`
	OwnerID   string    `bson:"owner_id" json:"owner_id"`
	Title     string    `bson:"title" json:"title"`
	Body      string    `bson:"body,omitempty" json:"body,omitempty"`
	Image     string    `bson:"image,omitempty" json:"image,omitempty"` // object key returned by an upload
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (Page) CollectionName() string { return CollectionName }
func (p Page) DocumentID() string   { return p.ID }

type CreateRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"max=20000"`
	Image string `json:"image" validate:"omitempty,max=512"`
}

type Service struct {
	pages    *collection.Engine[Page]
	validate *validator.Validate
	nowFunc  func() time.Time
}

type ServiceOption func(*Service)

func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func NewService(pages *collection.Engine[Page], options ...ServiceOption) *Service {
	s := &Service{
		pages:    pages,
		validate: validator.New(),
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, ownerID string, req CreateRequest) (*Page, error) {
	if ownerID == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.Kind(apperrors.ErrInvalidInput, "%v", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Wrapf(err, "[pages Create] id")
	}
	page := Page{
		ID:        id.String(),
		OwnerID:   ownerID,
		Title:     req.Title,
		Body:      req.Body,
		Image:     req.Image,
		CreatedAt: s.nowFunc().UTC().Truncate(time.Millisecond),
	}
	if err := s.pages.Create(ctx, page); err != nil {
		return nil, err
	}
	return &page, nil
}

// List returns one page of the owner's pages, newest first. cursor is the
// next_cursor of the previous call, or empty for the first page.
func (s *Service) List(ctx context.Context, ownerID, cursor string, limit int) (*collection.Page[Page], error) {
	after, err := collection.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	return s.pages.QueryPage(ctx, collection.Query{
		Filters: []collection.Filter{collection.Where("owner_id", collection.Eq, ownerID)},
		Order:   collection.OrderBy("created_at", collection.Descending),
		Cursor:  after,
		Limit:   limit,
	})
}

// Delete removes a page owned by ownerID. Pages of other owners report ErrForbidden.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	page, err := s.pages.Get(ctx, id)
	if err != nil {
		return err
	}
	if page.OwnerID != ownerID {
		log.Warn().Str("page", id).Str("owner", page.OwnerID).Str("caller", ownerID).Msg("refused to delete page of another owner")
		return apperrors.Wrapf(apperrors.ErrForbidden, "[pages Delete] %s", id)
	}
	return s.pages.Delete(ctx, id)
}
