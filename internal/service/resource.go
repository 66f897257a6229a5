package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/logger"
	"github.com/cloo-solutions/lessonindex/internal/pagination"
	"github.com/cloo-solutions/lessonindex/internal/telemetry"
	"github.com/google/uuid"
)

// ResourceRepositoryInterface defines the repository interface for resource persistence
type ResourceRepositoryInterface interface {
	Create(ctx context.Context, r *domain.Resource) error
	GetByID(ctx context.Context, id string) (*domain.Resource, error)
	ListByCourseWithCursor(ctx context.Context, courseID string, cursor *pagination.Cursor, limit int) (*ResourcePageResult, error)
	Delete(ctx context.Context, id string) error
}

type ResourcePageResult struct {
	Items      []*domain.Resource
	NextCursor string
	HasMore    bool
}

// ObjectRemover deletes stored objects by key
type ObjectRemover interface {
	DeleteObject(ctx context.Context, key string) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// ResourceService registers, lists and deletes resources
type ResourceService struct {
	repo     ResourceRepositoryInterface
	txRunner TxRunner
	objects  ObjectRemover
	uuidGen  UUIDGenerator
	log      *logger.Logger
}

// NewResourceService creates a new ResourceService. objects may be nil when
// no remote object store is configured.
func NewResourceService(repo ResourceRepositoryInterface, txRunner TxRunner, objects ObjectRemover, log *logger.Logger) *ResourceService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ResourceService{
		repo:     repo,
		txRunner: txRunner,
		objects:  objects,
		uuidGen:  &DefaultUUIDGenerator{},
		log:      log.With("component", "resources"),
	}
}

// RegisterInput represents the input for registering an uploaded resource
type RegisterInput struct {
	ID          string
	CourseID    string
	ModuleID    string
	Title       string
	Type        domain.ResourceType
	Locator     string
	StorageKind domain.StorageKind
	Published   bool
}

type ListResourcesInput struct {
	CourseID string
	Cursor   string
	Limit    int
}

type ListResourcesOutput struct {
	Items   []*domain.Resource
	Cursor  string
	HasMore bool
}

// Register persists a new PENDING resource record.
func (s *ResourceService) Register(ctx context.Context, input RegisterInput) (*domain.Resource, error) {
	ctx, span := telemetry.StartSpan(ctx, "ResourceService.Register", telemetry.SpanAttributes{
		ModuleID:  input.ModuleID,
		Operation: "register",
	})
	defer span.End()

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = s.uuidGen.NewString()
	}
	kind := input.StorageKind
	if kind == "" {
		kind = domain.StorageKindLocal
	}
	title := input.Title
	if title == "" {
		title = input.Locator
	}

	resource := domain.NewResource(id, input.CourseID, input.ModuleID, title, input.Type, input.Locator, kind, time.Now().UTC())
	resource.Published = input.Published
	if err := domain.ValidateResource(resource); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid resource", err)
	}

	if err := s.repo.Create(ctx, resource); err != nil {
		span.SetError(err)
		return nil, err
	}

	return resource, nil
}

// Get returns the resource record.
func (s *ResourceService) Get(ctx context.Context, id string) (*domain.Resource, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByCourse pages through a course's resources, newest upload first.
func (s *ResourceService) ListByCourse(ctx context.Context, input ListResourcesInput) (*ListResourcesOutput, error) {
	if input.CourseID == "" {
		return nil, domain.ErrMissingRequiredField
	}
	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	page, err := s.repo.ListByCourseWithCursor(ctx, input.CourseID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListResourcesOutput{
		Items:   page.Items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	}, nil
}

// Delete removes the resource together with its transcript and embeddings
// in one transaction, then removes the stored object for remote resources.
// A running attempt for the resource is fenced off because its next status
// write no longer matches a row.
func (s *ResourceService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "ResourceService.Delete", telemetry.SpanAttributes{
		ResourceID: id,
		Operation:  "delete",
	})
	defer span.End()

	resource, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if _, err := repos.Embeddings().DeleteByResource(ctx, id); err != nil {
			return fmt.Errorf("failed to purge embeddings: %w", err)
		}
		if err := repos.Transcripts().DeleteByResourceID(ctx, id); err != nil {
			return fmt.Errorf("failed to delete transcript: %w", err)
		}
		return repos.Resources().Delete(ctx, id)
	})
	if err != nil {
		span.SetError(err)
		return err
	}

	if resource.StorageKind == domain.StorageKindRemote && s.objects != nil {
		if err := s.objects.DeleteObject(ctx, resource.Locator); err != nil {
			s.log.Warn("failed to delete stored object", "resource_id", id, "locator", resource.Locator, "error", err)
		}
	}

	return nil
}
