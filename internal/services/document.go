package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/scholaraid/apiserver/internal/storage"
	"github.com/scholaraid/apiserver/internal/store"
	"github.com/scholaraid/apiserver/types"
	"go.uber.org/zap"
)

// DocumentRepository defines persistence operations for document metadata.
type DocumentRepository interface {
	ListByApplication(ctx context.Context, applicationID string) ([]types.Document, error)
	Get(ctx context.Context, id string) (types.Document, error)
	Create(ctx context.Context, d types.Document) (types.Document, error)
	Delete(ctx context.Context, id string) error
}

// OwnedApplications resolves an application owned by a user.
type OwnedApplications interface {
	Owned(ctx context.Context, userID, id string) (types.Application, error)
}

// DocumentService stores application documents: metadata in the database,
// bodies in object storage.
type DocumentService struct {
	repo         DocumentRepository
	applications OwnedApplications
	storage      *storage.Storage
	logger       *zap.Logger
}

// NewDocumentService constructs the service. A nil storage disables uploads
// and downloads.
func NewDocumentService(repo DocumentRepository, applications OwnedApplications, objects *storage.Storage, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, applications: applications, storage: objects, logger: logger}
}

// Enabled reports whether an object store is configured.
func (s *DocumentService) Enabled() bool {
	return s.storage != nil
}

func (s *DocumentService) List(ctx context.Context, userID, applicationID string) ([]types.Document, error) {
	if _, err := s.applications.Owned(ctx, userID, applicationID); err != nil {
		return nil, err
	}
	return s.repo.ListByApplication(ctx, applicationID)
}

// Upload is one file received for an application.
type Upload struct {
	Name        string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Upload stores a document for an owned application that is not finalized.
func (s *DocumentService) Upload(ctx context.Context, userID, applicationID string, up Upload) (types.Document, error) {
	if s.storage == nil {
		return types.Document{}, ErrStorageDisabled
	}
	if up.Size <= 0 {
		return types.Document{}, ErrEmptyDocument
	}
	application, err := s.applications.Owned(ctx, userID, applicationID)
	if err != nil {
		return types.Document{}, err
	}
	if application.Status.Finalized() {
		return types.Document{}, ErrFinalizedDocuments
	}

	name := strings.TrimSpace(up.Name)
	if name == "" {
		name = up.Filename
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := types.Document{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		UserID:        userID,
		Name:          name,
		ContentType:   contentType,
		SizeBytes:     up.Size,
	}
	doc.ObjectKey = storage.DocumentKey(applicationID, doc.ID, up.Filename)

	if err := s.storage.Put(ctx, doc.ObjectKey, up.Body, up.Size, contentType); err != nil {
		return types.Document{}, err
	}
	created, err := s.repo.Create(ctx, doc)
	if err != nil {
		s.removeObject(ctx, doc.ObjectKey)
		return types.Document{}, err
	}
	return created, nil
}

// Open returns an owned document and a reader over its body. Callers close
// the reader.
func (s *DocumentService) Open(ctx context.Context, userID, applicationID, documentID string) (types.Document, io.ReadCloser, error) {
	if s.storage == nil {
		return types.Document{}, nil, ErrStorageDisabled
	}
	doc, err := s.owned(ctx, userID, applicationID, documentID)
	if err != nil {
		return types.Document{}, nil, err
	}
	body, err := s.storage.Get(ctx, doc.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Document{}, nil, ErrDocumentNotFound
		}
		return types.Document{}, nil, err
	}
	return doc, body, nil
}

// Delete removes an owned document. The stored body is removed after the
// metadata; a failure there is only logged.
func (s *DocumentService) Delete(ctx context.Context, userID, applicationID, documentID string) error {
	application, err := s.applications.Owned(ctx, userID, applicationID)
	if err != nil {
		return err
	}
	if application.Status.Finalized() {
		return ErrFinalized
	}
	doc, err := s.owned(ctx, userID, applicationID, documentID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	s.removeObject(ctx, doc.ObjectKey)
	return nil
}

func (s *DocumentService) owned(ctx context.Context, userID, applicationID, documentID string) (types.Document, error) {
	if _, err := s.applications.Owned(ctx, userID, applicationID); err != nil {
		return types.Document{}, err
	}
	doc, err := s.repo.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Document{}, ErrDocumentNotFound
		}
		return types.Document{}, err
	}
	if doc.ApplicationID != applicationID {
		return types.Document{}, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) removeObjects(ctx context.Context, docs []types.Document) {
	for _, doc := range docs {
		s.removeObject(ctx, doc.ObjectKey)
	}
}

func (s *DocumentService) removeObject(ctx context.Context, key string) {
	if s.storage == nil || key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("failed to remove document object", zap.String("key", key), zap.Error(err))
	}
}
