package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/config"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/casevault/internal/server/storage"
	"github.com/google/uuid"
)

// blobContentType is what the encrypted hex blob is stored as.
const blobContentType = "text/plain"

const presignTTL = 15 * time.Minute

// UploadRequest is one client file on its way into storage.
type UploadRequest struct {
	OwnerID     string
	CaseID      string
	FileName    string
	FileType    string
	Category    string
	Description string
	Content     []byte
}

// DocumentService stores client documents encrypted at rest.
type DocumentService struct {
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	cipher         Cipher
	blobs          storage.BlobStore
	logger         logging.Logger
	maxUploadBytes int64
}

func NewDocumentService(db *sql.DB, m repomanager.RepositoryManager, cipher Cipher, blobs storage.BlobStore, cfg *config.Config, logger logging.Logger) *DocumentService {
	return &DocumentService{
		db:             db,
		repomanager:    m,
		cipher:         cipher,
		blobs:          blobs,
		logger:         logger.With("module", "documents"),
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// StorageKey returns a fresh object key under the owner's prefix.
func StorageKey(ownerID string, now time.Time) string {
	return fmt.Sprintf("documents/%s/%04d/%02d/%02d/%v", ownerID, now.Year(), now.Month(), now.Day(), uuid.New())
}

// Upload encrypts the content, writes the blob and records the document.
// If the record cannot be written the blob is removed again.
func (s *DocumentService) Upload(ctx context.Context, req UploadRequest) (*models.Document, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", common.ErrValidation)
	}
	if len(req.Content) == 0 {
		return nil, fmt.Errorf("%w: no file provided", common.ErrValidation)
	}
	if int64(len(req.Content)) > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", common.ErrValidation, s.maxUploadBytes)
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(req.FileName), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrValidation)
	}

	blob, err := s.cipher.Encrypt(req.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypt document: %w", err)
	}

	key := StorageKey(req.OwnerID, time.Now().UTC())
	if err := s.blobs.Put(ctx, key, []byte(blob), blobContentType); err != nil {
		s.logger.Error(ctx, "document blob upload failed", "owner_id", req.OwnerID, "kind", common.Kind(err), "error", err)
		return nil, err
	}

	category := req.Category
	if category == "" {
		category = models.DefaultDocumentCategory
	}

	doc := &models.Document{
		ID:              uuid.NewString(),
		UserID:          req.OwnerID,
		CaseID:          req.CaseID,
		FileName:        name,
		FileType:        req.FileType,
		FileSize:        int64(len(req.Content)),
		StorageKey:      key,
		FileURL:         s.blobs.URL(key),
		Encrypted:       true,
		ContentEncoding: models.EncodingRaw,
		Category:        category,
		Description:     req.Description,
		Status:          models.DocumentPending,
	}

	if err := s.repomanager.Documents(s.db).Create(ctx, doc); err != nil {
		err = fmt.Errorf("%w: record document: %v", common.ErrPersistence, err)
		s.logger.Error(ctx, "document record failed", "owner_id", req.OwnerID, "storage_key", key, "kind", common.Kind(err), "error", err)
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			s.logger.Error(ctx, "orphaned document blob", "storage_key", key, "kind", common.Kind(derr), "error", derr)
		}
		return nil, err
	}

	s.logger.Info(ctx, "document uploaded", "document_id", doc.ID, "owner_id", doc.UserID, "size", doc.FileSize)
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, ownerID string) ([]*models.Document, error) {
	return s.repomanager.Documents(s.db).ListByOwner(ctx, ownerID)
}

// get loads a document the owner may see; others' documents are not found.
func (s *DocumentService) get(ctx context.Context, ownerID, id string) (*models.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	doc, err := s.repomanager.Documents(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != ownerID {
		return nil, common.ErrorNotFound
	}
	return doc, nil
}

// Open returns the document and its decrypted content, decoding blobs
// written in the legacy base64 layout. A blob that fails authentication
// yields common.ErrIntegrity and no content.
func (s *DocumentService) Open(ctx context.Context, ownerID, id string) (*models.Document, []byte, error) {
	doc, err := s.get(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}

	blob, err := s.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			err = fmt.Errorf("%w: blob %s is missing", common.ErrPersistence, doc.StorageKey)
		}
		s.logger.Error(ctx, "document blob fetch failed", "document_id", doc.ID, "kind", common.Kind(err), "error", err)
		return nil, nil, err
	}

	if !doc.Encrypted {
		return doc, blob, nil
	}

	content, err := s.cipher.Decrypt(string(blob))
	if err != nil {
		s.logger.Error(ctx, "document failed integrity check", "document_id", doc.ID, "kind", common.Kind(err))
		return nil, nil, err
	}

	if doc.ContentEncoding == models.EncodingBase64 {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(content)))
		if err != nil {
			err = fmt.Errorf("%w: document %s is not valid base64", common.ErrIntegrity, doc.ID)
			s.logger.Error(ctx, "legacy document failed to decode", "document_id", doc.ID, "kind", common.Kind(err))
			return nil, nil, err
		}
		content = raw
	}
	return doc, content, nil
}

// PresignedURL returns a short-lived link to the stored ciphertext.
func (s *DocumentService) PresignedURL(ctx context.Context, ownerID, id string) (string, error) {
	doc, err := s.get(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	return s.blobs.PresignGet(ctx, doc.StorageKey, presignTTL)
}
