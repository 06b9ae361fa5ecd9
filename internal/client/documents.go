package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

const defaultContentType = "application/octet-stream"

type UploadParams struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadDocument stores the body in object storage and records it against the
// client. The object is removed again when the row cannot be written.
func (s *Service) UploadDocument(ctx context.Context, clientID uuid.UUID, params UploadParams) (*Document, error) {
	name := cleanFileName(params.Name)

	switch {
	case name == "":
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	case params.Size <= 0:
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	case params.Size > MaxDocumentSize:
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, MaxDocumentSize)
	}

	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return nil, err
	}

	contentType := params.ContentType
	if contentType == "" || contentType == defaultContentType {
		contentType = mime.TypeByExtension(path.Ext(name))
	}

	if contentType == "" {
		contentType = defaultContentType
	}

	key := fmt.Sprintf("clients/%s/%s/%s", clientID, uuid.NewString(), name)

	url, err := s.blobs.Put(ctx, key, params.Body, params.Size, contentType)
	if err != nil {
		return nil, fmt.Errorf("storing document: %w", err)
	}

	doc := &Document{
		ClientID:    clientID,
		Name:        name,
		ContentType: contentType,
		Size:        params.Size,
		Key:         key,
		URL:         url,
	}

	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		s.removeObject(ctx, key)
		return nil, err
	}

	slog.Info("client document uploaded", "client_id", clientID, "document_id", doc.ID, "size", doc.Size)

	return doc, nil
}

func (s *Service) Documents(ctx context.Context, clientID uuid.UUID) ([]*Document, error) {
	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return nil, err
	}

	return s.repo.ListDocuments(ctx, clientID)
}

// DocumentURL returns a presigned download URL for the document.
func (s *Service) DocumentURL(ctx context.Context, clientID, id uuid.UUID) (string, error) {
	doc, err := s.repo.GetDocument(ctx, clientID, id)
	if err != nil {
		return "", err
	}

	url, err := s.blobs.PresignGet(ctx, doc.Key)
	if err != nil {
		return "", fmt.Errorf("presigning document: %w", err)
	}

	return url, nil
}

func (s *Service) DeleteDocument(ctx context.Context, clientID, id uuid.UUID) error {
	doc, err := s.repo.DeleteDocument(ctx, clientID, id)
	if err != nil {
		return err
	}

	s.removeObject(ctx, doc.Key)

	slog.Info("client document deleted", "client_id", clientID, "document_id", id)

	return nil
}

// removeObject is best effort; an orphaned object is only wasted space.
func (s *Service) removeObject(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		slog.Warn("failed to remove stored document", "key", key, "error", err)
	}
}

// cleanFileName keeps the base name and replaces anything outside a
// conservative set so the name is safe inside an object key.
func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == ".." || name == "/" {
		return ""
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
