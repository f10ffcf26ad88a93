package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/campus-incidents/apiserver/internal/storage"
)

// AttachmentService stores incident photos in the configured object store.
// Keys are namespaced per incident: incidents/{incident_id}/{filename}.
type AttachmentService struct {
	storage *storage.Storage
}

// NewAttachmentService constructs the service. st may be nil when no
// storage backend is configured; Enabled reports that.
func NewAttachmentService(st *storage.Storage) *AttachmentService {
	return &AttachmentService{storage: st}
}

func (s *AttachmentService) Enabled() bool {
	return s.storage != nil
}

// Upload stores one attachment and returns its object key.
func (s *AttachmentService) Upload(ctx context.Context, incidentID, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("attachment storage is not configured")
	}

	key, err := attachmentKey(incidentID, filename)
	if err != nil {
		return "", err
	}
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns a reader for a stored attachment.
func (s *AttachmentService) Open(ctx context.Context, incidentID, filename string) (io.ReadCloser, error) {
	if !s.Enabled() {
		return nil, errors.New("attachment storage is not configured")
	}

	key, err := attachmentKey(incidentID, filename)
	if err != nil {
		return nil, err
	}
	return s.storage.Get(ctx, key)
}

func attachmentKey(incidentID, filename string) (string, error) {
	name := path.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return "", errors.New("invalid attachment filename")
	}
	return fmt.Sprintf("incidents/%s/%s", incidentID, name), nil
}
