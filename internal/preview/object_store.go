package preview

import (
	"context"
	"path"

	"github.com/dunamismax/batchpix/internal/id"
	"github.com/dunamismax/batchpix/internal/storage"
)

// ObjectStore stages previews in a shared object-store bucket so a separate
// presentation process can fetch them by handle.
type ObjectStore struct {
	client *storage.Client
	prefix string
}

func NewObjectStore(client *storage.Client, prefix string) *ObjectStore {
	if prefix == "" {
		prefix = "previews"
	}
	return &ObjectStore{
		client: client,
		prefix: prefix,
	}
}

func (s *ObjectStore) Put(ctx context.Context, jobID string, data []byte, contentType string) (string, error) {
	handle := path.Join(s.prefix, jobID, id.New())
	if err := s.client.WriteObject(ctx, handle, data, contentType); err != nil {
		return "", err
	}
	return handle, nil
}

func (s *ObjectStore) Open(ctx context.Context, handle string) ([]byte, error) {
	return s.client.ReadObject(ctx, handle)
}

func (s *ObjectStore) Release(ctx context.Context, handle string) error {
	return s.client.RemoveObject(ctx, handle)
}
