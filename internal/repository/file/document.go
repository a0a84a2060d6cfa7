package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/domain"
)

type documentStore struct {
	path   string
	logger *zap.Logger
}

// NewDocumentStore creates a JSON file backed document store at path
func NewDocumentStore(path string, logger *zap.Logger) *documentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &documentStore{
		path:   path,
		logger: logger,
	}
}

// Path returns the document location.
func (s *documentStore) Path() string {
	return s.path
}

// Ensure writes an empty document if none exists yet.
func (s *documentStore) Ensure(ctx context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat %s", s.path)
	}
	s.logger.Info("Creating empty storefront document", zap.String("path", s.path))
	return s.Persist(ctx, domain.EmptyDocument())
}

// Load reads the document. Missing or corrupt files are treated as "no data yet".
func (s *documentStore) Load(_ context.Context) (*domain.Document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read document, using empty document", zap.String("path", s.path), zap.Error(err))
		}
		return domain.EmptyDocument(), nil
	}

	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn("Document is corrupt, using empty document", zap.String("path", s.path), zap.Error(err))
		return domain.EmptyDocument(), nil
	}
	return doc.Normalize(), nil
}

// Persist replaces the document atomically: write a sibling temp file, fsync, rename.
func (s *documentStore) Persist(_ context.Context, doc *domain.Document) error {
	if doc == nil {
		doc = domain.EmptyDocument()
	}
	data, err := json.MarshalIndent(doc.Normalize(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal document")
	}
	return WriteAtomic(s.path, data, 0o644)
}

// WriteAtomic replaces path with data so readers see either the old or the new
// content, never a prefix of it.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return errors.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename into %s", path)
	}
	committed = true
	return nil
}
