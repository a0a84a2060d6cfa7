package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/domain"
)

// documentRowID is the key of the only row; the whole storefront is one document.
const documentRowID = 1

type documentStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewDocumentStore creates a document store keeping the document as one JSONB row
func NewDocumentStore(db *sqlx.DB, logger *zap.Logger) *documentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &documentStore{
		db:     db,
		logger: logger,
	}
}

func (r *documentStore) Load(ctx context.Context) (*domain.Document, error) {
	query := `SELECT body FROM storefront_documents WHERE id = $1`

	var body []byte
	err := r.db.GetContext(ctx, &body, query, documentRowID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EmptyDocument(), nil
	}
	if err != nil {
		r.logger.Error("Failed to load document", zap.Error(err))
		return nil, errors.Wrap(err, "select document")
	}

	var doc domain.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		r.logger.Warn("Stored document is corrupt, using empty document", zap.Error(err))
		return domain.EmptyDocument(), nil
	}
	return doc.Normalize(), nil
}

// Persist upserts the row in a single statement, which Postgres applies atomically.
func (r *documentStore) Persist(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		doc = domain.EmptyDocument()
	}
	body, err := json.Marshal(doc.Normalize())
	if err != nil {
		return errors.Wrap(err, "marshal document")
	}

	query := `
		INSERT INTO storefront_documents (id, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, documentRowID, string(body)); err != nil {
		r.logger.Error("Failed to persist document", zap.Error(err))
		return errors.Wrap(err, "upsert document")
	}
	return nil
}

func (r *documentStore) Close() error {
	return r.db.Close()
}
