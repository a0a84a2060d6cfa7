package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lii16com/arkilino/internal/config"
	"github.com/lii16com/arkilino/internal/domain"
)

func openTestStore(t *testing.T) *documentStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := NewConnection(config.DatabaseConfig{URL: url})
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db))

	_, err = db.Exec(`DELETE FROM storefront_documents`)
	require.NoError(t, err)

	s := NewDocumentStore(db, nil)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDocumentStore_EmptyWhenNoRow(t *testing.T) {
	s := openTestStore(t)

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyDocument(), doc)
}

func TestDocumentStore_PersistOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := domain.EmptyDocument()
	first.Products = []domain.Product{{ID: "h1", Title: "Classic", Price: 10000, Extras: []domain.Extra{}}}
	require.NoError(t, s.Persist(ctx, first))

	second := domain.EmptyDocument()
	second.Products = []domain.Product{
		{ID: "h2", Title: "Steel", Price: 15000, Extras: []domain.Extra{}},
		{ID: "h3", Title: "Coal", Price: 3000, Extras: []domain.Extra{}},
	}
	require.NoError(t, s.Persist(ctx, second))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Products, loaded.Products)
}

func TestDocumentStore_CorruptBodyYieldsEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO storefront_documents (id, body) VALUES ($1, '"not a document"')`, documentRowID)
	require.NoError(t, err)

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyDocument(), doc)
}
