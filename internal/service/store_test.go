package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lii16com/arkilino/internal/domain"
)

// memoryStore keeps the document as JSON so every Load hands out a fresh copy.
type memoryStore struct {
	mu         sync.Mutex
	raw        []byte
	loadErr    error
	persistErr error
	persists   int
	onPersist  func(doc *domain.Document)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{}
}

func (m *memoryStore) Load(_ context.Context) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.raw == nil {
		return domain.EmptyDocument(), nil
	}
	var doc domain.Document
	if err := json.Unmarshal(m.raw, &doc); err != nil {
		return domain.EmptyDocument(), nil
	}
	return doc.Normalize(), nil
}

func (m *memoryStore) Persist(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onPersist != nil {
		m.onPersist(doc)
	}
	if m.persistErr != nil {
		return m.persistErr
	}
	raw, err := json.Marshal(doc.Normalize())
	if err != nil {
		return err
	}
	m.raw = raw
	m.persists++
	return nil
}

func (m *memoryStore) setPersistErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistErr = err
}

func (m *memoryStore) setLoadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

func (m *memoryStore) persistCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persists
}

func (m *memoryStore) snapshot() *domain.Document {
	doc, _ := m.Load(context.Background())
	return doc
}

// nilDocStore answers Load with no document and no error.
type nilDocStore struct{}

func (nilDocStore) Load(context.Context) (*domain.Document, error) { return nil, nil }

func (nilDocStore) Persist(context.Context, *domain.Document) error { return nil }
