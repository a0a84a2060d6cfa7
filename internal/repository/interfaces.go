package repository

import (
	"context"

	"github.com/lii16com/arkilino/internal/domain"
)

// DocumentStore persists the whole storefront document as one unit.
//
// Load never fails because the document is missing or unreadable: those cases
// yield domain.EmptyDocument(). A non-nil error means the backend itself could
// not be reached. Persist must be atomic with respect to concurrent Loads.
type DocumentStore interface {
	Load(ctx context.Context) (*domain.Document, error)
	Persist(ctx context.Context, doc *domain.Document) error
}

// Closer is implemented by stores holding external resources.
type Closer interface {
	Close() error
}
