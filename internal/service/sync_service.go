package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/domain"
	"github.com/lii16com/arkilino/internal/repository"
	"github.com/lii16com/arkilino/pkg/errors"
)

const (
	orderIDModulus = 100_000_000
	publishTimeout = 15 * time.Second
)

// OrderIDTakenMessage is the conflict label for a client order id already in use.
const OrderIDTakenMessage = "order id already exists"

// SyncService owns the storefront document: reads go straight to the store,
// every mutation goes through the Writer.
type SyncService struct {
	store        repository.DocumentStore
	writer       *Writer
	publisher    Publisher
	strictWrites bool
	logger       *zap.Logger
	now          func() time.Time

	publishing sync.WaitGroup
}

// NewSyncService creates the service. With strictWrites false a failed
// persist is logged and the mutation still reported as accepted.
func NewSyncService(store repository.DocumentStore, writer *Writer, publisher Publisher, strictWrites bool, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = NopPublisher
	}
	return &SyncService{
		store:        store,
		writer:       writer,
		publisher:    publisher,
		strictWrites: strictWrites,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock replaces the time source used for order ids and timestamps.
func (s *SyncService) SetClock(now func() time.Time) {
	s.now = now
}

// Wait blocks until every event published so far has been handed off.
func (s *SyncService) Wait() {
	s.publishing.Wait()
}

func (s *SyncService) load(ctx context.Context) *domain.Document {
	doc, err := s.store.Load(ctx)
	if err != nil || doc == nil {
		s.logger.Warn("Failed to load document, serving empty document", zap.Error(err))
		return domain.EmptyDocument()
	}
	return doc
}

// commit runs m through the writer. persisted reports whether the document
// actually reached the store.
func (s *SyncService) commit(ctx context.Context, m Mutator) (persisted bool, err error) {
	err = s.writer.Apply(ctx, m)
	if err == nil {
		return true, nil
	}
	var storageErr *errors.ErrStorage
	if stderrors.As(err, &storageErr) && storageErr.Op == "persist" && !s.strictWrites {
		s.logger.Warn("Write not persisted, acknowledging anyway", zap.Error(err))
		return false, nil
	}
	return false, err
}

func (s *SyncService) publish(event domain.Event) {
	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Event not delivered",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.Error(err))
		}
	}()
}

// ListProducts returns the catalog, never nil.
func (s *SyncService) ListProducts(ctx context.Context) []domain.Product {
	return s.load(ctx).Products
}

// ReplaceProducts swaps the whole catalog.
func (s *SyncService) ReplaceProducts(ctx context.Context, products []domain.Product) (int, error) {
	if products == nil {
		products = []domain.Product{}
	}
	for i := range products {
		if products[i].Extras == nil {
			products[i].Extras = []domain.Extra{}
		}
	}
	if err := ValidateProducts(products); err != nil {
		return 0, err
	}

	catalog := make([]domain.Product, len(products))
	copy(catalog, products)

	persisted, err := s.commit(ctx, func(doc *domain.Document) error {
		doc.Products = catalog
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("Catalog replaced", zap.Int("count", len(catalog)))
	if persisted {
		s.publish(domain.NewProductsReplaced(catalog))
	}
	return len(catalog), nil
}

// ListOrders returns every order, newest first.
func (s *SyncService) ListOrders(ctx context.Context) []domain.Order {
	return s.load(ctx).OrdersNewestFirst()
}

// CreateOrder validates and appends order, assigning id, timestamp and
// status when absent. A client supplied id already in use is a conflict.
func (s *SyncService) CreateOrder(ctx context.Context, order domain.Order) (string, error) {
	order.ID = strings.TrimSpace(order.ID)
	if order.Status == "" {
		order.Status = domain.OrderStatusReceived
	}
	for i := range order.Items {
		if order.Items[i].Extras == nil {
			order.Items[i].Extras = []domain.Extra{}
		}
	}
	if err := ValidateOrder(order); err != nil {
		return "", err
	}

	var created domain.Order
	persisted, err := s.commit(ctx, func(doc *domain.Document) error {
		now := s.now()
		o := order
		if o.ID == "" {
			o.ID = nextOrderID(doc, now)
		} else if doc.HasOrder(o.ID) {
			return &errors.ErrConflict{Message: OrderIDTakenMessage}
		}
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now.UTC()
		}
		doc.Orders = append(doc.Orders, o)
		created = o
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("Order created",
		zap.String("order_id", created.ID),
		zap.Int("items", len(created.Items)),
		zap.Int64("total", created.Total))
	if persisted {
		s.publish(domain.NewOrderCreated(created))
	}
	return created.ID, nil
}

// UpdateOrderStatus sets the progress label of an existing order.
func (s *SyncService) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	if err := ValidateStatus(status); err != nil {
		return err
	}
	persisted, err := s.commit(ctx, func(doc *domain.Document) error {
		order := doc.FindOrder(id)
		if order == nil {
			return &errors.ErrNotFound{Resource: "order", ID: id}
		}
		order.Status = status
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("Order status changed", zap.String("order_id", id), zap.String("status", string(status)))
	if persisted {
		s.publish(domain.NewOrderStatusChanged(id, status))
	}
	return nil
}

// GetThread returns the thread of userID, or an empty thread shape.
func (s *SyncService) GetThread(ctx context.Context, userID string) *domain.Thread {
	if t, ok := s.load(ctx).Chats[userID]; ok {
		return t
	}
	return domain.NewThread(userID)
}

// ListThreadSummaries returns one row per thread ordered by user id.
func (s *SyncService) ListThreadSummaries(ctx context.Context) []domain.ThreadSummary {
	return s.load(ctx).ThreadSummaries()
}

// AppendChat adds a message to a thread, creating the thread on first use.
func (s *SyncService) AppendChat(ctx context.Context, req ChatRequest) error {
	if err := ValidateChat(req); err != nil {
		return err
	}
	userID := strings.TrimSpace(req.UserID)
	msg := domain.Message{Admin: req.Msg.Me, Text: req.Msg.Text, TS: req.Msg.TS}
	if msg.TS == 0 {
		msg.TS = s.now().UnixMilli()
	}

	persisted, err := s.commit(ctx, func(doc *domain.Document) error {
		thread, ok := doc.Chats[userID]
		if !ok {
			thread = domain.NewThread(userID)
			doc.Chats[userID] = thread
		}
		thread.Append(msg, req.Name, req.Phone)
		return nil
	})
	if err != nil {
		return err
	}
	if persisted {
		s.publish(domain.NewChatMessage(userID, msg, req.Name, req.Phone))
	}
	return nil
}

// nextOrderID derives an id from the last eight digits of the millisecond
// clock, stepping forward until it is unused.
func nextOrderID(doc *domain.Document, now time.Time) string {
	used := make(map[string]struct{}, len(doc.Orders))
	for _, o := range doc.Orders {
		used[o.ID] = struct{}{}
	}
	n := now.UnixMilli() % orderIDModulus
	for {
		id := fmt.Sprintf("%08d", n)
		if _, taken := used[id]; !taken {
			return id
		}
		n = (n + 1) % orderIDModulus
	}
}
