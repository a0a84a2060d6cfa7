package mirror

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lii16com/arkilino/internal/domain"
	"github.com/lii16com/arkilino/internal/service"
)

// ProductSource tells where Start found the catalog.
type ProductSource string

const (
	SourceRemote ProductSource = "remote"
	SourceCache  ProductSource = "cache"
	SourceSeed   ProductSource = "seed"
)

// ErrUnknownOrder is returned when a status change names an order the view has never seen.
var ErrUnknownOrder = errors.New("unknown order")

// RetryPolicy bounds how hard a background push tries.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
}

// DefaultRetryPolicy retries a push three times, doubling a 500ms pause.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 500 * time.Millisecond, Timeout: 15 * time.Second}

// CartLine is one product in the cart with its chosen extras.
type CartLine struct {
	Product  domain.Product
	Quantity int
	Extras   []domain.Extra
}

// Snapshot is what an admin pull brings back.
type Snapshot struct {
	Products []domain.Product
	Orders   []domain.Order
	Threads  []domain.ThreadSummary
}

// View is one open client view: it keeps the device cache current, tells the
// other views on the device about its changes and pushes them to the server
// in the background.
type View struct {
	id     string
	cache  *Cache
	client *Client
	bus    *Bus
	logger *zap.Logger
	retry  RetryPolicy
	now    func() time.Time

	mu         sync.Mutex
	products   []domain.Product
	orders     []domain.Order
	chats      map[string]*domain.Thread
	renumbered map[string]string
	onEvent    Handler

	pushes      sync.WaitGroup
	unsubscribe func()
}

// NewView creates a view and subscribes it to bus. An empty id gets a random one.
func NewView(id string, cache *Cache, client *Client, bus *Bus, logger *zap.Logger) *View {
	if id == "" {
		id = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = NewClient("", "", logger)
	}
	if bus == nil {
		bus = NewBus()
	}
	v := &View{
		id:     id,
		cache:  cache,
		client: client,
		bus:    bus,
		logger: logger.With(zap.String("view", id)),
		retry:  DefaultRetryPolicy,
		now:    time.Now,
		orders: []domain.Order{},
		chats:  map[string]*domain.Thread{},

		renumbered: map[string]string{},
	}
	v.unsubscribe = bus.Subscribe(id, v.Apply)
	return v
}

func (v *View) ID() string { return v.id }

// SetRetryPolicy replaces the push retry policy.
func (v *View) SetRetryPolicy(p RetryPolicy) {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultRetryPolicy.Timeout
	}
	v.retry = p
}

// SetClock replaces the time source used for order ids and message stamps.
func (v *View) SetClock(now func() time.Time) {
	v.now = now
}

// OnEvent registers h to run after an event from another view was applied.
func (v *View) OnEvent(h Handler) {
	v.mu.Lock()
	v.onEvent = h
	v.mu.Unlock()
}

// Start loads the cached state and pulls the catalog. When the server cannot
// be reached the cached catalog is used, and failing that the seed catalog.
func (v *View) Start(ctx context.Context) ProductSource {
	v.mu.Lock()
	v.orders = v.cache.Orders()
	v.chats = v.cache.Chats()
	v.mu.Unlock()

	if v.client.Configured() {
		products, err := v.client.FetchProducts(ctx)
		if err == nil {
			v.setProducts(products)
			return SourceRemote
		}
		v.logger.Warn("Failed to pull products, using local catalog", zap.Error(err))
	}

	if products, ok := v.cache.Products(); ok {
		v.mu.Lock()
		v.products = products
		v.mu.Unlock()
		return SourceCache
	}

	v.setProducts(SeedProducts())
	return SourceSeed
}

func (v *View) setProducts(products []domain.Product) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.products = products
	if err := v.cache.SetProducts(products); err != nil {
		v.logger.Warn("Failed to cache products", zap.Error(err))
	}
}

// Profile returns the customer identity of this device, creating a user id
// the first time.
func (v *View) Profile() Profile {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.cache.Profile()
	if ok {
		return p
	}
	p = Profile{UserID: "u" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]}
	if err := v.cache.SetProfile(p); err != nil {
		v.logger.Warn("Failed to cache profile", zap.Error(err))
	}
	return p
}

// SaveProfile remembers name and phone for later chats and checkouts.
func (v *View) SaveProfile(p Profile) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cache.SetProfile(p)
}

// Products returns a copy of the catalog.
func (v *View) Products() []domain.Product {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.Product, len(v.products))
	copy(out, v.products)
	return out
}

// Orders returns a copy of the known orders, newest first.
func (v *View) Orders() []domain.Order {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.Order, len(v.orders))
	copy(out, v.orders)
	return out
}

// Thread returns a copy of userID's thread, or an empty thread.
func (v *View) Thread(userID string) domain.Thread {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.chats[userID]
	if !ok {
		return *domain.NewThread(userID)
	}
	cp := *t
	cp.Messages = append([]domain.Message{}, t.Messages...)
	return cp
}

// ReplaceProducts is the admin catalog edit: cache, broadcast, push.
func (v *View) ReplaceProducts(ctx context.Context, products []domain.Product) error {
	catalog := make([]domain.Product, len(products))
	copy(catalog, products)
	for i := range catalog {
		if catalog[i].Extras == nil {
			catalog[i].Extras = []domain.Extra{}
		}
	}
	if err := service.ValidateProducts(catalog); err != nil {
		return err
	}

	v.setProducts(catalog)
	v.broadcast(domain.NewProductsReplaced(catalog))
	v.push(ctx, "products", func(ctx context.Context) error {
		return v.client.PushProducts(ctx, catalog)
	})
	return nil
}

// Checkout turns the cart into an order: cache, broadcast, push.
func (v *View) Checkout(ctx context.Context, cart []CartLine, customer domain.Customer) (domain.Order, error) {
	order := domain.Order{
		Items:    make([]domain.LineItem, 0, len(cart)),
		Customer: customer,
		Status:   domain.OrderStatusReceived,
	}
	for _, line := range cart {
		extras := line.Extras
		if extras == nil {
			extras = []domain.Extra{}
		}
		order.Items = append(order.Items, domain.LineItem{
			Title:    line.Product.Title,
			Quantity: line.Quantity,
			Price:    line.Product.Price,
			Extras:   extras,
		})
	}
	order.Total = order.ComputeTotal()
	if err := service.ValidateOrder(order); err != nil {
		return domain.Order{}, err
	}

	now := v.now()
	v.mu.Lock()
	order.ID = v.nextOrderIDLocked(now)
	order.CreatedAt = now.UTC()
	v.orders = append([]domain.Order{order}, v.orders...)
	v.saveOrdersLocked()
	v.mu.Unlock()

	v.broadcast(domain.NewOrderCreated(order))
	v.push(ctx, "order", func(ctx context.Context) error {
		_, err := v.client.PushOrder(ctx, order)
		if !orderIDTaken(err) {
			return err
		}
		// another device used this id; the server numbers the order instead
		fresh := order
		fresh.ID = ""
		id, err := v.client.PushOrder(WithIdempotencyKey(ctx, idempotencyKeyFrom(ctx)+":renumber"), fresh)
		if err != nil {
			return err
		}
		v.renumberOrder(order.ID, id)
		return nil
	})
	return order, nil
}

// CurrentOrderID follows id through any renumbering the server did at checkout.
func (v *View) CurrentOrderID(id string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	for {
		next, ok := v.renumbered[id]
		if !ok {
			return id
		}
		id = next
	}
}

func (v *View) renumberOrder(prevID, id string) {
	v.mu.Lock()
	order, ok := v.renumberLocked(prevID, id, nil)
	v.mu.Unlock()
	if !ok {
		return
	}
	v.logger.Info("Order renumbered by server", zap.String("prev_id", prevID), zap.String("order_id", id))
	v.broadcast(domain.NewOrderRenumbered(prevID, order))
}

// SendChat appends a message to userID's thread: cache, broadcast, push.
// admin marks messages written by the shop.
func (v *View) SendChat(ctx context.Context, userID, text string, admin bool, name, phone string) (domain.Message, error) {
	userID = strings.TrimSpace(userID)
	msg := domain.Message{Admin: admin, Text: text, TS: v.now().UnixMilli()}
	req := service.ChatRequest{
		UserID: userID,
		Msg:    &service.ChatMessageRequest{Me: admin, Text: text, TS: msg.TS},
		Name:   name,
		Phone:  phone,
	}
	if err := service.ValidateChat(req); err != nil {
		return domain.Message{}, err
	}

	v.mu.Lock()
	v.appendMessageLocked(userID, msg, name, phone)
	v.saveChatsLocked()
	v.mu.Unlock()

	v.broadcast(domain.NewChatMessage(userID, msg, name, phone))
	v.push(ctx, "chat", func(ctx context.Context) error {
		return v.client.PushChat(ctx, userID, msg, name, phone)
	})
	return msg, nil
}

// SetOrderStatus is the admin status change: cache, broadcast, push.
func (v *View) SetOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	if err := service.ValidateStatus(status); err != nil {
		return err
	}
	v.mu.Lock()
	found := v.setStatusLocked(id, status)
	if found {
		v.saveOrdersLocked()
	}
	v.mu.Unlock()
	if !found && !v.client.Configured() {
		return errors.Wrap(ErrUnknownOrder, id)
	}

	v.broadcast(domain.NewOrderStatusChanged(id, status))
	v.push(ctx, "order status", func(ctx context.Context) error {
		return v.client.SetOrderStatus(ctx, id, status)
	})
	return nil
}

// Apply merges an event from another view. Applying the same event twice
// leaves the state as applying it once.
func (v *View) Apply(event domain.Event) {
	v.mu.Lock()
	switch event.Type {
	case domain.EventProductsReplaced:
		v.products = append([]domain.Product{}, event.Products...)
		if err := v.cache.SetProducts(v.products); err != nil {
			v.logger.Warn("Failed to cache products", zap.Error(err))
		}
	case domain.EventOrderCreated:
		if event.Order != nil && !v.hasOrderLocked(event.Order.ID) {
			v.orders = append([]domain.Order{*event.Order}, v.orders...)
			v.saveOrdersLocked()
		}
	case domain.EventOrderStatusChanged:
		if v.setStatusLocked(event.OrderID, event.Status) {
			v.saveOrdersLocked()
		}
	case domain.EventOrderRenumbered:
		if event.PrevID != "" && event.OrderID != "" {
			v.renumberLocked(event.PrevID, event.OrderID, event.Order)
		}
	case domain.EventChatMessage:
		if event.Message != nil && event.UserID != "" {
			if v.appendMessageLocked(event.UserID, *event.Message, event.Name, event.Phone) {
				v.saveChatsLocked()
			}
		}
	default:
		v.logger.Debug("Ignoring unknown event", zap.String("type", string(event.Type)))
	}
	h := v.onEvent
	v.mu.Unlock()

	if h != nil {
		h(event)
	}
}

// PullAll refreshes catalog, orders and every thread from the server
// concurrently. Needs the admin PIN.
func (v *View) PullAll(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := v.client.FetchProducts(gctx)
		snap.Products = products
		return errors.Wrap(err, "pull products")
	})
	g.Go(func() error {
		orders, err := v.client.FetchOrders(gctx)
		snap.Orders = orders
		return errors.Wrap(err, "pull orders")
	})
	g.Go(func() error {
		threads, err := v.client.FetchThreads(gctx)
		snap.Threads = threads
		return errors.Wrap(err, "pull chats")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	threads := make([]*domain.Thread, len(snap.Threads))
	tg, tctx := errgroup.WithContext(ctx)
	tg.SetLimit(4)
	for i, s := range snap.Threads {
		i, userID := i, s.UserID
		tg.Go(func() error {
			t, err := v.client.FetchThread(tctx, userID)
			threads[i] = t
			return errors.Wrapf(err, "pull thread %s", userID)
		})
	}
	if err := tg.Wait(); err != nil {
		return nil, err
	}

	v.setProducts(snap.Products)
	v.mu.Lock()
	v.orders = snap.Orders
	v.saveOrdersLocked()
	for _, t := range threads {
		v.chats[t.UserID] = t
	}
	v.saveChatsLocked()
	v.mu.Unlock()
	return &snap, nil
}

// Flush waits for background pushes to finish.
func (v *View) Flush() {
	v.pushes.Wait()
}

// Close leaves the broadcast and waits for pending pushes.
func (v *View) Close() {
	v.unsubscribe()
	v.Flush()
}

func (v *View) broadcast(event domain.Event) {
	event.Origin = v.id
	v.bus.Publish(event)
}

// push runs fn in the background with retries. All attempts share one
// idempotency key.
func (v *View) push(ctx context.Context, what string, fn func(ctx context.Context) error) {
	if !v.client.Configured() {
		return
	}
	key := uuid.NewString()
	base := WithIdempotencyKey(context.WithoutCancel(ctx), key)
	policy := v.retry

	v.pushes.Add(1)
	go func() {
		defer v.pushes.Done()
		backoff := policy.Backoff
		for attempt := 1; ; attempt++ {
			attemptCtx, cancel := context.WithTimeout(base, policy.Timeout)
			err := fn(attemptCtx)
			cancel()
			if err == nil {
				v.logger.Debug("Pushed", zap.String("what", what), zap.Int("attempt", attempt))
				return
			}
			if !retryable(err) || attempt >= policy.Attempts {
				v.logger.Warn("Push failed", zap.String("what", what), zap.Int("attempt", attempt), zap.Error(err))
				return
			}
			time.Sleep(backoff)
			backoff *= 2
		}
	}()
}

func retryable(err error) bool {
	if stderrors.Is(err, ErrNoRemote) {
		return false
	}
	var statusErr *StatusError
	if stderrors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}

func (v *View) hasOrderLocked(id string) bool {
	for _, o := range v.orders {
		if o.ID == id {
			return true
		}
	}
	return false
}

// renumberLocked moves the order known as prevID to id. When this view never
// saw prevID, fallback (if any) is added under the new id.
func (v *View) renumberLocked(prevID, id string, fallback *domain.Order) (domain.Order, bool) {
	if prevID == id {
		return domain.Order{}, false
	}
	v.renumbered[prevID] = id
	if v.hasOrderLocked(id) {
		kept := v.orders[:0]
		var moved domain.Order
		for _, o := range v.orders {
			if o.ID == prevID {
				continue
			}
			if o.ID == id {
				moved = o
			}
			kept = append(kept, o)
		}
		v.orders = kept
		v.saveOrdersLocked()
		return moved, false
	}
	for i := range v.orders {
		if v.orders[i].ID == prevID {
			v.orders[i].ID = id
			v.saveOrdersLocked()
			return v.orders[i], true
		}
	}
	if fallback != nil {
		o := *fallback
		o.ID = id
		v.orders = append([]domain.Order{o}, v.orders...)
		v.saveOrdersLocked()
		return o, true
	}
	return domain.Order{}, false
}

func orderIDTaken(err error) bool {
	var statusErr *StatusError
	return stderrors.As(err, &statusErr) &&
		statusErr.Code == http.StatusConflict &&
		statusErr.Reason() == service.OrderIDTakenMessage
}

func (v *View) setStatusLocked(id string, status domain.OrderStatus) bool {
	for i := range v.orders {
		if v.orders[i].ID == id {
			v.orders[i].Status = status
			return true
		}
	}
	return false
}

// appendMessageLocked adds msg unless the thread already holds the same
// message; it reports whether anything changed.
func (v *View) appendMessageLocked(userID string, msg domain.Message, name, phone string) bool {
	t, ok := v.chats[userID]
	if !ok {
		t = domain.NewThread(userID)
		v.chats[userID] = t
	}
	for _, m := range t.Messages {
		if m == msg {
			return false
		}
	}
	t.Append(msg, name, phone)
	return true
}

func (v *View) nextOrderIDLocked(now time.Time) string {
	n := now.UnixMilli() % 100_000_000
	for {
		id := fmt.Sprintf("%08d", n)
		if !v.hasOrderLocked(id) {
			return id
		}
		n = (n + 1) % 100_000_000
	}
}

func (v *View) saveOrdersLocked() {
	if err := v.cache.SetOrders(v.orders); err != nil {
		v.logger.Warn("Failed to cache orders", zap.Error(err))
	}
}

func (v *View) saveChatsLocked() {
	if err := v.cache.SetChats(v.chats); err != nil {
		v.logger.Warn("Failed to cache chats", zap.Error(err))
	}
}
