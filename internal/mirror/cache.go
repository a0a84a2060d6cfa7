package mirror

import (
	"encoding/json"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/domain"
)

// Cache keys, stable across releases so an existing device cache keeps working.
const (
	KeyProducts = "products"
	KeyOrders   = "orders"
	KeyChats    = "chats"
	KeyProfile  = "profile"
)

// Profile is the customer identity remembered on the device.
type Profile struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

// Cache is the typed view of a KV. Unreadable or corrupt values read as absent.
type Cache struct {
	kv     KV
	logger *zap.Logger
}

func NewCache(kv KV, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{kv: kv, logger: logger}
}

// safeGet decodes key into out and reports whether a usable value was found.
func (c *Cache) safeGet(key string, out interface{}) bool {
	raw, ok, err := c.kv.Get(key)
	if err != nil {
		c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("Cache value is corrupt, ignoring", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Cache) set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return c.kv.Set(key, raw)
}

// Products returns the last known catalog; ok is false when none is cached.
func (c *Cache) Products() ([]domain.Product, bool) {
	var products []domain.Product
	if !c.safeGet(KeyProducts, &products) || products == nil {
		return nil, false
	}
	return products, true
}

func (c *Cache) SetProducts(products []domain.Product) error {
	return c.set(KeyProducts, products)
}

// Orders returns cached orders, newest first, never nil.
func (c *Cache) Orders() []domain.Order {
	var orders []domain.Order
	if !c.safeGet(KeyOrders, &orders) || orders == nil {
		return []domain.Order{}
	}
	return orders
}

func (c *Cache) SetOrders(orders []domain.Order) error {
	return c.set(KeyOrders, orders)
}

// Chats returns cached threads keyed by user id, never nil.
func (c *Cache) Chats() map[string]*domain.Thread {
	chats := map[string]*domain.Thread{}
	if !c.safeGet(KeyChats, &chats) || chats == nil {
		return map[string]*domain.Thread{}
	}
	for id, t := range chats {
		if t == nil {
			delete(chats, id)
			continue
		}
		if t.Messages == nil {
			t.Messages = []domain.Message{}
		}
	}
	return chats
}

func (c *Cache) SetChats(chats map[string]*domain.Thread) error {
	return c.set(KeyChats, chats)
}

func (c *Cache) Profile() (Profile, bool) {
	var p Profile
	if !c.safeGet(KeyProfile, &p) || p.UserID == "" {
		return Profile{}, false
	}
	return p, true
}

func (c *Cache) SetProfile(p Profile) error {
	return c.set(KeyProfile, p)
}
