package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is a mutation notice. The same shape travels over the same-device
// broadcast and, server side, to the configured publishers.
type Event struct {
	ID       string      `json:"id"`
	Type     EventType   `json:"type"`
	Origin   string      `json:"origin,omitempty"`
	At       time.Time   `json:"at"`
	Products []Product   `json:"products,omitempty"`
	Order    *Order      `json:"order,omitempty"`
	OrderID  string      `json:"orderId,omitempty"`
	PrevID   string      `json:"prevId,omitempty"`
	Status   OrderStatus `json:"status,omitempty"`
	UserID   string      `json:"userId,omitempty"`
	Message  *Message    `json:"msg,omitempty"`
	Name     string      `json:"name,omitempty"`
	Phone    string      `json:"phone,omitempty"`
}

func newEvent(t EventType) Event {
	return Event{ID: uuid.NewString(), Type: t, At: time.Now().UTC()}
}

// NewProductsReplaced announces a wholesale catalog replacement.
func NewProductsReplaced(products []Product) Event {
	e := newEvent(EventProductsReplaced)
	e.Products = products
	return e
}

// NewOrderCreated announces a checkout.
func NewOrderCreated(order Order) Event {
	e := newEvent(EventOrderCreated)
	e.Order = &order
	e.OrderID = order.ID
	return e
}

// NewOrderStatusChanged announces an admin status change.
func NewOrderStatusChanged(orderID string, status OrderStatus) Event {
	e := newEvent(EventOrderStatusChanged)
	e.OrderID = orderID
	e.Status = status
	return e
}

// NewOrderRenumbered announces that the server gave a checkout a new id
// because prevID was already taken.
func NewOrderRenumbered(prevID string, order Order) Event {
	e := newEvent(EventOrderRenumbered)
	e.Order = &order
	e.OrderID = order.ID
	e.PrevID = prevID
	return e
}

// NewChatMessage announces a message appended to userID's thread.
func NewChatMessage(userID string, msg Message, name, phone string) Event {
	e := newEvent(EventChatMessage)
	e.UserID = userID
	e.Message = &msg
	e.Name = name
	e.Phone = phone
	return e
}

// Key groups related events, e.g. for broker partitioning.
func (e Event) Key() string {
	switch e.Type {
	case EventOrderCreated, EventOrderStatusChanged, EventOrderRenumbered:
		return "order:" + e.OrderID
	case EventChatMessage:
		return "chat:" + e.UserID
	default:
		return "products"
	}
}
