package domain

// OrderStatus is the human-readable progress label shown to the customer.
// The values are stored verbatim in the document and rendered as-is by clients.
type OrderStatus string

const (
	// RECEIVED - default for every new order
	OrderStatusReceived OrderStatus = "تم استلام طلبك"
	// PREPARED - order packed and ready
	OrderStatusPrepared OrderStatus = "تم تجهيز طلبك"
	// OUT_FOR_DELIVERY - courier picked up the order
	OrderStatusOutForDelivery OrderStatus = "طلبك قيد التوصيل"
	// DELIVERED - handed to the customer
	OrderStatusDelivered OrderStatus = "تم التسليم"
)

// OrderStatuses lists the labels in progress order.
var OrderStatuses = []OrderStatus{
	OrderStatusReceived,
	OrderStatusPrepared,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
}

// IsValid checks if the order status is one of the known labels
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusReceived,
		OrderStatusPrepared,
		OrderStatusOutForDelivery,
		OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// EventType names a same-device broadcast / published event kind.
type EventType string

const (
	EventProductsReplaced   EventType = "products:update"
	EventOrderCreated       EventType = "orders:new"
	EventOrderStatusChanged EventType = "orders:status"
	EventChatMessage        EventType = "chat:msg"
	EventOrderRenumbered    EventType = "orders:renumber"
)

// IsValid checks if the event type is known
func (t EventType) IsValid() bool {
	switch t {
	case EventProductsReplaced, EventOrderCreated, EventOrderStatusChanged, EventChatMessage, EventOrderRenumbered:
		return true
	default:
		return false
	}
}
