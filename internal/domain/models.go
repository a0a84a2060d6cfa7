package domain

import (
	"sort"
	"time"
)

// Extra is an optional add-on priced on top of a product.
type Extra struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Product is a catalog entry. Prices are in the minor currency unit.
type Product struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    int64   `json:"price"`
	Category string  `json:"cat"`
	Image    string  `json:"img"`
	Extras   []Extra `json:"extras"`
}

// LineItem is one cart line frozen into an order.
type LineItem struct {
	Title    string  `json:"title"`
	Quantity int     `json:"qty"`
	Price    int64   `json:"price"`
	Extras   []Extra `json:"extras"`
}

// Total returns (price + extras) * quantity.
func (i LineItem) Total() int64 {
	unit := i.Price
	for _, e := range i.Extras {
		unit += e.Price
	}
	return unit * int64(i.Quantity)
}

// Customer is the contact captured at checkout.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"addr"`
}

// Order is created once by checkout and appended to the document.
// Status is the only field mutated afterwards.
type Order struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"ts"`
	Items     []LineItem  `json:"items"`
	Total     int64       `json:"total"`
	Customer  Customer    `json:"customer"`
	Status    OrderStatus `json:"status"`
}

// ComputeTotal sums all line totals.
func (o *Order) ComputeTotal() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.Total()
	}
	return sum
}

// Message is one chat line. Admin is true when the admin sent it.
type Message struct {
	Admin bool   `json:"me"`
	Text  string `json:"text"`
	TS    int64  `json:"ts"`
}

// Thread is a chat conversation keyed by a client-generated user id.
type Thread struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Messages []Message `json:"msgs"`
}

// NewThread returns an empty thread shape for userID.
func NewThread(userID string) *Thread {
	return &Thread{UserID: userID, Messages: []Message{}}
}

// Append adds msg and back-fills name/phone only while they are still empty.
func (t *Thread) Append(msg Message, name, phone string) {
	if name != "" && t.Name == "" {
		t.Name = name
	}
	if phone != "" && t.Phone == "" {
		t.Phone = phone
	}
	t.Messages = append(t.Messages, msg)
}

// Last returns the most recent message or nil.
func (t *Thread) Last() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	m := t.Messages[len(t.Messages)-1]
	return &m
}

// ThreadSummary is the admin overview row for a thread.
type ThreadSummary struct {
	UserID string   `json:"userId"`
	Name   string   `json:"name"`
	Phone  string   `json:"phone"`
	Last   *Message `json:"last"`
	Count  int      `json:"count"`
}

// Summary builds the overview row for t.
func (t *Thread) Summary() ThreadSummary {
	return ThreadSummary{
		UserID: t.UserID,
		Name:   t.Name,
		Phone:  t.Phone,
		Last:   t.Last(),
		Count:  len(t.Messages),
	}
}

// Document is the single persisted state object.
type Document struct {
	Products []Product          `json:"products"`
	Orders   []Order            `json:"orders"`
	Chats    map[string]*Thread `json:"chats"`
}

// EmptyDocument is the state used when nothing has been persisted yet or the
// persisted copy cannot be read.
func EmptyDocument() *Document {
	return &Document{
		Products: []Product{},
		Orders:   []Order{},
		Chats:    map[string]*Thread{},
	}
}

// Normalize replaces nil collections with empty ones so the document always
// serializes as {products: [], orders: [], chats: {}}.
func (d *Document) Normalize() *Document {
	if d.Products == nil {
		d.Products = []Product{}
	}
	if d.Orders == nil {
		d.Orders = []Order{}
	}
	if d.Chats == nil {
		d.Chats = map[string]*Thread{}
	}
	for id, t := range d.Chats {
		if t == nil {
			delete(d.Chats, id)
			continue
		}
		if t.UserID == "" {
			t.UserID = id
		}
		if t.Messages == nil {
			t.Messages = []Message{}
		}
	}
	return d
}

// HasOrder reports whether an order with id exists.
func (d *Document) HasOrder(id string) bool {
	return d.FindOrder(id) != nil
}

// FindOrder returns a pointer into d.Orders or nil.
func (d *Document) FindOrder(id string) *Order {
	for i := range d.Orders {
		if d.Orders[i].ID == id {
			return &d.Orders[i]
		}
	}
	return nil
}

// OrdersNewestFirst returns a copy of the orders sorted by creation time, descending.
func (d *Document) OrdersNewestFirst() []Order {
	out := make([]Order, len(d.Orders))
	copy(out, d.Orders)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ThreadSummaries returns one summary per thread ordered by user id.
func (d *Document) ThreadSummaries() []ThreadSummary {
	out := make([]ThreadSummary, 0, len(d.Chats))
	for _, t := range d.Chats {
		out = append(out, t.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
