package service

import (
	"time"

	"github.com/lii16com/arkilino/internal/domain"
)

// OrderRequest is the checkout payload. id, ts and status are optional and
// filled in by the server when absent.
type OrderRequest struct {
	ID       string             `json:"id"`
	TS       *time.Time         `json:"ts"`
	Items    []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	Total    *int64             `json:"total" binding:"required"`
	Customer CustomerRequest    `json:"customer"`
	Status   domain.OrderStatus `json:"status"`
}

type OrderItemRequest struct {
	Title    string         `json:"title" binding:"required"`
	Quantity int            `json:"qty" binding:"required,min=1"`
	Price    *int64         `json:"price" binding:"required,min=0"`
	Extras   []domain.Extra `json:"extras"`
}

type CustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Address string `json:"addr" binding:"required"`
}

// ToOrder converts the payload without applying defaults.
func (r OrderRequest) ToOrder() domain.Order {
	order := domain.Order{
		ID:       r.ID,
		Items:    make([]domain.LineItem, 0, len(r.Items)),
		Customer: domain.Customer(r.Customer),
		Status:   r.Status,
	}
	if r.TS != nil {
		order.CreatedAt = r.TS.UTC()
	}
	if r.Total != nil {
		order.Total = *r.Total
	}
	for _, it := range r.Items {
		item := domain.LineItem{
			Title:    it.Title,
			Quantity: it.Quantity,
			Extras:   it.Extras,
		}
		if it.Price != nil {
			item.Price = *it.Price
		}
		order.Items = append(order.Items, item)
	}
	return order
}

// ChatRequest appends one message to a thread.
type ChatRequest struct {
	UserID string              `json:"userId" binding:"required"`
	Msg    *ChatMessageRequest `json:"msg" binding:"required"`
	Name   string              `json:"name"`
	Phone  string              `json:"phone"`
}

type ChatMessageRequest struct {
	Me   bool   `json:"me"`
	Text string `json:"text" binding:"required"`
	TS   int64  `json:"ts"`
}

// StatusRequest changes the progress label of an order.
type StatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

// ProductsResponse acknowledges a catalog replacement.
type ProductsResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}
