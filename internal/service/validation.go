package service

import (
	"fmt"
	"strings"

	"github.com/lii16com/arkilino/internal/domain"
	"github.com/lii16com/arkilino/pkg/errors"
)

// ValidateProducts checks a full catalog replacement.
func ValidateProducts(products []domain.Product) error {
	verr := &errors.ErrValidation{Message: "invalid product"}
	seen := make(map[string]int, len(products))
	for i, p := range products {
		prefix := fmt.Sprintf("products[%d]", i)
		id := strings.TrimSpace(p.ID)
		switch {
		case id == "":
			verr.Field(prefix+".id", "required")
		default:
			if first, dup := seen[id]; dup {
				verr.Field(prefix+".id", fmt.Sprintf("duplicate of products[%d]", first))
			} else {
				seen[id] = i
			}
		}
		if strings.TrimSpace(p.Title) == "" {
			verr.Field(prefix+".title", "required")
		}
		if p.Price < 0 {
			verr.Field(prefix+".price", "must be non-negative")
		}
		validateExtras(verr, prefix, p.Extras)
	}
	if verr.HasFields() {
		return verr
	}
	return nil
}

// ValidateOrder checks an order before it is queued. Defaults (id, ts, status)
// must already be applied or left empty.
func ValidateOrder(order domain.Order) error {
	verr := &errors.ErrValidation{Message: "invalid order"}
	if len(order.Items) == 0 {
		verr.Field("items", "at least one item is required")
	}
	for i, it := range order.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.Title) == "" {
			verr.Field(prefix+".title", "required")
		}
		if it.Quantity < 1 {
			verr.Field(prefix+".qty", "must be at least 1")
		}
		if it.Price < 0 {
			verr.Field(prefix+".price", "must be non-negative")
		}
		validateExtras(verr, prefix, it.Extras)
	}
	if strings.TrimSpace(order.Customer.Name) == "" {
		verr.Field("customer.name", "required")
	}
	if strings.TrimSpace(order.Customer.Phone) == "" {
		verr.Field("customer.phone", "required")
	}
	if strings.TrimSpace(order.Customer.Address) == "" {
		verr.Field("customer.addr", "required")
	}
	if order.Status != "" && !order.Status.IsValid() {
		verr.Field("status", "unknown status")
	}
	if !verr.HasFields() {
		if computed := order.ComputeTotal(); computed != order.Total {
			verr.Field("total", fmt.Sprintf("expected %d, got %d", computed, order.Total))
		}
	}
	if verr.HasFields() {
		return verr
	}
	return nil
}

// ValidateChat checks a chat append.
func ValidateChat(req ChatRequest) error {
	verr := &errors.ErrValidation{Message: "invalid payload"}
	if strings.TrimSpace(req.UserID) == "" {
		verr.Field("userId", "required")
	}
	if req.Msg == nil {
		verr.Field("msg", "required")
	} else if strings.TrimSpace(req.Msg.Text) == "" {
		verr.Field("msg.text", "required")
	}
	if verr.HasFields() {
		return verr
	}
	return nil
}

// ValidateStatus checks a status change label.
func ValidateStatus(status domain.OrderStatus) error {
	if !status.IsValid() {
		return (&errors.ErrValidation{Message: "invalid status"}).Field("status", "unknown status")
	}
	return nil
}

func validateExtras(verr *errors.ErrValidation, prefix string, extras []domain.Extra) {
	for j, e := range extras {
		if strings.TrimSpace(e.Name) == "" {
			verr.Field(fmt.Sprintf("%s.extras[%d].name", prefix, j), "required")
		}
		if e.Price < 0 {
			verr.Field(fmt.Sprintf("%s.extras[%d].price", prefix, j), "must be non-negative")
		}
	}
}
