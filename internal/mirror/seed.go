package mirror

import "github.com/lii16com/arkilino/internal/domain"

// SeedProducts is the catalog a device starts with when it has neither a
// reachable server nor a cached catalog.
func SeedProducts() []domain.Product {
	return []domain.Product{
		{ID: "h1", Title: "أركيلة كلاسيك", Price: 10000, Image: "images/h1.jpg", Category: "كلاسيك",
			Extras: []domain.Extra{{Name: "فحم زيادة", Price: 2000}}},
		{ID: "h2", Title: "أركيلة ستيل PRO", Price: 15000, Image: "images/h2.jpg", Category: "ستيل",
			Extras: []domain.Extra{{Name: "خرطوم إضافي", Price: 3000}}},
		{ID: "h3", Title: "طقم فحم + ملقط", Price: 3000, Image: "images/h3.jpg", Category: "مستلزمات",
			Extras: []domain.Extra{}},
		{ID: "h4", Title: "نكات ومعسّل مختار", Price: 4000, Image: "images/h4.jpg", Category: "نكهات",
			Extras: []domain.Extra{{Name: "نكة إضافية", Price: 1500}}},
	}
}
