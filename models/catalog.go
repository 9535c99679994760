package models

import (
	"context"
	"errors"
	"sort"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"github.com/shopspring/decimal"
)

// CatalogProduct is the read-only projection of a product used by the
// availability calculator: current stock for base products, the recipe
// for composed ones.
type CatalogProduct struct {
	ID     int
	Name   string
	Type   ProductType
	Stock  decimal.Decimal
	Recipe []RecipeLine
}

type RecipeLine struct {
	IngredientId int
	Qty          decimal.Decimal
	WastePercent decimal.Decimal
}

// CatalogSnapshot is an immutable point-in-time view of the catalog.
// Callers own the snapshot; nothing here mutates it after construction.
type CatalogSnapshot struct {
	products map[int]*CatalogProduct
}

func NewCatalogSnapshot(products []*CatalogProduct) *CatalogSnapshot {
	m := make(map[int]*CatalogProduct, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &CatalogSnapshot{products: m}
}

func (s *CatalogSnapshot) Product(id int) (*CatalogProduct, bool) {
	p, ok := s.products[id]
	return p, ok
}

func (s *CatalogSnapshot) Products() []*CatalogProduct {
	result := make([]*CatalogProduct, 0, len(s.products))
	for _, p := range s.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *CatalogSnapshot) Len() int {
	return len(s.products)
}

// LoadCatalogSnapshot builds a snapshot of the whole business catalog in
// two queries. The returned snapshot does not track later writes.
func LoadCatalogSnapshot(ctx context.Context) (*CatalogSnapshot, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()

	var products []*Product
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Find(&products).Error; err != nil {
		return nil, err
	}

	var ingredients []*ProductIngredient
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("product_id, sort_order").
		Find(&ingredients).Error; err != nil {
		return nil, err
	}

	recipes := make(map[int][]RecipeLine, len(products))
	for _, ing := range ingredients {
		recipes[ing.ProductId] = append(recipes[ing.ProductId], RecipeLine{
			IngredientId: ing.IngredientId,
			Qty:          ing.Qty,
			WastePercent: ing.WastePercent,
		})
	}

	catalog := make([]*CatalogProduct, 0, len(products))
	for _, p := range products {
		catalog = append(catalog, &CatalogProduct{
			ID:     p.ID,
			Name:   p.Name,
			Type:   p.Type,
			Stock:  p.Stock,
			Recipe: recipes[p.ID],
		})
	}
	return NewCatalogSnapshot(catalog), nil
}
