package models

import (
	"github.com/shopspring/decimal"
)

// AvailabilityOptions controls the strictness of the calculation.
// WasteAware inflates each required ingredient quantity by its waste
// percentage before the floor division.
type AvailabilityOptions struct {
	WasteAware bool
}

var oneHundred = decimal.NewFromInt(100)

// AvailableStock computes how many sellable units of a product the
// snapshot's stock supports. Base products report their own stock;
// composed ones the minimum over their recipe. Pure function of its
// inputs; the snapshot is never mutated.
func AvailableStock(product *CatalogProduct, snapshot *CatalogSnapshot, opts AvailabilityOptions) (int64, error) {
	return availableStock(product, snapshot, opts, map[int]bool{})
}

func availableStock(product *CatalogProduct, snapshot *CatalogSnapshot, opts AvailabilityOptions, path map[int]bool) (int64, error) {
	if product == nil {
		return 0, nil
	}
	if path[product.ID] {
		return 0, NewProductError(ErrKindCyclicRecipe, product.ID, "recipe cycle detected")
	}

	if product.Type == ProductTypeBase {
		stock := product.Stock.Floor().IntPart()
		if stock < 0 {
			return 0, nil
		}
		return stock, nil
	}

	// a composed product with no recipe can never be sellable
	if len(product.Recipe) == 0 {
		return 0, nil
	}

	path[product.ID] = true
	defer delete(path, product.ID)

	var min int64 = -1
	for _, line := range product.Recipe {
		if !line.Qty.IsPositive() {
			return 0, NewProductError(ErrKindInvalidRecipe, product.ID, "ingredient qty must be positive")
		}

		ingredient, ok := snapshot.Product(line.IngredientId)
		if !ok {
			// a dangling reference must not crash the calculation
			return 0, nil
		}

		ingredientAvailable, err := availableStock(ingredient, snapshot, opts, path)
		if err != nil {
			return 0, err
		}

		required := line.Qty
		if opts.WasteAware && line.WastePercent.IsPositive() {
			required = required.Mul(decimal.NewFromInt(1).Add(line.WastePercent.Div(oneHundred)))
		}

		achievable := decimal.NewFromInt(ingredientAvailable).
			Div(required).Floor().IntPart()
		if min < 0 || achievable < min {
			min = achievable
		}
		if min == 0 {
			break
		}
	}

	if min < 0 {
		min = 0
	}
	return min, nil
}

// AvailableStocks computes availability for every product in the
// snapshot, for list endpoints and the low-stock report.
func AvailableStocks(snapshot *CatalogSnapshot, opts AvailabilityOptions) (map[int]int64, error) {
	results := make(map[int]int64, snapshot.Len())
	for _, p := range snapshot.Products() {
		available, err := AvailableStock(p, snapshot, opts)
		if err != nil {
			return nil, err
		}
		results[p.ID] = available
	}
	return results, nil
}

// BaseRequirements explodes one unit of the product into the base
// product quantities it consumes: a base product maps to itself,
// a composed product to the recursive sum of its recipe. Unknown
// ingredients are a hard error here, unlike the availability walk,
// because a consumption with nowhere to draw from cannot be recorded.
func BaseRequirements(product *CatalogProduct, snapshot *CatalogSnapshot, opts AvailabilityOptions) (map[int]decimal.Decimal, error) {
	requirements := make(map[int]decimal.Decimal)
	if err := baseRequirements(product, snapshot, opts, decimal.NewFromInt(1), requirements, map[int]bool{}); err != nil {
		return nil, err
	}
	return requirements, nil
}

func baseRequirements(product *CatalogProduct, snapshot *CatalogSnapshot, opts AvailabilityOptions, factor decimal.Decimal, acc map[int]decimal.Decimal, path map[int]bool) error {
	if product == nil {
		return NewDomainError(ErrKindDanglingReference, "product is required")
	}
	if path[product.ID] {
		return NewProductError(ErrKindCyclicRecipe, product.ID, "recipe cycle detected")
	}

	if product.Type == ProductTypeBase {
		acc[product.ID] = acc[product.ID].Add(factor)
		return nil
	}

	path[product.ID] = true
	defer delete(path, product.ID)

	for _, line := range product.Recipe {
		if !line.Qty.IsPositive() {
			return NewProductError(ErrKindInvalidRecipe, product.ID, "ingredient qty must be positive")
		}
		ingredient, ok := snapshot.Product(line.IngredientId)
		if !ok {
			return NewProductError(ErrKindDanglingReference, line.IngredientId, "ingredient not found")
		}
		required := line.Qty
		if opts.WasteAware && line.WastePercent.IsPositive() {
			required = required.Mul(decimal.NewFromInt(1).Add(line.WastePercent.Div(oneHundred)))
		}
		if err := baseRequirements(ingredient, snapshot, opts, factor.Mul(required), acc, path); err != nil {
			return err
		}
	}
	return nil
}
