package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/resto_backend/models"
	"github.com/shopspring/decimal"
)

func baseProduct(id int, name string, stock int64) *models.CatalogProduct {
	return &models.CatalogProduct{
		ID:    id,
		Name:  name,
		Type:  models.ProductTypeBase,
		Stock: decimal.NewFromInt(stock),
	}
}

func composedProduct(id int, name string, recipe ...models.RecipeLine) *models.CatalogProduct {
	return &models.CatalogProduct{
		ID:     id,
		Name:   name,
		Type:   models.ProductTypeComposed,
		Recipe: recipe,
	}
}

func line(ingredientId int, qty string) models.RecipeLine {
	return models.RecipeLine{IngredientId: ingredientId, Qty: decimal.RequireFromString(qty)}
}

func mustAvailable(t *testing.T, product *models.CatalogProduct, snapshot *models.CatalogSnapshot, opts models.AvailabilityOptions) int64 {
	t.Helper()
	available, err := models.AvailableStock(product, snapshot, opts)
	if err != nil {
		t.Fatalf("AvailableStock(%s): %v", product.Name, err)
	}
	return available
}

func TestAvailableStock_BaseProductFloorsStock(t *testing.T) {
	flour := baseProduct(1, "Flour", 0)
	flour.Stock = decimal.RequireFromString("10.7")
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{flour})

	if got := mustAvailable(t, flour, snapshot, models.AvailabilityOptions{}); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
}

func TestAvailableStock_NegativeBaseStockReportsZero(t *testing.T) {
	flour := baseProduct(1, "Flour", -3)
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{flour})

	if got := mustAvailable(t, flour, snapshot, models.AvailabilityOptions{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestAvailableStock_ComposedMinOverRecipe(t *testing.T) {
	flour := baseProduct(1, "Flour", 10)
	yeast := baseProduct(2, "Yeast", 30)
	bread := composedProduct(3, "Bread", line(1, "2"), line(2, "1"))
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{flour, yeast, bread})

	// flour limits: floor(10/2)=5, yeast allows floor(30/1)=30
	if got := mustAvailable(t, bread, snapshot, models.AvailabilityOptions{}); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestAvailableStock_NestedComposition(t *testing.T) {
	flour := baseProduct(1, "Flour", 10)
	bread := composedProduct(2, "Bread", line(1, "2"))
	combo := composedProduct(3, "Breakfast Combo", line(2, "2"))
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{flour, bread, combo})

	// bread availability is 5, combo needs 2 bread each
	if got := mustAvailable(t, combo, snapshot, models.AvailabilityOptions{}); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestAvailableStock_EmptyRecipeIsZero(t *testing.T) {
	empty := composedProduct(1, "Mystery Box")
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{empty})

	if got := mustAvailable(t, empty, snapshot, models.AvailabilityOptions{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestAvailableStock_DanglingIngredientIsZero(t *testing.T) {
	bread := composedProduct(1, "Bread", line(99, "2"))
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{bread})

	if got := mustAvailable(t, bread, snapshot, models.AvailabilityOptions{}); got != 0 {
		t.Fatalf("expected 0 for dangling ingredient, got %d", got)
	}
}

func TestAvailableStock_NonPositiveQtyIsInvalidRecipe(t *testing.T) {
	flour := baseProduct(1, "Flour", 10)
	bread := composedProduct(2, "Bread", line(1, "0"))
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{flour, bread})

	_, err := models.AvailableStock(bread, snapshot, models.AvailabilityOptions{})
	if !models.IsDomainError(err, models.ErrKindInvalidRecipe) {
		t.Fatalf("expected invalid recipe error, got %v", err)
	}
}

func TestAvailableStock_CycleIsDetected(t *testing.T) {
	a := composedProduct(1, "A", line(2, "1"))
	b := composedProduct(2, "B", line(1, "1"))
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{a, b})

	_, err := models.AvailableStock(a, snapshot, models.AvailabilityOptions{})
	if !models.IsDomainError(err, models.ErrKindCyclicRecipe) {
		t.Fatalf("expected cyclic recipe error, got %v", err)
	}
}

func TestAvailableStock_SelfReferenceIsCycle(t *testing.T) {
	a := composedProduct(1, "A", line(1, "1"))
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{a})

	_, err := models.AvailableStock(a, snapshot, models.AvailabilityOptions{})
	if !models.IsDomainError(err, models.ErrKindCyclicRecipe) {
		t.Fatalf("expected cyclic recipe error, got %v", err)
	}
}

func TestAvailableStock_WasteAwareInflatesRequirement(t *testing.T) {
	flour := baseProduct(1, "Flour", 10)
	bread := composedProduct(2, "Bread", models.RecipeLine{
		IngredientId: 1,
		Qty:          decimal.NewFromInt(2),
		WastePercent: decimal.NewFromInt(25),
	})
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{flour, bread})

	// Without waste: floor(10/2) = 5.
	if got := mustAvailable(t, bread, snapshot, models.AvailabilityOptions{}); got != 5 {
		t.Fatalf("waste off: expected 5, got %d", got)
	}
	// With 25%% waste the effective requirement is 2.5: floor(10/2.5) = 4.
	if got := mustAvailable(t, bread, snapshot, models.AvailabilityOptions{WasteAware: true}); got != 4 {
		t.Fatalf("waste on: expected 4, got %d", got)
	}
}

func TestAvailableStocks_CoversWholeSnapshot(t *testing.T) {
	flour := baseProduct(1, "Flour", 10)
	bread := composedProduct(2, "Bread", line(1, "2"))
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{flour, bread})

	all, err := models.AvailableStocks(snapshot, models.AvailabilityOptions{})
	if err != nil {
		t.Fatalf("AvailableStocks: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	if all[1] != 10 || all[2] != 5 {
		t.Fatalf("unexpected availability map: %v", all)
	}
}

func TestBaseRequirements_ExplodesNestedRecipe(t *testing.T) {
	flour := baseProduct(1, "Flour", 100)
	butter := baseProduct(2, "Butter", 100)
	bread := composedProduct(3, "Bread", line(1, "2"))
	combo := composedProduct(4, "Combo", line(3, "2"), line(2, "1"))
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{flour, butter, bread, combo})

	req, err := models.BaseRequirements(combo, snapshot, models.AvailabilityOptions{})
	if err != nil {
		t.Fatalf("BaseRequirements: %v", err)
	}
	if len(req) != 2 {
		t.Fatalf("expected 2 base products, got %d", len(req))
	}
	// 2 bread x 2 flour each = 4 flour, plus 1 butter.
	if !req[1].Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected 4 flour, got %s", req[1])
	}
	if !req[2].Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected 1 butter, got %s", req[2])
	}
}

func TestBaseRequirements_BaseProductMapsToItself(t *testing.T) {
	flour := baseProduct(1, "Flour", 100)
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{flour})

	req, err := models.BaseRequirements(flour, snapshot, models.AvailabilityOptions{})
	if err != nil {
		t.Fatalf("BaseRequirements: %v", err)
	}
	if len(req) != 1 || !req[1].Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected requirements: %v", req)
	}
}

func TestBaseRequirements_DanglingIngredientIsHardError(t *testing.T) {
	bread := composedProduct(1, "Bread", line(99, "2"))
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{bread})

	_, err := models.BaseRequirements(bread, snapshot, models.AvailabilityOptions{})
	if !models.IsDomainError(err, models.ErrKindDanglingReference) {
		t.Fatalf("expected dangling reference error, got %v", err)
	}
}

func TestBaseRequirements_WasteAwareMultipliesThroughLevels(t *testing.T) {
	flour := baseProduct(1, "Flour", 100)
	bread := composedProduct(2, "Bread", models.RecipeLine{
		IngredientId: 1,
		Qty:          decimal.NewFromInt(2),
		WastePercent: decimal.NewFromInt(50),
	})
	snapshot := models.NewCatalogSnapshot([]*models.CatalogProduct{flour, bread})

	req, err := models.BaseRequirements(bread, snapshot, models.AvailabilityOptions{WasteAware: true})
	if err != nil {
		t.Fatalf("BaseRequirements: %v", err)
	}
	if !req[1].Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3 flour with 50%% waste, got %s", req[1])
	}
}
