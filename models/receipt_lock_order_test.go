package models

import (
	"sort"
	"testing"

	"github.com/shopspring/decimal"
)

// Creating and deleting an entry for the same products must take the
// product locks in the same order, or a concurrent pair can hold one
// lock each and wait on the other.
func TestProductLockOrderMatchesAcrossEntryPaths(t *testing.T) {
	newDetails := []NewInventoryEntryDetail{
		{ProductId: 9, DetailQty: decimal.NewFromInt(1)},
		{ProductId: 1, DetailQty: decimal.NewFromInt(2)},
		{ProductId: 4, DetailQty: decimal.NewFromInt(3)},
	}
	storedDetails := []InventoryEntryDetail{
		{ID: 1, ProductId: 9},
		{ID: 2, ProductId: 1},
		{ID: 3, ProductId: 4},
	}

	createOrder := make([]int, 0, len(newDetails))
	for _, detail := range sortedEntryDetails(newDetails) {
		createOrder = append(createOrder, detail.ProductId)
	}
	deleteOrder := sortedDetailProductIds(storedDetails)

	if !sort.IntsAreSorted(createOrder) {
		t.Fatalf("create path locks out of order: %v", createOrder)
	}
	if !sort.IntsAreSorted(deleteOrder) {
		t.Fatalf("delete path locks out of order: %v", deleteOrder)
	}
	if len(createOrder) != len(deleteOrder) {
		t.Fatalf("lock counts differ: %v vs %v", createOrder, deleteOrder)
	}
	for i := range createOrder {
		if createOrder[i] != deleteOrder[i] {
			t.Fatalf("lock order diverges at %d: %v vs %v", i, createOrder, deleteOrder)
		}
	}
}
