package models_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/models"
	"github.com/shopspring/decimal"
)

func receipt(productId int, qty int64) models.InventoryMovement {
	return models.InventoryMovement{
		ProductId:     productId,
		Kind:          models.MovementKindReceipt,
		Qty:           decimal.NewFromInt(qty),
		ReferenceType: models.MovementReferenceInventoryEntry,
	}
}

func consumption(productId int, qty int64) models.InventoryMovement {
	return models.InventoryMovement{
		ProductId:     productId,
		Kind:          models.MovementKindConsumption,
		Qty:           decimal.NewFromInt(-qty),
		ReferenceType: models.MovementReferenceSalesOrder,
	}
}

func TestLedgerAppend_RunningBalance(t *testing.T) {
	ledger := models.NewLedger()

	balance, err := ledger.Append(receipt(1, 10))
	if err != nil {
		t.Fatalf("append receipt: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected balance 10, got %s", balance)
	}

	balance, err = ledger.Append(consumption(1, 4))
	if err != nil {
		t.Fatalf("append consumption: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected balance 6, got %s", balance)
	}
	if got := ledger.BalanceOf(1); !got.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("BalanceOf: expected 6, got %s", got)
	}
}

func TestLedgerAppend_RejectsWrongSign(t *testing.T) {
	ledger := models.NewLedger()

	cases := []models.InventoryMovement{
		{ProductId: 1, Kind: models.MovementKindReceipt, Qty: decimal.NewFromInt(-1)},
		{ProductId: 1, Kind: models.MovementKindConsumption, Qty: decimal.NewFromInt(1)},
		{ProductId: 1, Kind: models.MovementKindWaste, Qty: decimal.NewFromInt(1)},
		{ProductId: 1, Kind: models.MovementKindAdjustment, Qty: decimal.Zero},
		{ProductId: 1, Kind: "UNKNOWN", Qty: decimal.NewFromInt(1)},
	}
	for _, m := range cases {
		if _, err := ledger.Append(m); err == nil {
			t.Fatalf("expected rejection for kind=%s qty=%s", m.Kind, m.Qty)
		}
	}
	if got := ledger.BalanceOf(1); !got.IsZero() {
		t.Fatalf("rejected movements must not change the balance, got %s", got)
	}
}

func TestLedgerAppend_InsufficientStockLeavesLedgerUntouched(t *testing.T) {
	ledger := models.NewLedger()
	if _, err := ledger.Append(receipt(1, 5)); err != nil {
		t.Fatalf("append receipt: %v", err)
	}

	_, err := ledger.Append(consumption(1, 6))
	if !models.IsDomainError(err, models.ErrKindInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if got := ledger.BalanceOf(1); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("balance changed after rejected append: %s", got)
	}
	if got := len(ledger.MovementsOf(1)); got != 1 {
		t.Fatalf("expected 1 movement, got %d", got)
	}

	// draining to exactly zero is fine
	if _, err := ledger.Append(consumption(1, 5)); err != nil {
		t.Fatalf("draining to zero should succeed: %v", err)
	}
	if got := ledger.BalanceOf(1); !got.IsZero() {
		t.Fatalf("expected zero balance, got %s", got)
	}
}

func TestLedgerBalanceOf_AsOfFiltersByEffectiveDate(t *testing.T) {
	ledger := models.NewLedger()

	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	early := receipt(1, 10)
	early.EffectiveDate = jan
	late := consumption(1, 4)
	late.EffectiveDate = feb

	if _, err := ledger.Append(early); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := ledger.Append(late); err != nil {
		t.Fatalf("append: %v", err)
	}

	if got := ledger.BalanceOf(1, jan.AddDate(0, 0, 1)); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("as-of january: expected 10, got %s", got)
	}
	if got := ledger.BalanceOf(1); !got.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("current: expected 6, got %s", got)
	}
}

func TestLedgerReplay_IsDeterministic(t *testing.T) {
	movements := []models.InventoryMovement{
		{ID: "c", ProductId: 1, Kind: models.MovementKindConsumption, Qty: decimal.NewFromInt(-3), SequenceNo: 3},
		{ID: "a", ProductId: 1, Kind: models.MovementKindReceipt, Qty: decimal.NewFromInt(10), SequenceNo: 1},
		{ID: "b", ProductId: 1, Kind: models.MovementKindReceipt, Qty: decimal.NewFromInt(2), SequenceNo: 2},
		{ID: "d", ProductId: 2, Kind: models.MovementKindReceipt, Qty: decimal.NewFromInt(7), SequenceNo: 1},
	}

	for run := 0; run < 3; run++ {
		ledger := models.NewLedger()
		if err := ledger.Replay(movements); err != nil {
			t.Fatalf("replay run %d: %v", run, err)
		}
		if got := ledger.BalanceOf(1); !got.Equal(decimal.NewFromInt(9)) {
			t.Fatalf("run %d: product 1 expected 9, got %s", run, got)
		}
		if got := ledger.BalanceOf(2); !got.Equal(decimal.NewFromInt(7)) {
			t.Fatalf("run %d: product 2 expected 7, got %s", run, got)
		}
	}
}

func TestLedgerReplay_SequenceOrderBeatsSliceOrder(t *testing.T) {
	// The consumption appears first in the slice but sequences after the
	// receipt; replay must not reject it as insufficient stock.
	movements := []models.InventoryMovement{
		{ID: "b", ProductId: 1, Kind: models.MovementKindConsumption, Qty: decimal.NewFromInt(-5), SequenceNo: 2},
		{ID: "a", ProductId: 1, Kind: models.MovementKindReceipt, Qty: decimal.NewFromInt(5), SequenceNo: 1},
	}
	ledger := models.NewLedger()
	if err := ledger.Replay(movements); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got := ledger.BalanceOf(1); !got.IsZero() {
		t.Fatalf("expected zero balance, got %s", got)
	}
}

func TestLedger_ConcurrentAppends(t *testing.T) {
	ledger := models.NewLedger()
	const products = 8
	const perProduct = 50

	var wg sync.WaitGroup
	for p := 1; p <= products; p++ {
		wg.Add(1)
		go func(productId int) {
			defer wg.Done()
			for i := 0; i < perProduct; i++ {
				m := receipt(productId, 2)
				m.ID = fmt.Sprintf("%d-%d", productId, i)
				if _, err := ledger.Append(m); err != nil {
					t.Errorf("product %d append %d: %v", productId, i, err)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	want := decimal.NewFromInt(2 * perProduct)
	for p := 1; p <= products; p++ {
		if got := ledger.BalanceOf(p); !got.Equal(want) {
			t.Fatalf("product %d: expected %s, got %s", p, want, got)
		}
		if got := len(ledger.MovementsOf(p)); got != perProduct {
			t.Fatalf("product %d: expected %d movements, got %d", p, perProduct, got)
		}
	}
}
