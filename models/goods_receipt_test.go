package models_test

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/models"
	"github.com/shopspring/decimal"
)

func entryWithLines(id int, lines ...models.InventoryEntryDetail) *models.InventoryEntry {
	return &models.InventoryEntry{ID: id, EntryNumber: "GR-1", Details: lines}
}

func entryLine(id int, productId int, qty int64) models.InventoryEntryDetail {
	return models.InventoryEntryDetail{ID: id, ProductId: productId, DetailQty: decimal.NewFromInt(qty)}
}

func TestReceiptMovements_OneMovementPerLine(t *testing.T) {
	receivedDate := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entry := entryWithLines(42,
		entryLine(7, 1, 4),
		entryLine(8, 2, 3),
	)

	movements := models.ReceiptMovements(entry, receivedDate)
	if len(movements) != 2 {
		t.Fatalf("expected one movement per line, got %d", len(movements))
	}
	for i, m := range movements {
		detail := entry.Details[i]
		if m.Kind != models.MovementKindReceipt {
			t.Fatalf("expected RECEIPT movement, got %s", m.Kind)
		}
		if !m.Qty.Equal(detail.DetailQty) {
			t.Fatalf("expected qty %s, got %s", detail.DetailQty, m.Qty)
		}
		if m.ReferenceType != models.MovementReferenceInventoryEntry {
			t.Fatalf("expected GR reference, got %s", m.ReferenceType)
		}
		if m.ReferenceId != entry.ID || m.ReferenceDetailId != detail.ID {
			t.Fatalf("movement does not point back at its line: %+v", m)
		}
		if !m.EffectiveDate.Equal(receivedDate) {
			t.Fatalf("expected effective date %s, got %s", receivedDate, m.EffectiveDate)
		}
	}
}

// An order of 10 received in two shipments of 4 and 6 must end up
// Received with exactly two RECEIPT movements on the product's ledger.
func TestGoodsReceipt_TwoShipmentsCompleteOrderAndLedger(t *testing.T) {
	po := orderWithLines(models.PurchaseOrderStatusApproved, orderLine(1, 10))

	receivedDate := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := entryWithLines(1, entryLine(1, 1, 4))
	second := entryWithLines(2, entryLine(2, 1, 6))

	ledger := models.NewLedger()
	for _, entry := range []*models.InventoryEntry{first, second} {
		for _, m := range models.ReceiptMovements(entry, receivedDate) {
			if _, err := ledger.Append(models.InventoryMovement{
				ProductId:         m.ProductId,
				Kind:              m.Kind,
				Qty:               m.Qty,
				ReferenceType:     m.ReferenceType,
				ReferenceId:       m.ReferenceId,
				ReferenceDetailId: m.ReferenceDetailId,
				EffectiveDate:     m.EffectiveDate,
			}); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
	}

	result, err := models.Reconcile(po, [][]models.ReceiptLine{
		receiptOf(received(1, 4)),
		receiptOf(received(1, 6)),
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Status != models.PurchaseOrderStatusReceived {
		t.Fatalf("expected Received, got %s", result.Status)
	}
	if !result.Lines[0].OutstandingQty.IsZero() {
		t.Fatalf("expected zero outstanding, got %s", result.Lines[0].OutstandingQty)
	}

	movements := ledger.MovementsOf(1)
	if len(movements) != 2 {
		t.Fatalf("expected 2 ledger movements, got %d", len(movements))
	}
	if !movements[0].Qty.Equal(decimal.NewFromInt(4)) || !movements[1].Qty.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected movements of 4 and 6, got %s and %s", movements[0].Qty, movements[1].Qty)
	}
	for _, m := range movements {
		if m.Kind != models.MovementKindReceipt {
			t.Fatalf("expected RECEIPT movement, got %s", m.Kind)
		}
	}
	if !ledger.BalanceOf(1).Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected balance 10, got %s", ledger.BalanceOf(1))
	}
}

// Goods can arrive before the purchasing side approves the order.
func TestPendingOrderAcceptsReceipts(t *testing.T) {
	for _, status := range []models.PurchaseOrderStatus{
		models.PurchaseOrderStatusPending,
		models.PurchaseOrderStatusApproved,
		models.PurchaseOrderStatusPartiallyReceived,
	} {
		if !status.CanReceive() {
			t.Fatalf("expected %s to accept receipts", status)
		}
	}
	for _, status := range []models.PurchaseOrderStatus{
		models.PurchaseOrderStatusReceived,
		models.PurchaseOrderStatusCancelled,
	} {
		if status.CanReceive() {
			t.Fatalf("expected %s to reject receipts", status)
		}
	}

	po := orderWithLines(models.PurchaseOrderStatusPending, orderLine(1, 10))
	result, err := models.Reconcile(po, [][]models.ReceiptLine{
		receiptOf(received(1, 10)),
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Status != models.PurchaseOrderStatusReceived {
		t.Fatalf("expected Pending order to complete on full receipt, got %s", result.Status)
	}
}
