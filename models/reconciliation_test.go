package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/resto_backend/models"
	"github.com/shopspring/decimal"
)

func orderWithLines(status models.PurchaseOrderStatus, lines ...models.PurchaseOrderDetail) *models.PurchaseOrder {
	return &models.PurchaseOrder{CurrentStatus: status, Details: lines}
}

func orderLine(productId int, qty int64) models.PurchaseOrderDetail {
	return models.PurchaseOrderDetail{ProductId: productId, DetailQty: decimal.NewFromInt(qty)}
}

func receiptOf(lines ...models.ReceiptLine) []models.ReceiptLine {
	return lines
}

func received(productId int, qty int64) models.ReceiptLine {
	return models.ReceiptLine{ProductId: productId, Qty: decimal.NewFromInt(qty)}
}

func TestReconcile_FullReceiptAcrossMultipleReceipts(t *testing.T) {
	po := orderWithLines(models.PurchaseOrderStatusApproved, orderLine(1, 10))

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
	if len(result.Findings) != 0 {
		t.Fatalf("expected no findings, got %v", result.Findings)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(result.Lines))
	}
	if !result.Lines[0].OutstandingQty.IsZero() {
		t.Fatalf("expected zero outstanding, got %s", result.Lines[0].OutstandingQty)
	}
}

func TestReconcile_PartialReceipt(t *testing.T) {
	po := orderWithLines(models.PurchaseOrderStatusApproved, orderLine(1, 100))

	result, err := models.Reconcile(po, [][]models.ReceiptLine{
		receiptOf(received(1, 40)),
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Status != models.PurchaseOrderStatusPartiallyReceived {
		t.Fatalf("expected Partially Received, got %s", result.Status)
	}
	if !result.Lines[0].OutstandingQty.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected outstanding 60, got %s", result.Lines[0].OutstandingQty)
	}
}

func TestReconcile_MixedLinesStayPartial(t *testing.T) {
	po := orderWithLines(models.PurchaseOrderStatusApproved,
		orderLine(1, 10),
		orderLine(2, 5),
	)

	result, err := models.Reconcile(po, [][]models.ReceiptLine{
		receiptOf(received(1, 10)),
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	// One line full, the other untouched: still partial.
	if result.Status != models.PurchaseOrderStatusPartiallyReceived {
		t.Fatalf("expected Partially Received, got %s", result.Status)
	}
}

func TestReconcile_NothingReceivedKeepsStatus(t *testing.T) {
	po := orderWithLines(models.PurchaseOrderStatusApproved, orderLine(1, 10))

	result, err := models.Reconcile(po, nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Status != models.PurchaseOrderStatusApproved {
		t.Fatalf("expected status unchanged, got %s", result.Status)
	}
	if !result.Lines[0].OutstandingQty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected outstanding 10, got %s", result.Lines[0].OutstandingQty)
	}
}

func TestReconcile_OverReceiptIsFindingNotError(t *testing.T) {
	po := orderWithLines(models.PurchaseOrderStatusApproved, orderLine(1, 10))

	result, err := models.Reconcile(po, [][]models.ReceiptLine{
		receiptOf(received(1, 12)),
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Status != models.PurchaseOrderStatusReceived {
		t.Fatalf("expected Received, got %s", result.Status)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(result.Findings))
	}
	finding := result.Findings[0]
	if finding.Kind != models.FindingOverage || finding.ProductId != 1 {
		t.Fatalf("unexpected finding: %+v", finding)
	}
	if !finding.ReceivedQty.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected received 12, got %s", finding.ReceivedQty)
	}
	// Outstanding never goes negative.
	if !result.Lines[0].OutstandingQty.IsZero() {
		t.Fatalf("expected zero outstanding, got %s", result.Lines[0].OutstandingQty)
	}
}

func TestReconcile_UnmatchedReceiptLines(t *testing.T) {
	po := orderWithLines(models.PurchaseOrderStatusApproved, orderLine(1, 10))

	result, err := models.Reconcile(po, [][]models.ReceiptLine{
		receiptOf(received(1, 10), received(7, 3), received(5, 1)),
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Status != models.PurchaseOrderStatusReceived {
		t.Fatalf("expected Received, got %s", result.Status)
	}
	if len(result.Findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(result.Findings))
	}
	// Unmatched findings come back in product id order.
	if result.Findings[0].Kind != models.FindingUnmatchedItem || result.Findings[0].ProductId != 5 {
		t.Fatalf("unexpected first finding: %+v", result.Findings[0])
	}
	if result.Findings[1].ProductId != 7 {
		t.Fatalf("unexpected second finding: %+v", result.Findings[1])
	}
}

func TestReconcile_EmptyOrderNeverCompletes(t *testing.T) {
	po := orderWithLines(models.PurchaseOrderStatusApproved)

	result, err := models.Reconcile(po, nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Status != models.PurchaseOrderStatusApproved {
		t.Fatalf("an order with no lines must not flip to Received, got %s", result.Status)
	}
}

func TestReconcile_NilOrderIsError(t *testing.T) {
	_, err := models.Reconcile(nil, nil)
	if !models.IsDomainError(err, models.ErrKindDanglingReference) {
		t.Fatalf("expected dangling reference error, got %v", err)
	}
}
