package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

type ReconciliationFindingKind string

const (
	FindingOverage       ReconciliationFindingKind = "Overage"
	FindingUnmatchedItem ReconciliationFindingKind = "UnmatchedItem"
)

// ReconciliationFinding is a warning, not an error: the receipt stands
// and stock reflects what physically arrived.
type ReconciliationFinding struct {
	Kind        ReconciliationFindingKind `json:"kind"`
	ProductId   int                       `json:"product_id"`
	OrderedQty  decimal.Decimal           `json:"ordered_qty"`
	ReceivedQty decimal.Decimal           `json:"received_qty"`
}

type ReconciliationLine struct {
	ProductId      int             `json:"product_id"`
	OrderedQty     decimal.Decimal `json:"ordered_qty"`
	ReceivedQty    decimal.Decimal `json:"received_qty"`
	OutstandingQty decimal.Decimal `json:"outstanding_qty"`
}

type ReconciliationResult struct {
	Status   PurchaseOrderStatus     `json:"status"`
	Lines    []ReconciliationLine    `json:"lines"`
	Findings []ReconciliationFinding `json:"findings"`
}

// ReceiptLine is one received quantity from a goods receipt, already
// validated against the catalog by the caller.
type ReceiptLine struct {
	ProductId int
	Qty       decimal.Decimal
}

// Reconcile folds every receipt recorded against the order into
// cumulative per-product received quantities and derives the order
// status from line coverage: all lines fully received means Received,
// anything received at all means Partially Received, nothing received
// leaves the status as the caller had it. Over-receipts and receipt
// lines with no matching order line come back as findings.
func Reconcile(po *PurchaseOrder, receipts [][]ReceiptLine) (*ReconciliationResult, error) {
	if po == nil {
		return nil, NewDomainError(ErrKindDanglingReference, "purchase order is required")
	}

	received := make(map[int]decimal.Decimal)
	for _, receipt := range receipts {
		for _, line := range receipt {
			received[line.ProductId] = received[line.ProductId].Add(line.Qty)
		}
	}

	ordered := make(map[int]decimal.Decimal, len(po.Details))
	for _, detail := range po.Details {
		ordered[detail.ProductId] = ordered[detail.ProductId].Add(detail.DetailQty)
	}

	result := ReconciliationResult{Status: po.CurrentStatus}

	anyReceived := false
	allFull := len(po.Details) > 0
	for _, detail := range po.Details {
		orderedQty := ordered[detail.ProductId]
		receivedQty := received[detail.ProductId]
		outstanding := orderedQty.Sub(receivedQty)
		if outstanding.IsNegative() {
			outstanding = decimal.Zero
		}

		if receivedQty.IsPositive() {
			anyReceived = true
		}
		if receivedQty.LessThan(orderedQty) {
			allFull = false
		}
		if receivedQty.GreaterThan(orderedQty) {
			result.Findings = append(result.Findings, ReconciliationFinding{
				Kind:        FindingOverage,
				ProductId:   detail.ProductId,
				OrderedQty:  orderedQty,
				ReceivedQty: receivedQty,
			})
		}

		result.Lines = append(result.Lines, ReconciliationLine{
			ProductId:      detail.ProductId,
			OrderedQty:     orderedQty,
			ReceivedQty:    receivedQty,
			OutstandingQty: outstanding,
		})
	}

	// receipt lines that never appeared on the order
	var unmatched []int
	for productId := range received {
		if _, ok := ordered[productId]; !ok {
			unmatched = append(unmatched, productId)
		}
	}
	sort.Ints(unmatched)
	for _, productId := range unmatched {
		result.Findings = append(result.Findings, ReconciliationFinding{
			Kind:        FindingUnmatchedItem,
			ProductId:   productId,
			ReceivedQty: received[productId],
		})
	}

	if allFull {
		result.Status = PurchaseOrderStatusReceived
	} else if anyReceived {
		result.Status = PurchaseOrderStatusPartiallyReceived
	}
	return &result, nil
}
