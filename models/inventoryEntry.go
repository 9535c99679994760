package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryEntry is a goods receipt against one purchase order. It is
// immutable after create: the RECEIPT movements it emitted are part of
// the ledger of record, so corrections go through new documents.
type InventoryEntry struct {
	ID              int                    `gorm:"primary_key" json:"id"`
	BusinessId      string                 `gorm:"index;not null" json:"business_id" binding:"required"`
	PurchaseOrderId int                    `gorm:"index;not null" json:"purchase_order_id" binding:"required"`
	EntryNumber     string                 `gorm:"size:255;not null" json:"entry_number"`
	SequenceNo      int64                  `gorm:"not null" json:"sequence_no"`
	ReceivedDate    time.Time              `gorm:"not null" json:"received_date"`
	ReceivedById    int                    `gorm:"not null" json:"received_by_id"`
	Notes           string                 `gorm:"type:text;default:null" json:"notes"`
	Details         []InventoryEntryDetail `json:"details"`
	CreatedAt       time.Time              `gorm:"autoCreateTime" json:"created_at"`
}

type InventoryEntryDetail struct {
	ID               int             `gorm:"primary_key" json:"id"`
	InventoryEntryId int             `gorm:"index;not null" json:"inventory_entry_id"`
	ProductId        int             `gorm:"index;not null" json:"product_id"`
	Name             string          `gorm:"size:100" json:"name"`
	DetailQty        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty"`
}

type NewInventoryEntry struct {
	PurchaseOrderId int                       `json:"purchase_order_id" binding:"required"`
	ReceivedDate    time.Time                 `json:"received_date"`
	Notes           string                    `json:"notes"`
	Details         []NewInventoryEntryDetail `json:"details" binding:"required"`
}

type NewInventoryEntryDetail struct {
	ProductId int             `json:"product_id" binding:"required"`
	DetailQty decimal.Decimal `json:"detail_qty" binding:"required"`
}

func (e *InventoryEntry) BeforeUpdate(tx *gorm.DB) error {
	return NewDomainError(ErrKindImmutableRecord, "inventory entries cannot be updated")
}

func (input *NewInventoryEntry) validate(ctx context.Context, businessId string) error {
	if len(input.Details) == 0 {
		return errors.New("inventory entry requires at least one line")
	}
	seen := make(map[int]bool, len(input.Details))
	for _, detail := range input.Details {
		if !detail.DetailQty.IsPositive() {
			return errors.New("received qty must be positive")
		}
		if seen[detail.ProductId] {
			return errors.New("duplicate product in entry lines")
		}
		seen[detail.ProductId] = true
		// unknown product in a receipt line is a hard error: stock it
		// claims to add has nowhere to go
		product, err := utils.FetchModel[Product](ctx, businessId, detail.ProductId)
		if err != nil {
			return NewProductError(ErrKindDanglingReference, detail.ProductId, "product not found")
		}
		if product.Type != ProductTypeBase {
			return fmt.Errorf("product %s is composed and cannot be received", product.Name)
		}
	}
	return nil
}

// receiptLinesForOrder loads every receipt recorded against the order,
// grouped per entry, for the reconciliation fold.
func receiptLinesForOrder(tx *gorm.DB, ctx context.Context, businessId string, purchaseOrderId int) ([][]ReceiptLine, error) {
	var entries []InventoryEntry
	err := tx.WithContext(ctx).
		Preload("Details").
		Where("business_id = ? AND purchase_order_id = ?", businessId, purchaseOrderId).
		Order("id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	receipts := make([][]ReceiptLine, 0, len(entries))
	for _, entry := range entries {
		lines := make([]ReceiptLine, 0, len(entry.Details))
		for _, detail := range entry.Details {
			lines = append(lines, ReceiptLine{ProductId: detail.ProductId, Qty: detail.DetailQty})
		}
		receipts = append(receipts, lines)
	}
	return receipts, nil
}

// CreateInventoryEntry records a goods receipt: RECEIPT movements,
// purchase order reconciliation and, when the order completes, the
// supplier bill all commit in one transaction.
func CreateInventoryEntry(ctx context.Context, input *NewInventoryEntry) (*InventoryEntry, *ReconciliationResult, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if err := input.validate(ctx, businessId); err != nil {
		return nil, nil, err
	}

	// product locks, in id order so two concurrent receipts cannot deadlock
	locks := make([]*redislock.Lock, 0, len(input.Details))
	defer func() {
		for _, lock := range locks {
			lock.Release(ctx)
		}
	}()
	for _, detail := range sortedEntryDetails(input.Details) {
		lock, err := utils.ProductLock(ctx, businessId, detail.ProductId, "inventoryEntry", "CreateInventoryEntry")
		if err != nil {
			return nil, nil, err
		}
		locks = append(locks, lock)
	}

	db := config.GetDB()
	tx := db.Begin()

	var purchaseOrder PurchaseOrder
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Details").
		Where("business_id = ? AND id = ?", businessId, input.PurchaseOrderId).
		First(&purchaseOrder).Error
	if err != nil {
		tx.Rollback()
		return nil, nil, utils.ErrorRecordNotFound
	}
	if !purchaseOrder.CurrentStatus.CanReceive() {
		tx.Rollback()
		return nil, nil, NewDomainError(ErrKindInvalidTransition,
			"purchase order in status "+string(purchaseOrder.CurrentStatus)+" cannot receive goods")
	}

	receivedDate := input.ReceivedDate
	if receivedDate.IsZero() {
		receivedDate = time.Now().UTC()
	}

	entry := InventoryEntry{
		BusinessId:      businessId,
		PurchaseOrderId: purchaseOrder.ID,
		ReceivedDate:    receivedDate,
		ReceivedById:    userId,
		Notes:           input.Notes,
	}
	seqNo, err := utils.GetSequence[InventoryEntry](ctx, businessId)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	prefix, err := getTransactionPrefix("InventoryEntry")
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	entry.SequenceNo = seqNo
	entry.EntryNumber = prefix + fmt.Sprint(seqNo)

	for _, detail := range input.Details {
		product, err := utils.FetchModel[Product](ctx, businessId, detail.ProductId)
		if err != nil {
			tx.Rollback()
			return nil, nil, NewProductError(ErrKindDanglingReference, detail.ProductId, "product not found")
		}
		entry.Details = append(entry.Details, InventoryEntryDetail{
			ProductId: detail.ProductId,
			Name:      product.Name,
			DetailQty: detail.DetailQty,
		})
	}

	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	// receiving is the only path from purchasing into stock
	for _, movement := range ReceiptMovements(&entry, receivedDate) {
		if _, err := appendMovementTx(tx, ctx, businessId, movement); err != nil {
			tx.Rollback()
			return nil, nil, err
		}
	}

	result, err := reconcileOrderTx(tx, ctx, businessId, &purchaseOrder)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, nil, err
	}
	return &entry, result, nil
}

// reconcileOrderTx re-derives the order's received quantities and status
// from every receipt on file and raises the supplier bill once fully
// received. The bill is costed from ordered quantities; over-receipt
// shows up as a finding, never as money owed.
func reconcileOrderTx(tx *gorm.DB, ctx context.Context, businessId string, purchaseOrder *PurchaseOrder) (*ReconciliationResult, error) {
	receipts, err := receiptLinesForOrder(tx, ctx, businessId, purchaseOrder.ID)
	if err != nil {
		return nil, err
	}

	result, err := Reconcile(purchaseOrder, receipts)
	if err != nil {
		return nil, err
	}

	for _, line := range result.Lines {
		err = tx.WithContext(ctx).Model(&PurchaseOrderDetail{}).
			Where("purchase_order_id = ? AND product_id = ?", purchaseOrder.ID, line.ProductId).
			Update("DetailReceivedQty", line.ReceivedQty).Error
		if err != nil {
			return nil, err
		}
	}

	if result.Status != purchaseOrder.CurrentStatus {
		err = tx.WithContext(ctx).Model(purchaseOrder).
			Update("CurrentStatus", result.Status).Error
		if err != nil {
			return nil, err
		}
		purchaseOrder.CurrentStatus = result.Status
	}

	if result.Status == PurchaseOrderStatusReceived {
		billId, err := purchaseOrder.BillId(ctx)
		if err != nil {
			return nil, err
		}
		if billId == 0 {
			if err := createBillFromPurchaseOrderTx(tx, ctx, businessId, purchaseOrder); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// ReceiptMovements builds the RECEIPT movement for every line of a
// stored goods receipt: one movement per line, each carrying the
// received quantity and a reference back to the entry line.
func ReceiptMovements(entry *InventoryEntry, receivedDate time.Time) []*NewInventoryMovement {
	movements := make([]*NewInventoryMovement, 0, len(entry.Details))
	for _, detail := range entry.Details {
		movements = append(movements, &NewInventoryMovement{
			ProductId:         detail.ProductId,
			Kind:              MovementKindReceipt,
			Qty:               detail.DetailQty,
			ReferenceType:     MovementReferenceInventoryEntry,
			ReferenceId:       entry.ID,
			ReferenceDetailId: detail.ID,
			EffectiveDate:     receivedDate,
			Remark:            "goods receipt " + entry.EntryNumber,
		})
	}
	return movements
}

func sortedEntryDetails(details []NewInventoryEntryDetail) []NewInventoryEntryDetail {
	sorted := make([]NewInventoryEntryDetail, len(details))
	copy(sorted, details)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductId < sorted[j].ProductId })
	return sorted
}

// sortedDetailProductIds gives the lock acquisition order for a stored
// entry's lines. Create and delete must lock in the same order or a
// concurrent pair can stall each other out.
func sortedDetailProductIds(details []InventoryEntryDetail) []int {
	ids := make([]int, 0, len(details))
	for _, detail := range details {
		ids = append(ids, detail.ProductId)
	}
	sort.Ints(ids)
	return ids
}

func GetInventoryEntry(ctx context.Context, id int) (*InventoryEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[InventoryEntry](ctx, businessId, id, "Details")
}

func GetInventoryEntries(ctx context.Context, purchaseOrderId *int) ([]*InventoryEntry, error) {
	db := config.GetDB()
	var results []*InventoryEntry

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if purchaseOrderId != nil && *purchaseOrderId > 0 {
		dbCtx = dbCtx.Where("purchase_order_id = ?", *purchaseOrderId)
	}
	err := dbCtx.Preload("Details").Order("received_date DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteInventoryEntry is the admin cleanup path: it reverses the
// entry's movements with compensating ADJUSTMENTs and re-reconciles the
// order. Disabled entirely under STRICT_RECEIPT_IMMUTABLE.
func DeleteInventoryEntry(ctx context.Context, id int) (*InventoryEntry, error) {
	if config.StrictReceiptImmutability() {
		return nil, NewDomainError(ErrKindImmutableRecord, "inventory entries are immutable")
	}

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	entry, err := utils.FetchModel[InventoryEntry](ctx, businessId, id, "Details")
	if err != nil {
		return nil, err
	}

	locks := make([]*redislock.Lock, 0, len(entry.Details))
	defer func() {
		for _, lock := range locks {
			lock.Release(ctx)
		}
	}()
	for _, productId := range sortedDetailProductIds(entry.Details) {
		lock, err := utils.ProductLock(ctx, businessId, productId, "inventoryEntry", "DeleteInventoryEntry")
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}

	db := config.GetDB()
	tx := db.Begin()

	var purchaseOrder PurchaseOrder
	err = tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Details").
		Where("business_id = ? AND id = ?", businessId, entry.PurchaseOrderId).
		First(&purchaseOrder).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	billId, err := purchaseOrder.BillId(ctx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if billId > 0 {
		tx.Rollback()
		return nil, errors.New("purchase order already billed; void the bill first")
	}

	for _, detail := range entry.Details {
		_, err := appendMovementTx(tx, ctx, businessId, &NewInventoryMovement{
			ProductId:         detail.ProductId,
			Kind:              MovementKindAdjustment,
			Qty:               detail.DetailQty.Neg(),
			ReferenceType:     MovementReferenceInventoryEntry,
			ReferenceId:       entry.ID,
			ReferenceDetailId: detail.ID,
			Remark:            "reversal of " + entry.EntryNumber,
		})
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	err = tx.WithContext(ctx).
		Where("inventory_entry_id = ?", entry.ID).
		Delete(&InventoryEntryDetail{}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&InventoryEntry{}, entry.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// order status falls back to whatever the remaining receipts imply
	if purchaseOrder.CurrentStatus == PurchaseOrderStatusReceived ||
		purchaseOrder.CurrentStatus == PurchaseOrderStatusPartiallyReceived {
		purchaseOrder.CurrentStatus = PurchaseOrderStatusApproved
		err = tx.WithContext(ctx).Model(&purchaseOrder).
			Update("CurrentStatus", PurchaseOrderStatusApproved).Error
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if _, err := reconcileOrderTx(tx, ctx, businessId, &purchaseOrder); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return entry, nil
}
