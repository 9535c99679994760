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

type SalesOrder struct {
	ID               int                `gorm:"primary_key" json:"id"`
	BusinessId       string             `gorm:"index;not null" json:"business_id" binding:"required"`
	CustomerId       int                `gorm:"index;default:0" json:"customer_id"`
	DiningTableId    int                `gorm:"index;default:0" json:"dining_table_id"`
	OrderNumber      string             `gorm:"size:255;not null" json:"order_number"`
	SequenceNo       int64              `gorm:"not null" json:"sequence_no"`
	OrderDate        time.Time          `gorm:"not null" json:"order_date"`
	Notes            string             `gorm:"type:text;default:null" json:"notes"`
	OrderSubtotal    decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"order_subtotal"`
	OrderTotalAmount decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"order_total_amount"`
	PaidAmount       decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	RemainingBalance decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"remaining_balance"`
	CurrentStatus    SalesOrderStatus   `gorm:"type:enum('Open','Confirmed','Completed','Cancelled');not null;default:'Open'" json:"current_status"`
	Details          []SalesOrderDetail `json:"details"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesOrderDetail struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SalesOrderId    int             `gorm:"index;not null" json:"sales_order_id"`
	ProductId       int             `gorm:"index;not null" json:"product_id"`
	Name            string          `gorm:"size:100" json:"name"`
	DetailQty       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty"`
	DetailUnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_price"`
	DetailSubtotal  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_subtotal"`
}

type NewSalesOrder struct {
	CustomerId    int                   `json:"customer_id"`
	DiningTableId int                   `json:"dining_table_id"`
	OrderDate     time.Time             `json:"order_date"`
	Notes         string                `json:"notes"`
	Details       []NewSalesOrderDetail `json:"details" binding:"required"`
}

type NewSalesOrderDetail struct {
	ProductId int             `json:"product_id" binding:"required"`
	DetailQty int64           `json:"detail_qty" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (so SalesOrder) GetBusinessId() string {
	return so.BusinessId
}

// validate input for both create & update. (id = 0 for create)
func (input *NewSalesOrder) validate(ctx context.Context, businessId string, id int) error {
	if input.CustomerId == 0 && input.DiningTableId == 0 {
		return errors.New("sales order needs a customer or a table")
	}
	if input.CustomerId > 0 {
		if err := utils.ValidateResourceId[Customer](ctx, businessId, input.CustomerId); err != nil {
			return errors.New("customer not found")
		}
	}
	if input.DiningTableId > 0 {
		if err := utils.ValidateResourceId[DiningTable](ctx, businessId, input.DiningTableId); err != nil {
			return errors.New("table not found")
		}
	}
	if len(input.Details) == 0 {
		return errors.New("sales order requires at least one line")
	}
	seen := make(map[int]bool, len(input.Details))
	for _, detail := range input.Details {
		if detail.DetailQty <= 0 {
			return errors.New("line qty must be positive")
		}
		if detail.UnitPrice.IsNegative() {
			return errors.New("unit price cannot be negative")
		}
		if seen[detail.ProductId] {
			return errors.New("duplicate product in order lines")
		}
		seen[detail.ProductId] = true
		if err := utils.ValidateResourceId[Product](ctx, businessId, detail.ProductId); err != nil {
			return NewProductError(ErrKindDanglingReference, detail.ProductId, "product not found")
		}
	}
	return nil
}

func buildSalesOrderDetails(ctx context.Context, businessId string, inputs []NewSalesOrderDetail) ([]SalesOrderDetail, decimal.Decimal, error) {
	var details []SalesOrderDetail
	var subtotal decimal.Decimal
	for _, item := range inputs {
		product, err := utils.FetchModel[Product](ctx, businessId, item.ProductId)
		if err != nil {
			return nil, decimal.Zero, NewProductError(ErrKindDanglingReference, item.ProductId, "product not found")
		}
		unitPrice := item.UnitPrice
		if unitPrice.IsZero() {
			unitPrice = product.SalesPrice
		}
		qty := decimal.NewFromInt(item.DetailQty)
		detail := SalesOrderDetail{
			ProductId:       item.ProductId,
			Name:            product.Name,
			DetailQty:       qty,
			DetailUnitPrice: unitPrice,
			DetailSubtotal:  qty.Mul(unitPrice),
		}
		subtotal = subtotal.Add(detail.DetailSubtotal)
		details = append(details, detail)
	}
	return details, subtotal, nil
}

// CreateSalesOrder opens an order and seats it at its table.
func CreateSalesOrder(ctx context.Context, input *NewSalesOrder) (*SalesOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	details, subtotal, err := buildSalesOrderDetails(ctx, businessId, input.Details)
	if err != nil {
		return nil, err
	}

	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now().UTC()
	}

	salesOrder := SalesOrder{
		BusinessId:       businessId,
		CustomerId:       input.CustomerId,
		DiningTableId:    input.DiningTableId,
		OrderDate:        orderDate,
		Notes:            input.Notes,
		OrderSubtotal:    subtotal,
		OrderTotalAmount: subtotal,
		RemainingBalance: subtotal,
		CurrentStatus:    SalesOrderStatusOpen,
		Details:          details,
	}

	db := config.GetDB()
	tx := db.Begin()

	seqNo, err := utils.GetSequence[SalesOrder](ctx, businessId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	prefix, err := getTransactionPrefix("SalesOrder")
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	salesOrder.SequenceNo = seqNo
	salesOrder.OrderNumber = prefix + fmt.Sprint(seqNo)

	if err := tx.WithContext(ctx).Create(&salesOrder).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if input.DiningTableId > 0 {
		if _, err := setTableStatusTx(tx, ctx, businessId, input.DiningTableId, TableStatusOccupied); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &salesOrder, nil
}

// UpdateSalesOrder replaces the lines of an Open order.
func UpdateSalesOrder(ctx context.Context, id int, input *NewSalesOrder) (*SalesOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	salesOrder, err := utils.FetchModel[SalesOrder](ctx, businessId, id, "Details")
	if err != nil {
		return nil, err
	}
	if salesOrder.CurrentStatus != SalesOrderStatusOpen {
		return nil, NewDomainError(ErrKindInvalidTransition,
			"only open sales orders can be edited")
	}

	details, subtotal, err := buildSalesOrderDetails(ctx, businessId, input.Details)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(salesOrder).
		Updates(map[string]interface{}{
			"CustomerId":       input.CustomerId,
			"DiningTableId":    input.DiningTableId,
			"Notes":            input.Notes,
			"OrderSubtotal":    subtotal,
			"OrderTotalAmount": subtotal,
			"RemainingBalance": subtotal,
		}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	err = tx.WithContext(ctx).
		Where("sales_order_id = ?", salesOrder.ID).
		Delete(&SalesOrderDetail{}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	for i := range details {
		details[i].SalesOrderId = salesOrder.ID
		if err := tx.WithContext(ctx).Create(&details[i]).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	// reseat if the table changed
	if input.DiningTableId != salesOrder.DiningTableId {
		if salesOrder.DiningTableId > 0 {
			if _, err := setTableStatusTx(tx, ctx, businessId, salesOrder.DiningTableId, TableStatusAvailable); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
		if input.DiningTableId > 0 {
			if _, err := setTableStatusTx(tx, ctx, businessId, input.DiningTableId, TableStatusOccupied); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	salesOrder.CustomerId = input.CustomerId
	salesOrder.DiningTableId = input.DiningTableId
	salesOrder.Details = details
	salesOrder.OrderSubtotal = subtotal
	salesOrder.OrderTotalAmount = subtotal
	salesOrder.RemainingBalance = subtotal
	return salesOrder, nil
}

// orderBaseConsumption explodes every line of the order into the base
// product quantities the kitchen will consume.
func orderBaseConsumption(salesOrder *SalesOrder, snapshot *CatalogSnapshot, opts AvailabilityOptions) (map[int]decimal.Decimal, error) {
	consumption := make(map[int]decimal.Decimal)
	for _, detail := range salesOrder.Details {
		product, ok := snapshot.Product(detail.ProductId)
		if !ok {
			return nil, NewProductError(ErrKindDanglingReference, detail.ProductId, "product not found")
		}
		perUnit, err := BaseRequirements(product, snapshot, opts)
		if err != nil {
			return nil, err
		}
		for baseId, qty := range perUnit {
			consumption[baseId] = consumption[baseId].Add(qty.Mul(detail.DetailQty))
		}
	}
	return consumption, nil
}

// ConfirmSalesOrder commits the order to the kitchen: availability is
// checked against a catalog snapshot, then the recipe-exploded
// CONSUMPTION movements post in one transaction. The ledger's own
// balance check is the final word under concurrency.
func ConfirmSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	salesOrder, err := utils.FetchModel[SalesOrder](ctx, businessId, id, "Details")
	if err != nil {
		return nil, err
	}
	if salesOrder.CurrentStatus != SalesOrderStatusOpen {
		return nil, NewDomainError(ErrKindInvalidTransition,
			"only open sales orders can be confirmed")
	}

	snapshot, err := LoadCatalogSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	opts := AvailabilityOptions{WasteAware: config.WasteAwareAvailability()}

	for _, detail := range salesOrder.Details {
		product, ok := snapshot.Product(detail.ProductId)
		if !ok {
			return nil, NewProductError(ErrKindDanglingReference, detail.ProductId, "product not found")
		}
		available, err := AvailableStock(product, snapshot, opts)
		if err != nil {
			return nil, err
		}
		if decimal.NewFromInt(available).LessThan(detail.DetailQty) {
			return nil, NewProductError(ErrKindInsufficientStock, detail.ProductId,
				fmt.Sprintf("requested %s but only %d available", detail.DetailQty, available))
		}
	}

	consumption, err := orderBaseConsumption(salesOrder, snapshot, opts)
	if err != nil {
		return nil, err
	}

	baseIds := make([]int, 0, len(consumption))
	for baseId := range consumption {
		baseIds = append(baseIds, baseId)
	}
	sort.Ints(baseIds)

	locks := make([]*redislock.Lock, 0, len(baseIds))
	defer func() {
		for _, lock := range locks {
			lock.Release(ctx)
		}
	}()
	for _, baseId := range baseIds {
		lock, err := utils.ProductLock(ctx, businessId, baseId, "salesOrder", "ConfirmSalesOrder")
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}

	db := config.GetDB()
	tx := db.Begin()
	for _, baseId := range baseIds {
		_, err := appendMovementTx(tx, ctx, businessId, &NewInventoryMovement{
			ProductId:     baseId,
			Kind:          MovementKindConsumption,
			Qty:           consumption[baseId].Neg(),
			ReferenceType: MovementReferenceSalesOrder,
			ReferenceId:   salesOrder.ID,
			Remark:        "consumption for " + salesOrder.OrderNumber,
		})
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	err = tx.WithContext(ctx).Model(salesOrder).
		Update("CurrentStatus", SalesOrderStatusConfirmed).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	salesOrder.CurrentStatus = SalesOrderStatusConfirmed
	return salesOrder, nil
}

// CompleteSalesOrder closes out a confirmed order and frees its table.
func CompleteSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	salesOrder, err := utils.FetchModel[SalesOrder](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if salesOrder.CurrentStatus != SalesOrderStatusConfirmed {
		return nil, NewDomainError(ErrKindInvalidTransition,
			"only confirmed sales orders can be completed")
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(salesOrder).
		Update("CurrentStatus", SalesOrderStatusCompleted).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if salesOrder.DiningTableId > 0 {
		if _, err := setTableStatusTx(tx, ctx, businessId, salesOrder.DiningTableId, TableStatusAvailable); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	salesOrder.CurrentStatus = SalesOrderStatusCompleted
	return salesOrder, nil
}

// CancelSalesOrder cancels an order. A confirmed order already consumed
// stock, so cancellation posts compensating ADJUSTMENT movements, one
// per CONSUMPTION the confirmation recorded.
func CancelSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	salesOrder, err := utils.FetchModel[SalesOrder](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if salesOrder.CurrentStatus.IsTerminal() {
		return nil, NewDomainError(ErrKindInvalidTransition,
			"sales order is already "+string(salesOrder.CurrentStatus))
	}
	if !salesOrder.PaidAmount.IsZero() {
		return nil, errors.New("sales order has payments; refund them first")
	}

	db := config.GetDB()

	var consumed []InventoryMovement
	if salesOrder.CurrentStatus == SalesOrderStatusConfirmed {
		err = db.WithContext(ctx).
			Where("business_id = ? AND reference_type = ? AND reference_id = ? AND kind = ?",
				businessId, MovementReferenceSalesOrder, salesOrder.ID, MovementKindConsumption).
			Order("product_id").
			Find(&consumed).Error
		if err != nil {
			return nil, err
		}
	}

	locks := make([]*redislock.Lock, 0, len(consumed))
	defer func() {
		for _, lock := range locks {
			lock.Release(ctx)
		}
	}()
	for _, movement := range consumed {
		lock, err := utils.ProductLock(ctx, businessId, movement.ProductId, "salesOrder", "CancelSalesOrder")
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}

	tx := db.Begin()
	for _, movement := range consumed {
		_, err := appendMovementTx(tx, ctx, businessId, &NewInventoryMovement{
			ProductId:     movement.ProductId,
			Kind:          MovementKindAdjustment,
			Qty:           movement.Qty.Neg(),
			ReferenceType: MovementReferenceSalesOrder,
			ReferenceId:   salesOrder.ID,
			Remark:        "cancellation of " + salesOrder.OrderNumber,
		})
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	err = tx.WithContext(ctx).Model(salesOrder).
		Update("CurrentStatus", SalesOrderStatusCancelled).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if salesOrder.DiningTableId > 0 {
		if _, err := setTableStatusTx(tx, ctx, businessId, salesOrder.DiningTableId, TableStatusAvailable); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	salesOrder.CurrentStatus = SalesOrderStatusCancelled
	return salesOrder, nil
}

// applySalesOrderPaymentTx mirrors applyBillPaymentTx for AR.
func applySalesOrderPaymentTx(tx *gorm.DB, ctx context.Context, businessId string, salesOrderId int, amount decimal.Decimal) (*SalesOrder, error) {
	var salesOrder SalesOrder
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, salesOrderId).
		First(&salesOrder).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	if salesOrder.CurrentStatus == SalesOrderStatusOpen ||
		salesOrder.CurrentStatus == SalesOrderStatusCancelled {
		return nil, NewDomainError(ErrKindInvalidTransition,
			"sales order in status "+string(salesOrder.CurrentStatus)+" cannot take payments")
	}
	if amount.GreaterThan(salesOrder.RemainingBalance) {
		return nil, errors.New("payment exceeds remaining balance")
	}

	salesOrder.PaidAmount = salesOrder.PaidAmount.Add(amount)
	salesOrder.RemainingBalance = salesOrder.RemainingBalance.Sub(amount)

	err = tx.WithContext(ctx).Model(&salesOrder).
		Updates(map[string]interface{}{
			"PaidAmount":       salesOrder.PaidAmount,
			"RemainingBalance": salesOrder.RemainingBalance,
		}).Error
	if err != nil {
		return nil, err
	}
	return &salesOrder, nil
}

func GetSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[SalesOrder](ctx, businessId, id, "Details")
}

func GetSalesOrders(ctx context.Context, customerId *int, tableId *int, status *SalesOrderStatus) ([]*SalesOrder, error) {
	db := config.GetDB()
	var results []*SalesOrder

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if customerId != nil && *customerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", *customerId)
	}
	if tableId != nil && *tableId > 0 {
		dbCtx = dbCtx.Where("dining_table_id = ?", *tableId)
	}
	if status != nil && *status != "" {
		if !status.IsValid() {
			return nil, errors.New("invalid sales order status")
		}
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}
	err := dbCtx.Preload("Details").Order("order_date DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
