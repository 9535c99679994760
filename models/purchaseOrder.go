package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PurchaseOrder struct {
	ID                   int                   `gorm:"primary_key" json:"id"`
	BusinessId           string                `gorm:"index;not null" json:"business_id" binding:"required"`
	SupplierId           int                   `gorm:"index;not null" json:"supplier_id" binding:"required"`
	OrderNumber          string                `gorm:"size:255;not null" json:"order_number"`
	SequenceNo           int64                 `gorm:"not null" json:"sequence_no"`
	ReferenceNumber      string                `gorm:"size:255;default:null" json:"reference_number"`
	OrderDate            time.Time             `gorm:"not null" json:"order_date" binding:"required"`
	ExpectedDeliveryDate *time.Time            `gorm:"default:null" json:"expected_delivery_date"`
	Notes                string                `gorm:"type:text;default:null" json:"notes"`
	CurrencyId           int                   `gorm:"not null" json:"currency_id"`
	OrderSubtotal        decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"order_subtotal"`
	OrderTotalAmount     decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"order_total_amount"`
	CurrentStatus        PurchaseOrderStatus   `gorm:"type:enum('Pending','Approved','Partially Received','Received','Cancelled');not null;default:'Pending'" json:"current_status"`
	Details              []PurchaseOrderDetail `json:"details"`
	CreatedAt            time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseOrderDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId   int             `gorm:"index;not null" json:"purchase_order_id"`
	ProductId         int             `gorm:"index;not null" json:"product_id"`
	Name              string          `gorm:"size:100" json:"name"`
	DetailQty         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty" binding:"required"`
	DetailUnitCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_cost" binding:"required"`
	DetailSubtotal    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_subtotal"`
	DetailReceivedQty decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_received_qty"`
}

type NewPurchaseOrder struct {
	SupplierId           int                      `json:"supplier_id" binding:"required"`
	ReferenceNumber      string                   `json:"reference_number"`
	OrderDate            time.Time                `json:"order_date" binding:"required"`
	ExpectedDeliveryDate *time.Time               `json:"expected_delivery_date"`
	Notes                string                   `json:"notes"`
	CurrencyId           int                      `json:"currency_id"`
	Details              []NewPurchaseOrderDetail `json:"details" binding:"required"`
}

type NewPurchaseOrderDetail struct {
	ProductId      int             `json:"product_id" binding:"required"`
	DetailQty      decimal.Decimal `json:"detail_qty" binding:"required"`
	DetailUnitCost decimal.Decimal `json:"detail_unit_cost" binding:"required"`
}

func (po PurchaseOrder) GetBusinessId() string {
	return po.BusinessId
}

func (po PurchaseOrder) BillId(ctx context.Context) (int, error) {
	db := config.GetDB()
	var id int
	err := db.WithContext(ctx).Model(&Bill{}).Where("purchase_order_id = ?", po.ID).Select("id").Scan(&id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return id, err
}

// validate input for both create & update. (id = 0 for create)
func (input *NewPurchaseOrder) validate(ctx context.Context, businessId string, id int) error {
	// exists supplier
	if err := utils.ValidateResourceId[Supplier](ctx, businessId, input.SupplierId); err != nil {
		return errors.New("supplier not found")
	}
	if input.CurrencyId > 0 {
		if err := utils.ValidateResourceId[Currency](ctx, businessId, input.CurrencyId); err != nil {
			return errors.New("currency not found")
		}
	}
	if len(input.Details) == 0 {
		return errors.New("purchase order requires at least one line")
	}
	seen := make(map[int]bool, len(input.Details))
	for _, detail := range input.Details {
		if !detail.DetailQty.IsPositive() {
			return errors.New("line qty must be positive")
		}
		if detail.DetailUnitCost.IsNegative() {
			return errors.New("line unit cost cannot be negative")
		}
		if seen[detail.ProductId] {
			return errors.New("duplicate product in order lines")
		}
		seen[detail.ProductId] = true
		// only stock-tracked products can be purchased
		product, err := utils.FetchModel[Product](ctx, businessId, detail.ProductId)
		if err != nil {
			return NewProductError(ErrKindDanglingReference, detail.ProductId, "product not found")
		}
		if product.Type != ProductTypeBase {
			return fmt.Errorf("product %s is composed and cannot be purchased", product.Name)
		}
	}
	return nil
}

func buildPurchaseOrderDetails(ctx context.Context, businessId string, inputs []NewPurchaseOrderDetail) ([]PurchaseOrderDetail, decimal.Decimal, error) {
	var details []PurchaseOrderDetail
	var subtotal decimal.Decimal
	for _, item := range inputs {
		product, err := utils.FetchModel[Product](ctx, businessId, item.ProductId)
		if err != nil {
			return nil, decimal.Zero, NewProductError(ErrKindDanglingReference, item.ProductId, "product not found")
		}
		detail := PurchaseOrderDetail{
			ProductId:      item.ProductId,
			Name:           product.Name,
			DetailQty:      item.DetailQty,
			DetailUnitCost: item.DetailUnitCost,
			DetailSubtotal: item.DetailQty.Mul(item.DetailUnitCost),
		}
		subtotal = subtotal.Add(detail.DetailSubtotal)
		details = append(details, detail)
	}
	return details, subtotal, nil
}

func CreatePurchaseOrder(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	details, subtotal, err := buildPurchaseOrderDetails(ctx, businessId, input.Details)
	if err != nil {
		return nil, err
	}

	currencyId := input.CurrencyId
	if currencyId == 0 {
		business, err := GetBusinessById(ctx, businessId)
		if err != nil {
			return nil, err
		}
		currencyId = business.BaseCurrencyId
	}

	purchaseOrder := PurchaseOrder{
		BusinessId:           businessId,
		SupplierId:           input.SupplierId,
		ReferenceNumber:      input.ReferenceNumber,
		OrderDate:            input.OrderDate,
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
		Notes:                input.Notes,
		CurrencyId:           currencyId,
		OrderSubtotal:        subtotal,
		OrderTotalAmount:     subtotal,
		CurrentStatus:        PurchaseOrderStatusPending,
		Details:              details,
	}

	tx := db.Begin()

	seqNo, err := utils.GetSequence[PurchaseOrder](ctx, businessId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	prefix, err := getTransactionPrefix("PurchaseOrder")
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	purchaseOrder.SequenceNo = seqNo
	purchaseOrder.OrderNumber = prefix + fmt.Sprint(seqNo)

	if err := tx.WithContext(ctx).Create(&purchaseOrder).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &purchaseOrder, nil
}

// UpdatePurchaseOrder replaces the order's fields and lines. Only
// Pending orders can change; anything later must be cancelled and
// recreated so received quantities stay truthful.
func UpdatePurchaseOrder(ctx context.Context, id int, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	existingOrder, err := utils.FetchModel[PurchaseOrder](ctx, businessId, id, "Details")
	if err != nil {
		return nil, err
	}
	if existingOrder.CurrentStatus != PurchaseOrderStatusPending {
		return nil, NewDomainError(ErrKindInvalidTransition,
			"only pending purchase orders can be edited")
	}

	details, subtotal, err := buildPurchaseOrderDetails(ctx, businessId, input.Details)
	if err != nil {
		return nil, err
	}

	tx := db.Begin()
	err = tx.WithContext(ctx).Model(existingOrder).
		Updates(map[string]interface{}{
			"SupplierId":           input.SupplierId,
			"ReferenceNumber":      input.ReferenceNumber,
			"OrderDate":            input.OrderDate,
			"ExpectedDeliveryDate": input.ExpectedDeliveryDate,
			"Notes":                input.Notes,
			"OrderSubtotal":        subtotal,
			"OrderTotalAmount":     subtotal,
		}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// replace lines wholesale
	err = tx.WithContext(ctx).
		Where("purchase_order_id = ?", existingOrder.ID).
		Delete(&PurchaseOrderDetail{}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	for i := range details {
		details[i].PurchaseOrderId = existingOrder.ID
		if err := tx.WithContext(ctx).Create(&details[i]).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	existingOrder.Details = details
	existingOrder.OrderSubtotal = subtotal
	existingOrder.OrderTotalAmount = subtotal
	return existingOrder, nil
}

func ApprovePurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	return transitionPurchaseOrder(ctx, id, PurchaseOrderStatusApproved, func(status PurchaseOrderStatus) error {
		if status != PurchaseOrderStatusPending {
			return NewDomainError(ErrKindInvalidTransition,
				"only pending purchase orders can be approved")
		}
		return nil
	})
}

// CancelPurchaseOrder closes the order. Allowed any time before it is
// fully received; goods already received stay in stock.
func CancelPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	return transitionPurchaseOrder(ctx, id, PurchaseOrderStatusCancelled, func(status PurchaseOrderStatus) error {
		if status.IsTerminal() {
			return NewDomainError(ErrKindInvalidTransition,
				"purchase order is already "+string(status))
		}
		return nil
	})
}

func transitionPurchaseOrder(ctx context.Context, id int, to PurchaseOrderStatus, check func(PurchaseOrderStatus) error) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	purchaseOrder, err := utils.FetchModel[PurchaseOrder](ctx, businessId, id, "Details")
	if err != nil {
		return nil, err
	}
	if err := check(purchaseOrder.CurrentStatus); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(purchaseOrder).
		Update("CurrentStatus", to).Error
	if err != nil {
		return nil, err
	}
	purchaseOrder.CurrentStatus = to
	return purchaseOrder, nil
}

func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[PurchaseOrder](ctx, businessId, id, "Details")
}

func GetPurchaseOrders(ctx context.Context, supplierId *int, status *PurchaseOrderStatus) ([]*PurchaseOrder, error) {
	db := config.GetDB()
	var results []*PurchaseOrder

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if supplierId != nil && *supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", *supplierId)
	}
	if status != nil && *status != "" {
		if !status.IsValid() {
			return nil, errors.New("invalid purchase order status")
		}
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}
	err := dbCtx.Preload("Details").Order("order_date DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
