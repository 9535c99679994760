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

// Bill is the accounts-payable side of purchasing: raised automatically
// when a purchase order is fully received, or entered directly.
type Bill struct {
	ID               int             `gorm:"primary_key" json:"id"`
	BusinessId       string          `gorm:"index;not null" json:"business_id" binding:"required"`
	SupplierId       int             `gorm:"index;not null" json:"supplier_id" binding:"required"`
	PurchaseOrderId  int             `gorm:"index;default:0" json:"purchase_order_id"`
	BillNumber       string          `gorm:"size:255;not null" json:"bill_number"`
	SequenceNo       int64           `gorm:"not null" json:"sequence_no"`
	BillDate         time.Time       `gorm:"not null" json:"bill_date"`
	BillDueDate      *time.Time      `gorm:"default:null" json:"bill_due_date"`
	CurrencyId       int             `gorm:"not null" json:"currency_id"`
	BillTotalAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bill_total_amount"`
	PaidAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	RemainingBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"remaining_balance"`
	CurrentStatus    BillStatus      `gorm:"type:enum('Open','Partially Paid','Paid','Void');not null;default:'Open'" json:"current_status"`
	Notes            string          `gorm:"type:text;default:null" json:"notes"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBill struct {
	SupplierId      int             `json:"supplier_id" binding:"required"`
	BillDate        time.Time       `json:"bill_date" binding:"required"`
	BillTotalAmount decimal.Decimal `json:"bill_total_amount" binding:"required"`
	Notes           string          `json:"notes"`
}

func (b Bill) GetBusinessId() string {
	return b.BusinessId
}

func calculateDueDate(date time.Time, paymentTerms PaymentTerms, customDays int) *time.Time {
	var dueDate time.Time
	switch terms := paymentTerms; terms {
	case PaymentTermsDueOnReceipt:
		dueDate = date
	case PaymentTermsNet15:
		dueDate = date.AddDate(0, 0, 15)
	case PaymentTermsNet30:
		dueDate = date.AddDate(0, 0, 30)
	case PaymentTermsNet45:
		dueDate = date.AddDate(0, 0, 45)
	case PaymentTermsNet60:
		dueDate = date.AddDate(0, 0, 60)
	case PaymentTermsDueMonthEnd:
		year, month, _ := date.Date()
		firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, date.Location())
		dueDate = firstOfMonth.AddDate(0, 1, -1)
	case PaymentTermsCustom:
		dueDate = date.AddDate(0, 0, customDays)
	}
	return &dueDate
}

// createBillFromPurchaseOrderTx raises the AP bill for a fully received
// order. The amount comes from ordered quantities at ordered unit cost:
// quantity received beyond the order is a reconciliation finding, not
// extra money owed.
func createBillFromPurchaseOrderTx(tx *gorm.DB, ctx context.Context, businessId string, purchaseOrder *PurchaseOrder) error {
	var supplier Supplier
	err := tx.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, purchaseOrder.SupplierId).
		First(&supplier).Error
	if err != nil {
		return utils.ErrorRecordNotFound
	}

	seqNo, err := utils.GetSequence[Bill](ctx, businessId)
	if err != nil {
		return err
	}
	prefix, err := getTransactionPrefix("Bill")
	if err != nil {
		return err
	}

	billDate := time.Now().UTC()
	bill := Bill{
		BusinessId:       businessId,
		SupplierId:       purchaseOrder.SupplierId,
		PurchaseOrderId:  purchaseOrder.ID,
		BillNumber:       prefix + fmt.Sprint(seqNo),
		SequenceNo:       seqNo,
		BillDate:         billDate,
		BillDueDate:      calculateDueDate(billDate, supplier.PaymentTerms, supplier.PaymentTermsCustomDays),
		CurrencyId:       purchaseOrder.CurrencyId,
		BillTotalAmount:  purchaseOrder.OrderTotalAmount,
		RemainingBalance: purchaseOrder.OrderTotalAmount,
		CurrentStatus:    BillStatusOpen,
		Notes:            "for purchase order " + purchaseOrder.OrderNumber,
	}
	return tx.WithContext(ctx).Create(&bill).Error
}

// createOpeningBalanceBill seeds the supplier's payable from its
// opening balance so payments have a document to settle against.
func createOpeningBalanceBill(tx *gorm.DB, ctx context.Context, businessId string, supplier *Supplier) error {
	billDate := time.Now().UTC()
	bill := Bill{
		BusinessId:       businessId,
		SupplierId:       supplier.ID,
		BillNumber:       supplierOpeningBalanceBillNumber,
		SequenceNo:       0,
		BillDate:         billDate,
		BillDueDate:      &billDate,
		CurrencyId:       0,
		BillTotalAmount:  supplier.OpeningBalance,
		RemainingBalance: supplier.OpeningBalance,
		CurrentStatus:    BillStatusOpen,
	}
	return tx.WithContext(ctx).Create(&bill).Error
}

// CreateBill enters a direct bill with no purchase order behind it.
func CreateBill(ctx context.Context, input *NewBill) (*Bill, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	supplier, err := utils.FetchModel[Supplier](ctx, businessId, input.SupplierId)
	if err != nil {
		return nil, errors.New("supplier not found")
	}
	if !input.BillTotalAmount.IsPositive() {
		return nil, errors.New("bill amount must be positive")
	}

	seqNo, err := utils.GetSequence[Bill](ctx, businessId)
	if err != nil {
		return nil, err
	}
	prefix, err := getTransactionPrefix("Bill")
	if err != nil {
		return nil, err
	}

	bill := Bill{
		BusinessId:       businessId,
		SupplierId:       supplier.ID,
		BillNumber:       prefix + fmt.Sprint(seqNo),
		SequenceNo:       seqNo,
		BillDate:         input.BillDate,
		BillDueDate:      calculateDueDate(input.BillDate, supplier.PaymentTerms, supplier.PaymentTermsCustomDays),
		BillTotalAmount:  input.BillTotalAmount,
		RemainingBalance: input.BillTotalAmount,
		CurrentStatus:    BillStatusOpen,
		Notes:            input.Notes,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&bill).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

// applyBillPaymentTx moves the bill's paid/remaining balances and
// re-derives its status. Called by supplier payments inside their
// transaction.
func applyBillPaymentTx(tx *gorm.DB, ctx context.Context, businessId string, billId int, amount decimal.Decimal) (*Bill, error) {
	var bill Bill
	err := tx.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, billId).
		First(&bill).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	if bill.CurrentStatus == BillStatusVoid {
		return nil, NewDomainError(ErrKindInvalidTransition, "bill is void")
	}
	if bill.CurrentStatus == BillStatusPaid {
		return nil, NewDomainError(ErrKindInvalidTransition, "bill is already paid")
	}
	if amount.GreaterThan(bill.RemainingBalance) {
		return nil, errors.New("payment exceeds remaining balance")
	}

	bill.PaidAmount = bill.PaidAmount.Add(amount)
	bill.RemainingBalance = bill.RemainingBalance.Sub(amount)
	if bill.RemainingBalance.IsZero() {
		bill.CurrentStatus = BillStatusPaid
	} else {
		bill.CurrentStatus = BillStatusPartiallyPaid
	}

	err = tx.WithContext(ctx).Model(&bill).
		Updates(map[string]interface{}{
			"PaidAmount":       bill.PaidAmount,
			"RemainingBalance": bill.RemainingBalance,
			"CurrentStatus":    bill.CurrentStatus,
		}).Error
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// VoidBill cancels an unpaid bill.
func VoidBill(ctx context.Context, id int) (*Bill, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	bill, err := utils.FetchModel[Bill](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if !bill.PaidAmount.IsZero() {
		return nil, errors.New("bill has payments; refund them first")
	}
	if bill.CurrentStatus == BillStatusVoid {
		return nil, NewDomainError(ErrKindInvalidTransition, "bill is already void")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(bill).
		Update("CurrentStatus", BillStatusVoid).Error
	if err != nil {
		return nil, err
	}
	bill.CurrentStatus = BillStatusVoid
	return bill, nil
}

func GetBill(ctx context.Context, id int) (*Bill, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Bill](ctx, businessId, id)
}

func GetBills(ctx context.Context, supplierId *int, status *BillStatus) ([]*Bill, error) {
	db := config.GetDB()
	var results []*Bill

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
			return nil, errors.New("invalid bill status")
		}
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}
	err := dbCtx.Order("bill_date DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
