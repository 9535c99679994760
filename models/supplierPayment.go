package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"github.com/shopspring/decimal"
)

// SupplierPayment settles a bill, partially or in full.
type SupplierPayment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id" binding:"required"`
	SupplierId    int             `gorm:"index;not null" json:"supplier_id" binding:"required"`
	BillId        int             `gorm:"index;not null" json:"bill_id" binding:"required"`
	PaymentNumber string          `gorm:"size:255;not null" json:"payment_number"`
	SequenceNo    int64           `gorm:"not null" json:"sequence_no"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaymentMode   PaymentMode     `gorm:"type:enum('Cash','Bank Transfer','Mobile Wallet','Card');not null;default:'Cash'" json:"payment_mode"`
	Remark        string          `gorm:"size:255" json:"remark"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewSupplierPayment struct {
	BillId      int             `json:"bill_id" binding:"required"`
	PaymentDate time.Time       `json:"payment_date"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	PaymentMode PaymentMode     `json:"payment_mode" binding:"required"`
	Remark      string          `json:"remark"`
}

func CreateSupplierPayment(ctx context.Context, input *NewSupplierPayment) (*SupplierPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if !input.Amount.IsPositive() {
		return nil, errors.New("payment amount must be positive")
	}
	if !input.PaymentMode.IsValid() {
		return nil, errors.New("invalid payment mode")
	}

	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}

	db := config.GetDB()
	tx := db.Begin()

	bill, err := applyBillPaymentTx(tx, ctx, businessId, input.BillId, input.Amount)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	payment := SupplierPayment{
		BusinessId:  businessId,
		SupplierId:  bill.SupplierId,
		BillId:      bill.ID,
		PaymentDate: paymentDate,
		Amount:      input.Amount,
		PaymentMode: input.PaymentMode,
		Remark:      input.Remark,
	}
	seqNo, err := utils.GetSequence[SupplierPayment](ctx, businessId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	prefix, err := getTransactionPrefix("SupplierPayment")
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	payment.SequenceNo = seqNo
	payment.PaymentNumber = prefix + fmt.Sprint(seqNo)

	if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func GetSupplierPayment(ctx context.Context, id int) (*SupplierPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[SupplierPayment](ctx, businessId, id)
}

func GetSupplierPayments(ctx context.Context, supplierId *int, billId *int) ([]*SupplierPayment, error) {
	db := config.GetDB()
	var results []*SupplierPayment

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if supplierId != nil && *supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", *supplierId)
	}
	if billId != nil && *billId > 0 {
		dbCtx = dbCtx.Where("bill_id = ?", *billId)
	}
	err := dbCtx.Order("payment_date DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
