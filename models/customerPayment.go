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

// CustomerPayment settles a sales order (or, with no order reference,
// reduces the customer's running balance).
type CustomerPayment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id" binding:"required"`
	CustomerId    int             `gorm:"index;not null" json:"customer_id" binding:"required"`
	SalesOrderId  int             `gorm:"index;default:0" json:"sales_order_id"`
	PaymentNumber string          `gorm:"size:255;not null" json:"payment_number"`
	SequenceNo    int64           `gorm:"not null" json:"sequence_no"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaymentMode   PaymentMode     `gorm:"type:enum('Cash','Bank Transfer','Mobile Wallet','Card');not null;default:'Cash'" json:"payment_mode"`
	Remark        string          `gorm:"size:255" json:"remark"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewCustomerPayment struct {
	CustomerId   int             `json:"customer_id" binding:"required"`
	SalesOrderId int             `json:"sales_order_id"`
	PaymentDate  time.Time       `json:"payment_date"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	PaymentMode  PaymentMode     `json:"payment_mode" binding:"required"`
	Remark       string          `json:"remark"`
}

func CreateCustomerPayment(ctx context.Context, input *NewCustomerPayment) (*CustomerPayment, error) {
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
	if err := utils.ValidateResourceId[Customer](ctx, businessId, input.CustomerId); err != nil {
		return nil, errors.New("customer not found")
	}

	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}

	payment := CustomerPayment{
		BusinessId:   businessId,
		CustomerId:   input.CustomerId,
		SalesOrderId: input.SalesOrderId,
		PaymentDate:  paymentDate,
		Amount:       input.Amount,
		PaymentMode:  input.PaymentMode,
		Remark:       input.Remark,
	}
	seqNo, err := utils.GetSequence[CustomerPayment](ctx, businessId)
	if err != nil {
		return nil, err
	}
	prefix, err := getTransactionPrefix("CustomerPayment")
	if err != nil {
		return nil, err
	}
	payment.SequenceNo = seqNo
	payment.PaymentNumber = prefix + fmt.Sprint(seqNo)

	db := config.GetDB()
	tx := db.Begin()

	if input.SalesOrderId > 0 {
		salesOrder, err := applySalesOrderPaymentTx(tx, ctx, businessId, input.SalesOrderId, input.Amount)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if salesOrder.CustomerId != input.CustomerId {
			tx.Rollback()
			return nil, errors.New("sales order belongs to a different customer")
		}
	}

	if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func GetCustomerPayment(ctx context.Context, id int) (*CustomerPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[CustomerPayment](ctx, businessId, id)
}

func GetCustomerPayments(ctx context.Context, customerId *int, salesOrderId *int) ([]*CustomerPayment, error) {
	db := config.GetDB()
	var results []*CustomerPayment

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if customerId != nil && *customerId > 0 {
		dbCtx = dbCtx.Where("customer_id = ?", *customerId)
	}
	if salesOrderId != nil && *salesOrderId > 0 {
		dbCtx = dbCtx.Where("sales_order_id = ?", *salesOrderId)
	}
	err := dbCtx.Order("payment_date DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
