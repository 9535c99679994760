package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"github.com/shopspring/decimal"
)

type Supplier struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	BusinessId             string          `gorm:"index;not null" json:"business_id" binding:"required"`
	Name                   string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Email                  string          `gorm:"size:100" json:"email"`
	Phone                  string          `gorm:"size:20" json:"phone"`
	Mobile                 string          `gorm:"size:20" json:"mobile"`
	Address                string          `gorm:"size:255" json:"address"`
	PaymentTerms           PaymentTerms    `gorm:"type:enum('Net15', 'Net30', 'Net45', 'Net60', 'DueMonthEnd', 'DueOnReceipt', 'Custom');not null;default:'DueOnReceipt'" json:"payment_terms" binding:"required"`
	PaymentTermsCustomDays int             `gorm:"default:0" json:"payment_terms_custom_days"`
	Notes                  string          `gorm:"type:text" json:"notes"`
	IsActive               *bool           `gorm:"not null;default:true" json:"is_active"`
	OpeningBalance         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_balance"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name                   string          `json:"name" binding:"required"`
	Email                  string          `json:"email"`
	Phone                  string          `json:"phone"`
	Mobile                 string          `json:"mobile"`
	Address                string          `json:"address"`
	PaymentTerms           PaymentTerms    `json:"payment_terms" binding:"required"`
	PaymentTermsCustomDays int             `json:"payment_terms_custom_days"`
	Notes                  string          `json:"notes"`
	OpeningBalance         decimal.Decimal `json:"opening_balance"`
}

func (s Supplier) GetBusinessId() string {
	return s.BusinessId
}

const supplierOpeningBalanceBillNumber = "Supplier Opening Balance"

// validate input for both create & update. (id = 0 for create)
func (input *NewSupplier) validate(ctx context.Context, businessId string, id int) error {
	if !input.PaymentTerms.IsValid() {
		return errors.New("invalid payment terms")
	}
	if input.PaymentTerms == PaymentTermsCustom && input.PaymentTermsCustomDays <= 0 {
		return errors.New("custom payment terms require custom days")
	}
	if input.OpeningBalance.IsNegative() {
		return errors.New("opening balance cannot be negative")
	}
	// validate unique name
	if err := utils.ValidateUnique[Supplier](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	// validate email
	if input.Email != "" {
		if !utils.IsValidEmail(input.Email) {
			return errors.New("invalid email")
		}
		if err := utils.ValidateUnique[Supplier](ctx, businessId, "email", input.Email, id); err != nil {
			return err
		}
	}
	// validate phone
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, "MM"); err != nil {
			return err
		}
		if err := utils.ValidateUnique[Supplier](ctx, businessId, "phone", input.Phone, id); err != nil {
			return err
		}
	}
	if input.Mobile != "" {
		if err := utils.ValidatePhoneNumber(input.Mobile, "MM"); err != nil {
			return err
		}
	}
	return nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	supplier := Supplier{
		BusinessId:             businessId,
		Name:                   input.Name,
		Email:                  input.Email,
		Phone:                  input.Phone,
		Mobile:                 input.Mobile,
		Address:                input.Address,
		PaymentTerms:           input.PaymentTerms,
		PaymentTermsCustomDays: input.PaymentTermsCustomDays,
		Notes:                  input.Notes,
		IsActive:               utils.NewTrue(),
		OpeningBalance:         input.OpeningBalance,
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&supplier).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// opening balance enters AP as a bill so supplier payments can settle it
	if !input.OpeningBalance.IsZero() {
		if err := createOpeningBalanceBill(tx, ctx, businessId, &supplier); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	oldSupplier, err := utils.FetchModel[Supplier](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}
	if !input.OpeningBalance.Equal(oldSupplier.OpeningBalance) {
		return nil, errors.New("opening balance cannot be changed")
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(oldSupplier).
		Updates(map[string]interface{}{
			"Name":                   input.Name,
			"Email":                  input.Email,
			"Phone":                  input.Phone,
			"Mobile":                 input.Mobile,
			"Address":                input.Address,
			"PaymentTerms":           input.PaymentTerms,
			"PaymentTermsCustomDays": input.PaymentTermsCustomDays,
			"Notes":                  input.Notes,
		}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := RemoveRedisBoth(*oldSupplier); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return oldSupplier, nil
}

func DeleteSupplier(ctx context.Context, id int) (*Supplier, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[Supplier](ctx, businessId, id)
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	count, err := utils.ResourceCountWhere[Product](ctx, businessId, "supplier_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("product associated with supplier exists")
	}

	count, err = utils.ResourceCountWhere[PurchaseOrder](ctx, businessId, "supplier_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("purchase order associated with supplier exists")
	}

	count, err = utils.ResourceCountWhere[Bill](ctx, businessId, "supplier_id = ? AND bill_number <> ?", id, supplierOpeningBalanceBillNumber)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("bill associated with supplier exists")
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(&result).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if !result.OpeningBalance.IsZero() {
		err = tx.WithContext(ctx).
			Delete(&Bill{}, "business_id = ? AND supplier_id = ? AND bill_number = ?",
				businessId, result.ID, supplierOpeningBalanceBillNumber).Error
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := RemoveRedisBoth(*result); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	return GetResource[Supplier](ctx, id)
}

func GetSuppliers(ctx context.Context, name *string) ([]*Supplier, error) {
	db := config.GetDB()
	var results []*Supplier

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveSupplier(ctx context.Context, id int, isActive bool) (*Supplier, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return ToggleActiveModel[Supplier](ctx, businessId, id, isActive)
}

// GetTotalOutstandingPayable sums the remaining balance of the
// supplier's open bills.
func GetTotalOutstandingPayable(ctx context.Context, supplierId int) (*decimal.Decimal, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var totalOutstanding decimal.Decimal

	status := []string{
		string(BillStatusOpen),
		string(BillStatusPartiallyPaid),
	}
	result := db.WithContext(ctx).Model(&Bill{}).
		Where("business_id = ? AND supplier_id = ?", businessId, supplierId).
		Where("current_status IN (?)", status).
		Select("COALESCE(SUM(remaining_balance), 0)").
		Scan(&totalOutstanding)
	if result.Error != nil {
		return nil, result.Error
	}
	return &totalOutstanding, nil
}
