package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"github.com/shopspring/decimal"
)

type Customer struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BusinessId     string          `gorm:"index;not null" json:"business_id" binding:"required"`
	Name           string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Email          string          `gorm:"size:100" json:"email"`
	Phone          string          `gorm:"size:20" json:"phone"`
	Mobile         string          `gorm:"size:20" json:"mobile"`
	Address        string          `gorm:"size:255" json:"address"`
	Notes          string          `gorm:"type:text" json:"notes"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_balance"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name           string          `json:"name" binding:"required"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Mobile         string          `json:"mobile"`
	Address        string          `json:"address"`
	Notes          string          `json:"notes"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

func (c Customer) GetBusinessId() string {
	return c.BusinessId
}

func (input *NewCustomer) validate(ctx context.Context, businessId string, id int) error {
	if input.OpeningBalance.IsNegative() {
		return errors.New("opening balance cannot be negative")
	}
	if err := utils.ValidateUnique[Customer](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Email != "" {
		if !utils.IsValidEmail(input.Email) {
			return errors.New("invalid email")
		}
		if err := utils.ValidateUnique[Customer](ctx, businessId, "email", input.Email, id); err != nil {
			return err
		}
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, "MM"); err != nil {
			return err
		}
		if err := utils.ValidateUnique[Customer](ctx, businessId, "phone", input.Phone, id); err != nil {
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

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	customer := Customer{
		BusinessId:     businessId,
		Name:           input.Name,
		Email:          input.Email,
		Phone:          input.Phone,
		Mobile:         input.Mobile,
		Address:        input.Address,
		Notes:          input.Notes,
		IsActive:       utils.NewTrue(),
		OpeningBalance: input.OpeningBalance,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	customer, err := utils.FetchModel[Customer](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}
	if !input.OpeningBalance.Equal(customer.OpeningBalance) {
		return nil, errors.New("opening balance cannot be changed")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(customer).
		Updates(map[string]interface{}{
			"Name":    input.Name,
			"Email":   input.Email,
			"Phone":   input.Phone,
			"Mobile":  input.Mobile,
			"Address": input.Address,
			"Notes":   input.Notes,
		}).Error
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func DeleteCustomer(ctx context.Context, id int) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[Customer](ctx, businessId, id)
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	count, err := utils.ResourceCountWhere[SalesOrder](ctx, businessId, "customer_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("sales order associated with customer exists")
	}

	count, err = utils.ResourceCountWhere[CustomerPayment](ctx, businessId, "customer_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("payment associated with customer exists")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&result).Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*result); err != nil {
		return nil, err
	}
	return result, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	return GetResource[Customer](ctx, id)
}

func GetCustomers(ctx context.Context, name *string) ([]*Customer, error) {
	db := config.GetDB()
	var results []*Customer

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

func ToggleActiveCustomer(ctx context.Context, id int, isActive bool) (*Customer, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return ToggleActiveModel[Customer](ctx, businessId, id, isActive)
}

// GetTotalOutstandingReceivable sums what the customer still owes:
// opening balance, plus unpaid sales order balances, minus on-account
// payments (payments with no sales order reference).
func GetTotalOutstandingReceivable(ctx context.Context, customerId int) (*decimal.Decimal, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	customer, err := utils.FetchModel[Customer](ctx, businessId, customerId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var orderOutstanding decimal.Decimal
	result := db.WithContext(ctx).Model(&SalesOrder{}).
		Where("business_id = ? AND customer_id = ?", businessId, customerId).
		Where("current_status IN (?)", []string{
			string(SalesOrderStatusConfirmed),
			string(SalesOrderStatusCompleted),
		}).
		Select("COALESCE(SUM(remaining_balance), 0)").
		Scan(&orderOutstanding)
	if result.Error != nil {
		return nil, result.Error
	}

	var onAccountPaid decimal.Decimal
	result = db.WithContext(ctx).Model(&CustomerPayment{}).
		Where("business_id = ? AND customer_id = ? AND sales_order_id = 0", businessId, customerId).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&onAccountPaid)
	if result.Error != nil {
		return nil, result.Error
	}

	totalOutstanding := customer.OpeningBalance.Add(orderOutstanding).Sub(onAccountPaid)
	return &totalOutstanding, nil
}
