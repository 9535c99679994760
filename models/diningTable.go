package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"gorm.io/gorm"
)

type DiningTable struct {
	ID         int         `gorm:"primary_key" json:"id"`
	BusinessId string      `gorm:"index;not null" json:"business_id" binding:"required"`
	Number     string      `gorm:"size:20;not null" json:"number" binding:"required"`
	Seats      int         `gorm:"default:0" json:"seats"`
	Status     TableStatus `gorm:"type:enum('Available', 'Occupied', 'Reserved');not null;default:'Available'" json:"status"`
	IsActive   *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDiningTable struct {
	Number string `json:"number" binding:"required"`
	Seats  int    `json:"seats"`
}

func (t DiningTable) GetBusinessId() string {
	return t.BusinessId
}

// validate input for both create & update. (id = 0 for create)
func (input *NewDiningTable) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[DiningTable](ctx, businessId, id); err != nil {
			return err
		}
	}
	if input.Seats < 0 {
		return errors.New("seats cannot be negative")
	}
	if err := utils.ValidateUnique[DiningTable](ctx, businessId, "number", input.Number, id); err != nil {
		return err
	}
	return nil
}

func CreateDiningTable(ctx context.Context, input *NewDiningTable) (*DiningTable, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	diningTable := DiningTable{
		BusinessId: businessId,
		Number:     input.Number,
		Seats:      input.Seats,
		Status:     TableStatusAvailable,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&diningTable).Error; err != nil {
		return nil, err
	}
	return &diningTable, nil
}

func UpdateDiningTable(ctx context.Context, id int, input *NewDiningTable) (*DiningTable, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	diningTable, err := utils.FetchModel[DiningTable](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&diningTable).Updates(map[string]interface{}{
		"Number": input.Number,
		"Seats":  input.Seats,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*diningTable); err != nil {
		return nil, err
	}
	return diningTable, nil
}

func DeleteDiningTable(ctx context.Context, id int) (*DiningTable, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[DiningTable](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if result.Status == TableStatusOccupied {
		return nil, errors.New("table is occupied")
	}

	count, err := utils.ResourceCountWhere[SalesOrder](ctx, businessId, "dining_table_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("sales order associated with table exists")
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

func GetDiningTable(ctx context.Context, id int) (*DiningTable, error) {
	return GetResource[DiningTable](ctx, id)
}

func GetDiningTables(ctx context.Context, status *TableStatus) ([]*DiningTable, error) {
	db := config.GetDB()
	var results []*DiningTable

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if status != nil && *status != "" {
		if !status.IsValid() {
			return nil, errors.New("invalid table status")
		}
		dbCtx = dbCtx.Where("status = ?", status)
	}
	if err := dbCtx.Order("number").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveDiningTable(ctx context.Context, id int, isActive bool) (*DiningTable, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return ToggleActiveModel[DiningTable](ctx, businessId, id, isActive)
}

// SetTableStatus moves a table between Available, Reserved and Occupied.
// Sales orders call the tx variant so seating and order state move together.
func SetTableStatus(ctx context.Context, id int, status TableStatus) (*DiningTable, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	tx := db.Begin()
	diningTable, err := setTableStatusTx(tx, ctx, businessId, id, status)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return diningTable, nil
}

func setTableStatusTx(tx *gorm.DB, ctx context.Context, businessId string, id int, status TableStatus) (*DiningTable, error) {
	if !status.IsValid() {
		return nil, errors.New("invalid table status")
	}

	var diningTable DiningTable
	err := tx.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, id).
		First(&diningTable).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	if diningTable.Status == status {
		return &diningTable, nil
	}

	err = tx.WithContext(ctx).Model(&diningTable).
		UpdateColumn("status", status).Error
	if err != nil {
		return nil, err
	}
	diningTable.Status = status

	if err := RemoveRedisBoth(diningTable); err != nil {
		return nil, err
	}
	return &diningTable, nil
}
