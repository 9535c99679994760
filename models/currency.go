package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"gorm.io/gorm"
)

type Currency struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null" json:"business_id"`
	Name          string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Symbol        string    `gorm:"size:10;not null" json:"symbol" binding:"required"`
	DecimalPlaces int       `gorm:"default:0" json:"decimal_places"`
	IsActive      *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCurrency struct {
	Name          string `json:"name" binding:"required"`
	Symbol        string `json:"symbol" binding:"required"`
	DecimalPlaces int    `json:"decimal_places"`
}

func (input *NewCurrency) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateUnique[Currency](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateDefaultCurrency(tx *gorm.DB, ctx context.Context, businessId string) (*Currency, error) {
	currency := Currency{
		BusinessId:    businessId,
		Name:          "MMK",
		Symbol:        "K",
		DecimalPlaces: 0,
		IsActive:      utils.NewTrue(),
	}
	if err := tx.WithContext(ctx).Create(&currency).Error; err != nil {
		return nil, err
	}
	return &currency, nil
}

func CreateCurrency(ctx context.Context, input *NewCurrency) (*Currency, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	db := config.GetDB()
	currency := Currency{
		BusinessId:    businessId,
		Name:          input.Name,
		Symbol:        input.Symbol,
		DecimalPlaces: input.DecimalPlaces,
		IsActive:      utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&currency).Error; err != nil {
		return nil, err
	}
	return &currency, nil
}

func GetCurrency(ctx context.Context, id int) (*Currency, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var result Currency
	if err := db.WithContext(ctx).Where("business_id = ? AND id = ?", businessId, id).First(&result).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func GetCurrencies(ctx context.Context) ([]*Currency, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Currency
	if err := db.WithContext(ctx).Where("business_id = ?", businessId).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
