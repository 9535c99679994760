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

// WasteEntry records spoilage or loss for one base product. Like goods
// receipts it is a source document for the movement ledger and is never
// edited after the fact.
type WasteEntry struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id" binding:"required"`
	ProductId    int             `gorm:"index;not null" json:"product_id" binding:"required"`
	EntryNumber  string          `gorm:"size:255;not null" json:"entry_number"`
	SequenceNo   int64           `gorm:"not null" json:"sequence_no"`
	Qty          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Reason       WasteReason     `gorm:"type:enum('Spoilage','Breakage','Expiry','Preparation','Other');not null" json:"reason"`
	Remark       string          `gorm:"size:255" json:"remark"`
	RecordedById int             `gorm:"not null" json:"recorded_by_id"`
	WasteDate    time.Time       `gorm:"not null" json:"waste_date"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewWasteEntry struct {
	ProductId int             `json:"product_id" binding:"required"`
	Qty       decimal.Decimal `json:"qty" binding:"required"`
	Reason    WasteReason     `json:"reason" binding:"required"`
	Remark    string          `json:"remark"`
	WasteDate time.Time       `json:"waste_date"`
}

func (w *WasteEntry) BeforeUpdate(tx *gorm.DB) error {
	return NewDomainError(ErrKindImmutableRecord, "waste entries cannot be updated")
}

func (w *WasteEntry) BeforeDelete(tx *gorm.DB) error {
	return NewDomainError(ErrKindImmutableRecord, "waste entries cannot be deleted")
}

// CreateWasteEntry writes the entry and its WASTE movement in one
// transaction; the ledger rejects it with InsufficientStock when the
// product balance would go negative.
func CreateWasteEntry(ctx context.Context, input *NewWasteEntry) (*WasteEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if !input.Qty.IsPositive() {
		return nil, errors.New("waste qty must be positive")
	}
	if !input.Reason.IsValid() {
		return nil, errors.New("invalid waste reason")
	}
	product, err := utils.FetchModel[Product](ctx, businessId, input.ProductId)
	if err != nil {
		return nil, NewProductError(ErrKindDanglingReference, input.ProductId, "product not found")
	}
	if product.Type != ProductTypeBase {
		return nil, errors.New("only base products can be wasted")
	}

	lock, err := utils.ProductLock(ctx, businessId, input.ProductId, "wasteEntry", "CreateWasteEntry")
	if err != nil {
		return nil, err
	}
	defer lock.Release(ctx)

	wasteDate := input.WasteDate
	if wasteDate.IsZero() {
		wasteDate = time.Now().UTC()
	}

	entry := WasteEntry{
		BusinessId:   businessId,
		ProductId:    input.ProductId,
		Qty:          input.Qty,
		Reason:       input.Reason,
		Remark:       input.Remark,
		RecordedById: userId,
		WasteDate:    wasteDate,
	}
	seqNo, err := utils.GetSequence[WasteEntry](ctx, businessId)
	if err != nil {
		return nil, err
	}
	prefix, err := getTransactionPrefix("WasteEntry")
	if err != nil {
		return nil, err
	}
	entry.SequenceNo = seqNo
	entry.EntryNumber = prefix + fmt.Sprint(seqNo)

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	_, err = appendMovementTx(tx, ctx, businessId, &NewInventoryMovement{
		ProductId:     entry.ProductId,
		Kind:          MovementKindWaste,
		Qty:           entry.Qty.Neg(),
		ReferenceType: MovementReferenceWasteEntry,
		ReferenceId:   entry.ID,
		EffectiveDate: wasteDate,
		Remark:        string(entry.Reason),
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func GetWasteEntry(ctx context.Context, id int) (*WasteEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[WasteEntry](ctx, businessId, id)
}

func GetWasteEntries(ctx context.Context, productId *int, reason *WasteReason) ([]*WasteEntry, error) {
	db := config.GetDB()
	var results []*WasteEntry

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if productId != nil && *productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *productId)
	}
	if reason != nil && *reason != "" {
		if !reason.IsValid() {
			return nil, errors.New("invalid waste reason")
		}
		dbCtx = dbCtx.Where("reason = ?", *reason)
	}
	err := dbCtx.Order("waste_date DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
