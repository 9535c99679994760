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

type Product struct {
	ID            int                  `gorm:"primary_key" json:"id"`
	BusinessId    string               `gorm:"index;not null" json:"business_id"`
	Name          string               `gorm:"size:100;not null" json:"name" binding:"required"`
	Description   string               `gorm:"type:text" json:"description"`
	Type          ProductType          `gorm:"type:enum('B','C');default:B" json:"type"`
	CategoryId    int                  `gorm:"index;not null;default:0" json:"category_id"`
	UnitId        int                  `json:"product_unit_id"`
	SupplierId    int                  `json:"supplier_id"`
	Sku           string               `gorm:"size:100" json:"sku"`
	Barcode       string               `gorm:"index;size:100" json:"barcode"`
	SalesPrice    decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"sales_price"`
	PurchasePrice decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	// Stock is authoritative for base products only and is maintained
	// exclusively through the movement ledger. Composed products always
	// carry zero here; their availability is derived.
	Stock         decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"stock"`
	Ingredients   []*ProductIngredient `gorm:"foreignkey:ProductId" json:"ingredients"`
	Images        []*Image             `gorm:"polymorphic:Reference" json:"images"`
	IsActive      *bool                `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Product) GetBusinessId() string {
	return p.BusinessId
}

// ProductIngredient is one recipe line of a composed product: making one
// unit of ProductId consumes Qty units of IngredientId.
type ProductIngredient struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	ProductId    int             `gorm:"index;not null" json:"product_id"`
	IngredientId int             `gorm:"index;not null" json:"ingredient_id"`
	Qty          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Unit         string          `gorm:"size:20" json:"unit"`
	WastePercent decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"waste_percent"`
	SortOrder    int             `gorm:"default:0" json:"sort_order"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewProduct struct {
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	Type          ProductType     `json:"type" binding:"required"`
	CategoryId    int             `json:"category_id"`
	UnitId        int             `json:"product_unit_id"`
	SupplierId    int             `json:"supplier_id"`
	Sku           string          `json:"sku"`
	Barcode       string          `json:"barcode"`
	SalesPrice    decimal.Decimal `json:"sales_price"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Ingredients   []NewIngredient `json:"ingredients"`
	Images        []*NewImage     `json:"image_urls"`
	OpeningStock  decimal.Decimal `json:"opening_stock"`
}

type NewIngredient struct {
	IngredientId int             `json:"ingredient_id" binding:"required"`
	Qty          decimal.Decimal `json:"qty" binding:"required"`
	Unit         string          `json:"unit"`
	WastePercent decimal.Decimal `json:"waste_percent"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewProduct) validate(ctx context.Context, businessId string, id int) error {
	if !input.Type.IsValid() {
		return errors.New("invalid product type")
	}
	// name
	if err := utils.ValidateUnique[Product](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	// category
	if input.CategoryId > 0 {
		if err := utils.ValidateResourceId[ProductCategory](ctx, businessId, input.CategoryId); err != nil {
			return errors.New("category not found")
		}
	}
	// unit
	if input.UnitId > 0 {
		if err := utils.ValidateResourceId[ProductUnit](ctx, businessId, input.UnitId); err != nil {
			return errors.New("unit not found")
		}
	}
	// supplier
	if input.SupplierId > 0 {
		if err := utils.ValidateResourceId[Supplier](ctx, businessId, input.SupplierId); err != nil {
			return errors.New("supplier not found")
		}
	}

	switch input.Type {
	case ProductTypeBase:
		if len(input.Ingredients) > 0 {
			return NewDomainError(ErrKindInvalidRecipe, "base product cannot have a recipe")
		}
	case ProductTypeComposed:
		if len(input.Ingredients) == 0 {
			return NewDomainError(ErrKindInvalidRecipe, "composed product requires at least one ingredient")
		}
		if !input.OpeningStock.IsZero() {
			return errors.New("composed product cannot carry opening stock")
		}
		seen := make(map[int]bool, len(input.Ingredients))
		for _, ing := range input.Ingredients {
			if !ing.Qty.IsPositive() {
				return NewProductError(ErrKindInvalidRecipe, ing.IngredientId, "ingredient qty must be positive")
			}
			if ing.IngredientId == id {
				return NewProductError(ErrKindCyclicRecipe, id, "product cannot be its own ingredient")
			}
			if seen[ing.IngredientId] {
				return NewProductError(ErrKindInvalidRecipe, ing.IngredientId, "duplicate ingredient")
			}
			seen[ing.IngredientId] = true
			if err := utils.ValidateResourceId[Product](ctx, businessId, ing.IngredientId); err != nil {
				return NewProductError(ErrKindDanglingReference, ing.IngredientId, "ingredient not found")
			}
		}
	}

	if input.OpeningStock.IsNegative() {
		return errors.New("opening stock cannot be negative")
	}
	return nil
}

// checkRecipeAcyclic walks the would-be recipe graph from the updated
// product and fails if it can reach back to itself.
func checkRecipeAcyclic(ctx context.Context, businessId string, productId int, ingredients []NewIngredient) error {
	db := config.GetDB()

	var walk func(id int, path map[int]bool) error
	walk = func(id int, path map[int]bool) error {
		if path[id] {
			return NewProductError(ErrKindCyclicRecipe, id, "recipe cycle detected")
		}
		path[id] = true
		defer delete(path, id)

		var children []int
		if err := db.WithContext(ctx).Model(&ProductIngredient{}).
			Where("business_id = ? AND product_id = ?", businessId, id).
			Select("ingredient_id").Scan(&children).Error; err != nil {
			return err
		}
		for _, child := range children {
			if err := walk(child, path); err != nil {
				return err
			}
		}
		return nil
	}

	path := map[int]bool{productId: true}
	for _, ing := range ingredients {
		if err := walk(ing.IngredientId, path); err != nil {
			return err
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()

	product := Product{
		BusinessId:    businessId,
		Name:          input.Name,
		Description:   input.Description,
		Type:          input.Type,
		CategoryId:    input.CategoryId,
		UnitId:        input.UnitId,
		SupplierId:    input.SupplierId,
		Sku:           input.Sku,
		Barcode:       input.Barcode,
		SalesPrice:    input.SalesPrice,
		PurchasePrice: input.PurchasePrice,
		IsActive:      utils.NewTrue(),
	}
	if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := replaceIngredients(tx, ctx, businessId, product.ID, input.Ingredients); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createImages(tx, ctx, businessId, product.ID, "products", input.Images); err != nil {
		tx.Rollback()
		return nil, err
	}

	// opening stock becomes the first ledger movement
	if input.Type == ProductTypeBase && input.OpeningStock.IsPositive() {
		movement := NewInventoryMovement{
			ProductId:     product.ID,
			Kind:          MovementKindAdjustment,
			Qty:           input.OpeningStock,
			ReferenceType: MovementReferenceOpeningStock,
			ReferenceId:   product.ID,
			Remark:        "opening stock",
		}
		if _, err := appendMovementTx(tx, ctx, businessId, &movement); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// caching
	if err := product.RemoveAllRedis(); err != nil {
		return nil, err
	}
	return &product, nil
}

func replaceIngredients(tx *gorm.DB, ctx context.Context, businessId string, productId int, inputs []NewIngredient) error {
	if err := tx.WithContext(ctx).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Delete(&ProductIngredient{}).Error; err != nil {
		return err
	}
	for i, ing := range inputs {
		row := ProductIngredient{
			BusinessId:   businessId,
			ProductId:    productId,
			IngredientId: ing.IngredientId,
			Qty:          ing.Qty,
			Unit:         ing.Unit,
			WastePercent: ing.WastePercent,
			SortOrder:    i,
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// a product's kind is fixed at creation; movements and recipes
	// referencing it rely on that
	if product.Type != input.Type {
		return nil, errors.New("product type cannot be changed")
	}

	if input.Type == ProductTypeComposed {
		if err := checkRecipeAcyclic(ctx, businessId, id, input.Ingredients); err != nil {
			return nil, err
		}
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&product).Updates(map[string]interface{}{
		"Name":          input.Name,
		"Description":   input.Description,
		"CategoryId":    input.CategoryId,
		"UnitId":        input.UnitId,
		"SupplierId":    input.SupplierId,
		"Sku":           input.Sku,
		"Barcode":       input.Barcode,
		"SalesPrice":    input.SalesPrice,
		"PurchasePrice": input.PurchasePrice,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := replaceIngredients(tx, ctx, businessId, id, input.Ingredients); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := RemoveRedisBoth(*product); err != nil {
		return nil, err
	}
	return utils.FetchModel[Product](ctx, businessId, id, "Ingredients")
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// don't delete if used as an ingredient
	count, err := utils.ResourceCountWhere[ProductIngredient](ctx, businessId, "ingredient_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("used as an ingredient")
	}

	// don't delete if ledger movements exist
	count, err = utils.ResourceCountWhere[InventoryMovement](ctx, businessId, "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("inventory movements exist; deactivate instead")
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).
		Where("business_id = ? AND product_id = ?", businessId, id).
		Delete(&ProductIngredient{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := RemoveRedisBoth(*product); err != nil {
		return nil, err
	}
	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Product](ctx, businessId, id, "Ingredients", "Images")
}

func GetProducts(ctx context.Context, name *string, productType *ProductType, categoryId *int) ([]*Product, error) {
	db := config.GetDB()
	var results []*Product

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if productType != nil && *productType != "" {
		dbCtx = dbCtx.Where("type = ?", *productType)
	}
	if categoryId != nil && *categoryId > 0 {
		dbCtx = dbCtx.Where("category_id = ?", *categoryId)
	}
	err := dbCtx.Preload("Ingredients").Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return ToggleActiveModel[Product](ctx, businessId, id, isActive)
}

// GetIngredientProducts returns the recipe of a composed product with the
// ingredient rows preloaded.
func GetIngredientProducts(ctx context.Context, productId int) ([]*ProductIngredient, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	db := config.GetDB()
	var results []*ProductIngredient
	if err := db.WithContext(ctx).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func productName(ctx context.Context, businessId string, productId int) string {
	db := config.GetDB()
	var name string
	if err := db.WithContext(ctx).Model(&Product{}).
		Where("business_id = ? AND id = ?", businessId, productId).
		Select("name").Scan(&name).Error; err != nil || name == "" {
		return fmt.Sprintf("product %d", productId)
	}
	return name
}
