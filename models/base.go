package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// document number prefixes per module
var transactionPrefixes = map[string]string{
	"PurchaseOrder":   "PO-",
	"InventoryEntry":  "GR-",
	"SalesOrder":      "SO-",
	"Bill":            "BILL-",
	"WasteEntry":      "WST-",
	"CustomerPayment": "CP-",
	"SupplierPayment": "SP-",
}

func getTransactionPrefix(moduleName string) (string, error) {
	prefix, ok := transactionPrefixes[moduleName]
	if !ok {
		return "", errors.New("invalid module name")
	}
	return prefix, nil
}

func ParseDateString(dateString string, timezone string) (time.Time, error) {
	localTime, err := time.Parse("2006-01-02T15:04:05", dateString)
	if err != nil {
		return time.Time{}, err
	}

	if timezone == "" {
		timezone = "Asia/Yangon"
	}

	location, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}

	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		localTime.Hour(), localTime.Minute(), localTime.Second(), localTime.Nanosecond(),
		location,
	)

	return localTimeInZone.UTC(), nil
}

// GetProductStock returns the current on-hand quantity of a base product.
// Composed products carry no stock of their own; asking for one is a bug.
func GetProductStock(tx *gorm.DB, ctx context.Context, businessId string, productId int) (decimal.Decimal, error) {
	currentStock := decimal.Zero

	if err := tx.WithContext(ctx).Model(&StockSummary{}).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Select("current_qty").Scan(&currentStock).Error; err != nil {
		return currentStock, err
	}

	if currentStock.IsNegative() {
		return currentStock, fmt.Errorf("product %d stock is negative", productId)
	}
	return currentStock, nil
}

// ValidateProductStock checks stock inside the caller's transaction so
// uncommitted movements of the same request are visible.
func ValidateProductStock(tx *gorm.DB, ctx context.Context, businessId string, productId int, outQty decimal.Decimal) error {
	currentStock, err := GetProductStock(tx, ctx, businessId, productId)
	if err != nil {
		return err
	}

	if currentStock.LessThan(outQty) {
		return NewProductError(ErrKindInsufficientStock, productId,
			fmt.Sprintf("requested %s but only %s on hand", outQty.String(), currentStock.String()))
	}

	return nil
}

func businessTimezone(ctx context.Context, businessId string) string {
	business, err := GetBusinessById(ctx, businessId)
	if err != nil || business.Timezone == "" {
		return "Asia/Yangon"
	}
	return business.Timezone
}
