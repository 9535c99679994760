package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type StockReportRow struct {
	ProductId  int             `json:"product_id"`
	Name       string          `json:"name"`
	Type       ProductType     `json:"type"`
	Stock      decimal.Decimal `json:"stock"`
	Available  int64           `json:"available"`
	IsLowStock bool            `json:"is_low_stock"`
}

// GetStockReport lists every catalog product with its ledger balance
// and computed availability. lowStockBelow marks products whose
// availability falls under the threshold.
func GetStockReport(ctx context.Context, lowStockBelow decimal.Decimal) ([]*StockReportRow, error) {
	snapshot, err := LoadCatalogSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	opts := AvailabilityOptions{WasteAware: config.WasteAwareAvailability()}
	availability, err := AvailableStocks(snapshot, opts)
	if err != nil {
		return nil, err
	}

	rows := make([]*StockReportRow, 0, snapshot.Len())
	for _, product := range snapshot.Products() {
		available := availability[product.ID]
		rows = append(rows, &StockReportRow{
			ProductId:  product.ID,
			Name:       product.Name,
			Type:       product.Type,
			Stock:      product.Stock,
			Available:  available,
			IsLowStock: decimal.NewFromInt(available).LessThan(lowStockBelow),
		})
	}
	return rows, nil
}

type AgingBucket string

const (
	AgingCurrent AgingBucket = "Current"
	Aging1To30   AgingBucket = "1-30"
	Aging31To60  AgingBucket = "31-60"
	Aging61To90  AgingBucket = "61-90"
	AgingOver90  AgingBucket = "90+"
)

func agingBucket(dueDate *time.Time, asOf time.Time) AgingBucket {
	if dueDate == nil || !asOf.After(*dueDate) {
		return AgingCurrent
	}
	days := int(asOf.Sub(*dueDate).Hours() / 24)
	switch {
	case days <= 30:
		return Aging1To30
	case days <= 60:
		return Aging31To60
	case days <= 90:
		return Aging61To90
	default:
		return AgingOver90
	}
}

type ApAgingRow struct {
	SupplierId   int             `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	Current      decimal.Decimal `json:"current"`
	Days1To30    decimal.Decimal `json:"days_1_30"`
	Days31To60   decimal.Decimal `json:"days_31_60"`
	Days61To90   decimal.Decimal `json:"days_61_90"`
	DaysOver90   decimal.Decimal `json:"days_over_90"`
	Total        decimal.Decimal `json:"total"`
}

// GetApAgingReport buckets every open bill balance by how far past due
// it is, per supplier.
func GetApAgingReport(ctx context.Context) ([]*ApAgingRow, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var bills []Bill
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Where("current_status IN (?)", []string{
			string(BillStatusOpen),
			string(BillStatusPartiallyPaid),
		}).
		Find(&bills).Error
	if err != nil {
		return nil, err
	}

	suppliers, err := GetSuppliers(ctx, nil)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(suppliers))
	for _, supplier := range suppliers {
		names[supplier.ID] = supplier.Name
	}

	// age from the start of today in the business timezone so a bill's
	// bucket is stable for the whole business day
	asOf, err := utils.ConvertToDate(time.Now(), businessTimezone(ctx, businessId))
	if err != nil {
		return nil, err
	}
	bySupplier := make(map[int]*ApAgingRow)
	order := []int{}
	for _, bill := range bills {
		row, ok := bySupplier[bill.SupplierId]
		if !ok {
			row = &ApAgingRow{SupplierId: bill.SupplierId, SupplierName: names[bill.SupplierId]}
			bySupplier[bill.SupplierId] = row
			order = append(order, bill.SupplierId)
		}
		amount := bill.RemainingBalance
		switch agingBucket(bill.BillDueDate, asOf) {
		case AgingCurrent:
			row.Current = row.Current.Add(amount)
		case Aging1To30:
			row.Days1To30 = row.Days1To30.Add(amount)
		case Aging31To60:
			row.Days31To60 = row.Days31To60.Add(amount)
		case Aging61To90:
			row.Days61To90 = row.Days61To90.Add(amount)
		case AgingOver90:
			row.DaysOver90 = row.DaysOver90.Add(amount)
		}
		row.Total = row.Total.Add(amount)
	}

	rows := make([]*ApAgingRow, 0, len(order))
	for _, supplierId := range order {
		rows = append(rows, bySupplier[supplierId])
	}
	return rows, nil
}

type ArAgingRow struct {
	CustomerId   int             `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Current      decimal.Decimal `json:"current"`
	Days1To30    decimal.Decimal `json:"days_1_30"`
	Days31To60   decimal.Decimal `json:"days_31_60"`
	Days61To90   decimal.Decimal `json:"days_61_90"`
	DaysOver90   decimal.Decimal `json:"days_over_90"`
	Total        decimal.Decimal `json:"total"`
}

// GetArAgingReport buckets open sales order balances by order date.
// Dining orders have no payment terms, so age runs from the order date
// itself.
func GetArAgingReport(ctx context.Context) ([]*ArAgingRow, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var orders []SalesOrder
	err := db.WithContext(ctx).
		Where("business_id = ? AND customer_id > 0", businessId).
		Where("current_status IN (?)", []string{
			string(SalesOrderStatusConfirmed),
			string(SalesOrderStatusCompleted),
		}).
		Where("remaining_balance > 0").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	customers, err := GetCustomers(ctx, nil)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(customers))
	openings := make(map[int]decimal.Decimal, len(customers))
	for _, customer := range customers {
		names[customer.ID] = customer.Name
		openings[customer.ID] = customer.OpeningBalance
	}

	asOf, err := utils.ConvertToDate(time.Now(), businessTimezone(ctx, businessId))
	if err != nil {
		return nil, err
	}
	byCustomer := make(map[int]*ArAgingRow)
	order := []int{}
	rowFor := func(customerId int) *ArAgingRow {
		row, ok := byCustomer[customerId]
		if !ok {
			row = &ArAgingRow{CustomerId: customerId, CustomerName: names[customerId]}
			byCustomer[customerId] = row
			order = append(order, customerId)
		}
		return row
	}

	for _, salesOrder := range orders {
		row := rowFor(salesOrder.CustomerId)
		amount := salesOrder.RemainingBalance
		orderDate := salesOrder.OrderDate
		switch agingBucket(&orderDate, asOf) {
		case AgingCurrent:
			row.Current = row.Current.Add(amount)
		case Aging1To30:
			row.Days1To30 = row.Days1To30.Add(amount)
		case Aging31To60:
			row.Days31To60 = row.Days31To60.Add(amount)
		case Aging61To90:
			row.Days61To90 = row.Days61To90.Add(amount)
		case AgingOver90:
			row.DaysOver90 = row.DaysOver90.Add(amount)
		}
		row.Total = row.Total.Add(amount)
	}

	// opening balances age as over-90 receivables
	for customerId, opening := range openings {
		if opening.IsZero() {
			continue
		}
		row := rowFor(customerId)
		row.DaysOver90 = row.DaysOver90.Add(opening)
		row.Total = row.Total.Add(opening)
	}

	rows := make([]*ArAgingRow, 0, len(order))
	for _, customerId := range order {
		rows = append(rows, byCustomer[customerId])
	}
	return rows, nil
}

// ExportStockReportXlsx streams the stock report as an xlsx workbook.
func ExportStockReportXlsx(ctx context.Context, w io.Writer, lowStockBelow decimal.Decimal) error {
	rows, err := GetStockReport(ctx, lowStockBelow)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "Product")
	f.SetCellValue(sheetName, "B1", "Type")
	f.SetCellValue(sheetName, "C1", "Stock")
	f.SetCellValue(sheetName, "D1", "Available")
	f.SetCellValue(sheetName, "E1", "LowStock")

	// Add data
	for i, row := range rows {
		f.SetCellValue(sheetName, "A"+fmt.Sprint(i+2), row.Name)
		f.SetCellValue(sheetName, "B"+fmt.Sprint(i+2), string(row.Type))
		f.SetCellValue(sheetName, "C"+fmt.Sprint(i+2), row.Stock.String())
		f.SetCellValue(sheetName, "D"+fmt.Sprint(i+2), row.Available)
		f.SetCellValue(sheetName, "E"+fmt.Sprint(i+2), row.IsLowStock)
	}

	return f.Write(w)
}

// ExportApAgingXlsx streams the AP aging summary as an xlsx workbook.
func ExportApAgingXlsx(ctx context.Context, w io.Writer) error {
	rows, err := GetApAgingReport(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", "Supplier")
	f.SetCellValue(sheetName, "B1", "Current")
	f.SetCellValue(sheetName, "C1", "1-30")
	f.SetCellValue(sheetName, "D1", "31-60")
	f.SetCellValue(sheetName, "E1", "61-90")
	f.SetCellValue(sheetName, "F1", "90+")
	f.SetCellValue(sheetName, "G1", "Total")

	for i, row := range rows {
		f.SetCellValue(sheetName, "A"+fmt.Sprint(i+2), row.SupplierName)
		f.SetCellValue(sheetName, "B"+fmt.Sprint(i+2), row.Current.String())
		f.SetCellValue(sheetName, "C"+fmt.Sprint(i+2), row.Days1To30.String())
		f.SetCellValue(sheetName, "D"+fmt.Sprint(i+2), row.Days31To60.String())
		f.SetCellValue(sheetName, "E"+fmt.Sprint(i+2), row.Days61To90.String())
		f.SetCellValue(sheetName, "F"+fmt.Sprint(i+2), row.DaysOver90.String())
		f.SetCellValue(sheetName, "G"+fmt.Sprint(i+2), row.Total.String())
	}

	return f.Write(w)
}

// ExportArAgingXlsx streams the AR aging summary as an xlsx workbook.
func ExportArAgingXlsx(ctx context.Context, w io.Writer) error {
	rows, err := GetArAgingReport(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", "Customer")
	f.SetCellValue(sheetName, "B1", "Current")
	f.SetCellValue(sheetName, "C1", "1-30")
	f.SetCellValue(sheetName, "D1", "31-60")
	f.SetCellValue(sheetName, "E1", "61-90")
	f.SetCellValue(sheetName, "F1", "90+")
	f.SetCellValue(sheetName, "G1", "Total")

	for i, row := range rows {
		f.SetCellValue(sheetName, "A"+fmt.Sprint(i+2), row.CustomerName)
		f.SetCellValue(sheetName, "B"+fmt.Sprint(i+2), row.Current.String())
		f.SetCellValue(sheetName, "C"+fmt.Sprint(i+2), row.Days1To30.String())
		f.SetCellValue(sheetName, "D"+fmt.Sprint(i+2), row.Days31To60.String())
		f.SetCellValue(sheetName, "E"+fmt.Sprint(i+2), row.Days61To90.String())
		f.SetCellValue(sheetName, "F"+fmt.Sprint(i+2), row.DaysOver90.String())
		f.SetCellValue(sheetName, "G"+fmt.Sprint(i+2), row.Total.String())
	}

	return f.Write(w)
}
