package models

import (
	"log"

	"bitbucket.org/mmdatafocus/resto_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &Currency{}, &User{},
		&ProductCategory{}, &ProductUnit{}, &Product{}, &ProductIngredient{}, &Image{},
		&Supplier{}, &Customer{}, &DiningTable{},
		&PurchaseOrder{}, &PurchaseOrderDetail{},
		&InventoryEntry{}, &InventoryEntryDetail{},
		&InventoryMovement{}, &StockSummary{},
		&SalesOrder{}, &SalesOrderDetail{}, &WasteEntry{},
		&Bill{}, &SupplierPayment{}, &CustomerPayment{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
