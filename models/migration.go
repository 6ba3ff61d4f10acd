package models

import (
	"log"

	"github.com/rasamasa/franchise_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Ingredient{}, &Outlet{},
		&InventoryTransaction{}, &TransactionCounter{},
		&OutletStock{}, &OutletStockIngredient{},
		&Order{}, &OrderItem{},
		&Sale{}, &SaleItem{},
		&ServiceRequest{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
