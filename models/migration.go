package models

import (
	"log"

	"github.com/grupovitrine/painel_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Sale{}, &SaleItem{}, &SaleReceipt{},
		&SalesGoal{}, &CashierGoal{},
		&SyncRun{}, &SyncError{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
