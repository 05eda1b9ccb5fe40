package models

import (
	"context"
	"time"

	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sale is one finalized upstream transaction. Sales are written only by the
// synchronization service and are immutable afterwards, except for bulk
// deletion by (store, date range).
type Sale struct {
	ID            int             `gorm:"primary_key" json:"id"`
	SaleCode      string          `gorm:"uniqueIndex:idx_sale_code_store,priority:1;size:64;not null" json:"sale_code"`
	StoreId       string          `gorm:"uniqueIndex:idx_sale_code_store,priority:2;index;size:50;not null" json:"store_id"`
	SaleDate      time.Time       `gorm:"index;not null" json:"sale_date"`
	TotalValue    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_value"`
	SellerName    string          `gorm:"size:255" json:"seller_name"`
	SellerKey     string          `gorm:"index;size:255" json:"-"`
	Status        string          `gorm:"size:50" json:"status"`
	PaymentMethod string          `gorm:"size:100" json:"payment_method"`
	Items         []SaleItem      `gorm:"foreignKey:SaleId;constraint:OnDelete:CASCADE" json:"items"`
	Receipts      []SaleReceipt   `gorm:"foreignKey:SaleId;constraint:OnDelete:CASCADE" json:"receipts"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	SaleId      int             `gorm:"index;not null" json:"sale_id"`
	ProductCode string          `gorm:"size:64" json:"product_code"`
	Description string          `gorm:"size:255" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// SaleReceipt is one payment-method settlement of a Sale. Split payments
// produce multiple receipts.
type SaleReceipt struct {
	ID            int             `gorm:"primary_key" json:"id"`
	SaleId        int             `gorm:"index;not null" json:"sale_id"`
	PaymentMethod string          `gorm:"index;size:50" json:"payment_method"`
	GrossValue    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gross_value"`
	NetValue      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_value"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// SellerKey keeps seller matching case/whitespace-insensitive.
func (s *Sale) BeforeSave(tx *gorm.DB) error {
	s.SellerKey = utils.NormalizeSellerName(s.SellerName)
	return nil
}

// GetSales returns sales filtered by store, seller (case/whitespace-
// insensitive full-name match) and an inclusive date range. Nil filters are
// skipped.
func GetSales(ctx context.Context, storeId string, sellerName string, start *time.Time, end *time.Time) ([]Sale, error) {
	db := config.GetDB().WithContext(ctx)
	query := db.Model(&Sale{})
	if storeId != "" {
		query = query.Where("store_id = ?", storeId)
	}
	if sellerName != "" {
		query = query.Where("seller_key = ?", utils.NormalizeSellerName(sellerName))
	}
	if start != nil {
		query = query.Where("sale_date >= ?", utils.DateOnly(*start))
	}
	if end != nil {
		query = query.Where("sale_date <= ?", utils.DateOnly(*end))
	}

	var sales []Sale
	if err := query.Order("sale_date").Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

// DeleteSalesByPeriod removes every sale of the store inside the inclusive
// range, cascading items and receipts in the same transaction.
func DeleteSalesByPeriod(ctx context.Context, storeId string, start time.Time, end time.Time) (int64, error) {
	var deleted int64
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int
		if err := tx.Model(&Sale{}).
			Where("store_id = ? AND sale_date >= ? AND sale_date <= ?", storeId, utils.DateOnly(start), utils.DateOnly(end)).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("sale_id IN ?", ids).Delete(&SaleItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sale_id IN ?", ids).Delete(&SaleReceipt{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&Sale{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	return deleted, err
}

func SaleExists(ctx context.Context, saleCode string, storeId string) (bool, error) {
	var count int64
	err := config.GetDB().WithContext(ctx).
		Model(&Sale{}).
		Where("sale_code = ? AND store_id = ?", saleCode, storeId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateSaleWithItemsAndReceipts persists one sale together with its children
// as a single transaction. Item and receipt totals are meaningless without
// their parent sale, so it is all or nothing.
func CreateSaleWithItemsAndReceipts(ctx context.Context, sale *Sale, items []SaleItem, receipts []SaleReceipt) (*Sale, error) {
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sale).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].SaleId = sale.ID
		}
		for i := range receipts {
			receipts[i].SaleId = sale.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		if len(receipts) > 0 {
			if err := tx.Create(&receipts).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sale.Items = items
	sale.Receipts = receipts
	return sale, nil
}

// MethodTotal is the per-payment-method rollup used for cashier goals.
type MethodTotal struct {
	PaymentMethod string          `json:"payment_method"`
	TotalGross    decimal.Decimal `json:"total_gross"`
	TotalNet      decimal.Decimal `json:"total_net"`
}

func GetReceiptTotalsByPaymentMethod(ctx context.Context, storeId string, start time.Time, end time.Time, methods []string) ([]MethodTotal, error) {
	db := config.GetDB().WithContext(ctx)
	query := db.Model(&SaleReceipt{}).
		Select("sale_receipts.payment_method, SUM(sale_receipts.gross_value) AS total_gross, SUM(sale_receipts.net_value) AS total_net").
		Joins("JOIN sales ON sales.id = sale_receipts.sale_id").
		Where("sales.sale_date >= ? AND sales.sale_date <= ?", utils.DateOnly(start), utils.DateOnly(end)).
		Group("sale_receipts.payment_method")
	if storeId != "" {
		query = query.Where("sales.store_id = ?", storeId)
	}
	if len(methods) > 0 {
		query = query.Where("sale_receipts.payment_method IN ?", methods)
	}

	var totals []MethodTotal
	if err := query.Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}

// DayTotal is one day-of-month bucket of historical sales, consumed by the
// pattern estimator.
type DayTotal struct {
	Day   int             `json:"day"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// GetMonthDayTotals sums sales per day-of-month for one calendar month of one
// year. Empty storeId means all stores.
func GetMonthDayTotals(ctx context.Context, storeId string, year int, month time.Month) ([]DayTotal, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	db := config.GetDB().WithContext(ctx)
	query := db.Model(&Sale{}).
		Select("DAY(sale_date) AS day, SUM(total_value) AS total, COUNT(*) AS count").
		Where("sale_date >= ? AND sale_date <= ?", start, end).
		Group("DAY(sale_date)")
	if storeId != "" {
		query = query.Where("store_id = ?", storeId)
	}

	var totals []DayTotal
	if err := query.Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}
