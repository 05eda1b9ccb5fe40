package models

import (
	"context"
	"time"

	"github.com/grupovitrine/painel_backend/config"
)

// SyncRun is the bookkeeping row for one (mode, store, window) ingestion.
type SyncRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	StoreId       string     `gorm:"index;size:50;not null" json:"store_id"`
	Mode          string     `gorm:"size:20;not null" json:"mode"`
	StartDate     time.Time  `gorm:"not null" json:"start_date"`
	EndDate       time.Time  `gorm:"not null" json:"end_date"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`
	PagesFetched  int        `json:"pages_fetched"`
	RecordsSynced int        `json:"records_synced"`
	SkippedCount  int        `json:"skipped_count"`
	ErrorCount    int        `json:"error_count"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SyncError is one per-record ingestion failure or skip, kept so partial
// failures are visible instead of silently logged away.
type SyncError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SyncRunId   uint      `gorm:"index;not null" json:"sync_run_id"`
	StoreId     string    `gorm:"index;size:50" json:"store_id"`
	SaleCode    string    `gorm:"size:64" json:"sale_code"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CreateSyncRun(ctx context.Context, run *SyncRun) error {
	return config.GetDB().WithContext(ctx).Create(run).Error
}

func UpdateSyncRun(ctx context.Context, id uint, updates map[string]interface{}) error {
	return config.GetDB().WithContext(ctx).
		Model(&SyncRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func CreateSyncError(ctx context.Context, rec *SyncError) error {
	return config.GetDB().WithContext(ctx).Create(rec).Error
}

func ListSyncRuns(ctx context.Context, storeId string, limit int) ([]SyncRun, error) {
	query := config.GetDB().WithContext(ctx).Model(&SyncRun{}).Order("id desc").Limit(limit)
	if storeId != "" {
		query = query.Where("store_id = ?", storeId)
	}
	var runs []SyncRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func GetSyncRun(ctx context.Context, id uint) (*SyncRun, []SyncError, error) {
	db := config.GetDB().WithContext(ctx)
	var run SyncRun
	if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
		return nil, nil, err
	}
	var errs []SyncError
	if err := db.Where("sync_run_id = ?", run.ID).Order("id desc").Find(&errs).Error; err != nil {
		return nil, nil, err
	}
	return &run, errs, nil
}
