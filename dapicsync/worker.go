package dapicsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/models"
	"github.com/grupovitrine/painel_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	// defaultMaxPages caps a single run so a looping upstream pager cannot
	// keep a sync alive forever. DAPIC_SYNC_MAX_PAGES overrides it.
	defaultMaxPages = 100

	fullHistoryStart = "2024-01-01"
)

// SalesSource fetches raw sales from the external system. *Client satisfies
// it; tests swap in fakes.
type SalesSource interface {
	FetchSalesPage(ctx context.Context, storeId string, start time.Time, end time.Time, page int) ([]RawSale, error)
}

// SalesStore persists canonical sales.
type SalesStore interface {
	DeleteByPeriod(ctx context.Context, storeId string, start, end time.Time) (int64, error)
	Exists(ctx context.Context, saleCode string, storeId string) (bool, error)
	Create(ctx context.Context, sale *models.Sale, items []models.SaleItem, receipts []models.SaleReceipt) error
}

// RunLog records sync bookkeeping rows.
type RunLog interface {
	CreateRun(ctx context.Context, run *models.SyncRun) error
	UpdateRun(ctx context.Context, id uint, updates map[string]interface{}) error
	RecordError(ctx context.Context, rec *models.SyncError) error
}

type dbSalesStore struct{}

func (dbSalesStore) DeleteByPeriod(ctx context.Context, storeId string, start, end time.Time) (int64, error) {
	return models.DeleteSalesByPeriod(ctx, storeId, start, end)
}

func (dbSalesStore) Exists(ctx context.Context, saleCode string, storeId string) (bool, error) {
	return models.SaleExists(ctx, saleCode, storeId)
}

func (dbSalesStore) Create(ctx context.Context, sale *models.Sale, items []models.SaleItem, receipts []models.SaleReceipt) error {
	_, err := models.CreateSaleWithItemsAndReceipts(ctx, sale, items, receipts)
	return err
}

type dbRunLog struct{}

func (dbRunLog) CreateRun(ctx context.Context, run *models.SyncRun) error {
	return models.CreateSyncRun(ctx, run)
}

func (dbRunLog) UpdateRun(ctx context.Context, id uint, updates map[string]interface{}) error {
	return models.UpdateSyncRun(ctx, id, updates)
}

func (dbRunLog) RecordError(ctx context.Context, rec *models.SyncError) error {
	return models.CreateSyncError(ctx, rec)
}

// Service runs synchronizations against one SalesSource. All state-changing
// entry points go through the lock registry so identical concurrent requests
// are rejected instead of doubled.
type Service struct {
	source     SalesSource
	store      SalesStore
	runs       RunLog
	locks      *LockRegistry
	logger     *logrus.Logger
	now        func() time.Time
	maxPages   int
	onComplete func(storeId string)
}

func NewService(source SalesSource) *Service {
	return &Service{
		source:   source,
		store:    dbSalesStore{},
		runs:     dbRunLog{},
		locks:    NewLockRegistry(),
		logger:   config.GetLogger(),
		now:      utils.NowBrazil,
		maxPages: envIntDefault("DAPIC_SYNC_MAX_PAGES", defaultMaxPages),
	}
}

// OnRunComplete registers a callback invoked after a run rewrites a store's
// sales, letting dependent caches drop stale data.
func (s *Service) OnRunComplete(fn func(storeId string)) {
	s.onComplete = fn
}

// StoreSyncResult summarizes one store's run.
type StoreSyncResult struct {
	StoreId      string `json:"store_id"`
	RunId        uint   `json:"run_id"`
	Status       string `json:"status"`
	PagesFetched int    `json:"pages_fetched"`
	Synced       int    `json:"synced"`
	Skipped      int    `json:"skipped"`
	Failed       int    `json:"failed"`
	Deleted      int64  `json:"deleted,omitempty"`
	Error        string `json:"error,omitempty"`
}

type recordOutcome int

const (
	outcomeOk recordOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// SyncStore replaces the given period for one store. Everything previously
// stored for (store, period) is deleted first, then the upstream pages are
// ingested. Per-record failures do not abort the run.
func (s *Service) SyncStore(ctx context.Context, storeId string, start, end time.Time, triggeredBy string) (*StoreSyncResult, error) {
	return s.run(ctx, storeId, start, end, models.SyncModeReplace, triggeredBy)
}

// SyncStoreAdditive ingests the period without deleting, skipping sale codes
// already stored. Replaying the same period is a no-op.
func (s *Service) SyncStoreAdditive(ctx context.Context, storeId string, start, end time.Time, triggeredBy string) (*StoreSyncResult, error) {
	return s.run(ctx, storeId, start, end, models.SyncModeAdditive, triggeredBy)
}

// SyncAllStores runs the period for every configured store, sequentially so
// a shared database is not hammered by parallel bulk writes. A failing store
// does not stop the remaining ones.
func (s *Service) SyncAllStores(ctx context.Context, start, end time.Time, mode string, triggeredBy string) []StoreSyncResult {
	var results []StoreSyncResult
	for _, store := range config.GetStores() {
		var res *StoreSyncResult
		var err error
		if mode == models.SyncModeAdditive {
			res, err = s.SyncStoreAdditive(ctx, store, start, end, triggeredBy)
		} else {
			res, err = s.SyncStore(ctx, store, start, end, triggeredBy)
		}
		if err != nil {
			results = append(results, StoreSyncResult{StoreId: store, Status: models.SyncRunStatusFailed, Error: err.Error()})
			continue
		}
		results = append(results, *res)
	}
	return results
}

// SyncFullHistory replaces everything from the fixed history start through
// today for every store.
func (s *Service) SyncFullHistory(ctx context.Context, triggeredBy string) []StoreSyncResult {
	start, _ := utils.ParseDateOnly(fullHistoryStart)
	return s.SyncAllStores(ctx, start, utils.TodayBrazil(), models.SyncModeReplace, triggeredBy)
}

// SyncCurrentMonth replaces the current month to date for every store.
func (s *Service) SyncCurrentMonth(ctx context.Context, triggeredBy string) []StoreSyncResult {
	today := utils.TodayBrazil()
	start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.SyncAllStores(ctx, start, today, models.SyncModeReplace, triggeredBy)
}

func (s *Service) run(ctx context.Context, storeId string, start, end time.Time, mode string, triggeredBy string) (*StoreSyncResult, error) {
	if !config.IsValidStore(storeId) {
		return nil, fmt.Errorf("unknown store %q", storeId)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date before start date")
	}

	release, err := s.locks.Acquire(mode, storeId, start, end)
	if err != nil {
		return nil, err
	}
	defer release()

	startedAt := s.now()
	run := &models.SyncRun{
		StoreId:     storeId,
		Mode:        mode,
		StartDate:   utils.DateOnly(start),
		EndDate:     utils.DateOnly(end),
		Status:      models.SyncRunStatusRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   &startedAt,
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	result := &StoreSyncResult{StoreId: storeId, RunId: run.ID}

	if mode == models.SyncModeReplace {
		deleted, err := s.store.DeleteByPeriod(ctx, storeId, run.StartDate, run.EndDate)
		if err != nil {
			s.finishRun(ctx, run.ID, result, startedAt, models.SyncRunStatusFailed)
			return nil, err
		}
		result.Deleted = deleted
	}

	seen := map[string]struct{}{}
	var pageErr error

	for page := 1; page <= s.maxPages; page++ {
		sales, err := s.source.FetchSalesPage(ctx, storeId, run.StartDate, run.EndDate, page)
		if err != nil {
			pageErr = err
			config.LogError(s.logger, "dapicsync", "run", "fetch sales page", map[string]interface{}{
				"store": storeId,
				"page":  page,
			}, err)
			break
		}
		result.PagesFetched++

		for _, raw := range sales {
			switch s.processRecord(ctx, run.ID, storeId, mode, seen, raw) {
			case outcomeOk:
				result.Synced++
			case outcomeSkipped:
				result.Skipped++
			case outcomeFailed:
				result.Failed++
			}
		}

		// A short page means the upstream has no more records.
		if len(sales) < PageSize {
			break
		}
	}

	status := models.SyncRunStatusSuccess
	switch {
	case pageErr != nil && result.Synced == 0:
		status = models.SyncRunStatusFailed
	case pageErr != nil || result.Failed > 0:
		status = models.SyncRunStatusPartial
	}
	result.Status = status
	s.finishRun(ctx, run.ID, result, startedAt, status)

	if s.onComplete != nil && result.Synced > 0 {
		s.onComplete(storeId)
	}

	if pageErr != nil && result.Synced == 0 {
		return result, pageErr
	}
	return result, nil
}

func (s *Service) finishRun(ctx context.Context, runId uint, result *StoreSyncResult, startedAt time.Time, status string) {
	finishedAt := s.now()
	updates := map[string]interface{}{
		"status":         status,
		"pages_fetched":  result.PagesFetched,
		"records_synced": result.Synced,
		"skipped_count":  result.Skipped,
		"error_count":    result.Failed,
		"finished_at":    finishedAt,
		"duration_ms":    finishedAt.Sub(startedAt).Milliseconds(),
	}
	if err := s.runs.UpdateRun(ctx, runId, updates); err != nil {
		config.LogError(s.logger, "dapicsync", "finishRun", "update sync run", map[string]interface{}{"runId": runId}, err)
	}
	result.Status = status
}

func (s *Service) processRecord(ctx context.Context, runId uint, storeId string, mode string, seen map[string]struct{}, raw RawSale) recordOutcome {
	code := strings.TrimSpace(raw.SaleCode)
	if code == "" {
		s.recordError(ctx, runId, storeId, "", "missing_code", "sale without a code", raw, false)
		return outcomeFailed
	}

	// Upstream pages occasionally repeat records across page boundaries.
	if _, dup := seen[code]; dup {
		return outcomeSkipped
	}
	seen[code] = struct{}{}

	if mode == models.SyncModeAdditive {
		exists, err := s.store.Exists(ctx, code, storeId)
		if err != nil {
			s.recordError(ctx, runId, storeId, code, "exists_check_failed", err.Error(), raw, true)
			return outcomeFailed
		}
		if exists {
			return outcomeSkipped
		}
	}

	saleDate, parsed := ParseSaleDate(raw.CloseDate)
	if !parsed {
		config.LogWarn(s.logger, "dapicsync", "processRecord", "unparseable sale date, using today", logrus.Fields{
			"store":    storeId,
			"saleCode": code,
			"raw":      raw.CloseDate,
		})
	}

	items := make([]models.SaleItem, 0, len(raw.Items))
	for _, it := range raw.Items {
		qty, _ := ParseCurrency(it.Quantity)
		unit, _ := ParseCurrency(it.UnitPrice)
		total, _ := ParseCurrency(it.TotalPrice)
		items = append(items, models.SaleItem{
			ProductCode: it.ProductCode,
			Description: it.Description,
			Quantity:    qty,
			UnitPrice:   unit,
			TotalPrice:  total,
		})
	}

	receipts := make([]models.SaleReceipt, 0, len(raw.Receipts))
	receiptSum := decimal.Zero
	var methods []string
	methodSeen := map[string]struct{}{}
	for _, rec := range raw.Receipts {
		gross, _ := ParseCurrency(rec.GrossValue)
		net, ok := ParseCurrency(rec.NetValue)
		if ok {
			receiptSum = receiptSum.Add(net)
		}
		method := NormalizePaymentMethod(rec.PaymentMethod)
		if method != "" {
			if _, dup := methodSeen[method]; !dup {
				methodSeen[method] = struct{}{}
				methods = append(methods, method)
			}
		}
		receipts = append(receipts, models.SaleReceipt{
			PaymentMethod: method,
			GrossValue:    gross,
			NetValue:      net,
		})
	}

	total, ok := ParseCurrency(raw.TotalValue)
	if !ok {
		// Fall back to the receipts so an upstream formatting quirk does
		// not zero out the sale.
		total = receiptSum
		config.LogWarn(s.logger, "dapicsync", "processRecord", "unparseable total value, using receipt sum", logrus.Fields{
			"store":    storeId,
			"saleCode": code,
			"raw":      raw.TotalValue,
		})
	}

	sale := &models.Sale{
		SaleCode:      code,
		StoreId:       storeId,
		SaleDate:      saleDate,
		TotalValue:    total,
		SellerName:    strings.TrimSpace(raw.SellerName),
		Status:        raw.Status,
		PaymentMethod: strings.Join(methods, ", "),
	}

	if err := s.store.Create(ctx, sale, items, receipts); err != nil {
		s.recordError(ctx, runId, storeId, code, "persist_failed", err.Error(), raw, true)
		return outcomeFailed
	}
	return outcomeOk
}

func (s *Service) recordError(ctx context.Context, runId uint, storeId string, saleCode string, code string, message string, raw RawSale, retryable bool) {
	payload, _ := json.Marshal(raw)
	rec := &models.SyncError{
		SyncRunId:   runId,
		StoreId:     storeId,
		SaleCode:    saleCode,
		ErrorCode:   code,
		Message:     message,
		PayloadJSON: payload,
		Retryable:   retryable,
	}
	if err := s.runs.RecordError(ctx, rec); err != nil {
		config.LogError(s.logger, "dapicsync", "recordError", "persist sync error", map[string]interface{}{
			"runId":    runId,
			"saleCode": saleCode,
		}, err)
	}
}
