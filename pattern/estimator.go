package pattern

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/models"
	"github.com/grupovitrine/painel_backend/utils"
	"github.com/sirupsen/logrus"
)

const patternCacheTTL = time.Hour

// DayWeight is one day-of-month slot of a MonthPattern.
type DayWeight struct {
	Day      int     `json:"day"`
	Weight   float64 `json:"weight"`
	AvgSales float64 `json:"avg_sales"`
	Samples  int     `json:"samples"`
}

// MonthPattern is the historical intra-month sales distribution for one
// calendar month at one store (or all stores). Weights sum to 1.
type MonthPattern struct {
	Month         time.Month  `json:"month"`
	StoreId       string      `json:"store_id"`
	Days          []DayWeight `json:"days"`
	TotalAvgSales float64     `json:"total_avg_sales"`
	YearsSampled  int         `json:"years_sampled"`
	Uniform       bool        `json:"uniform"`
}

// ExpectedProgress is the estimator's answer for one goal period.
type ExpectedProgress struct {
	ExpectedPercentage float64 `json:"expected_percentage"`
	LinearPercentage   float64 `json:"linear_percentage"`
	PatternBased       bool    `json:"pattern_based"`
	Confidence         string  `json:"confidence"`
	Explanation        string  `json:"explanation"`
}

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// SalesHistory feeds historical day totals to the estimator. The database
// adapter is the default; tests inject fixed data.
type SalesHistory interface {
	MonthDayTotals(ctx context.Context, storeId string, year int, month time.Month) ([]models.DayTotal, error)
}

type dbSalesHistory struct{}

func (dbSalesHistory) MonthDayTotals(ctx context.Context, storeId string, year int, month time.Month) ([]models.DayTotal, error) {
	// The all-stores pseudo id means an unscoped query.
	if storeId == config.StoreAll {
		storeId = ""
	}
	return models.GetMonthDayTotals(ctx, storeId, year, month)
}

type cacheEntry struct {
	pattern   *MonthPattern
	expiresAt time.Time
}

// Estimator computes month patterns and expected progress. The pattern cache
// is memory-first with a redis layer behind it so multiple instances share
// recomputed patterns; either layer can be cold without affecting results.
type Estimator struct {
	history SalesHistory
	mu      sync.Mutex
	cache   map[string]cacheEntry
	logger  *logrus.Logger
	now     func() time.Time
}

func NewEstimator() *Estimator {
	return &Estimator{
		history: dbSalesHistory{},
		cache:   map[string]cacheEntry{},
		logger:  config.GetLogger(),
		now:     utils.NowBrazil,
	}
}

func NewEstimatorWithHistory(history SalesHistory) *Estimator {
	e := NewEstimator()
	e.history = history
	return e
}

func patternCacheKey(month time.Month, storeId string) string {
	return fmt.Sprintf("MonthPattern:%s:%d", storeId, int(month))
}

// Invalidate drops every cached pattern for the store, in memory and redis.
// All-stores patterns aggregate every store's history, so they are dropped
// on any store's invalidation. Called after a sync rewrites history.
func (e *Estimator) Invalidate(storeId string) {
	e.mu.Lock()
	for key, entry := range e.cache {
		if entry.pattern == nil {
			continue
		}
		if storeId == "" || entry.pattern.StoreId == storeId || entry.pattern.StoreId == config.StoreAll {
			delete(e.cache, key)
		}
	}
	e.mu.Unlock()

	for month := time.January; month <= time.December; month++ {
		_ = config.RemoveRedisKey(patternCacheKey(month, storeId))
		if storeId != config.StoreAll {
			_ = config.RemoveRedisKey(patternCacheKey(month, config.StoreAll))
		}
	}
}

// GetMonthPattern returns the day-of-month weight distribution for the given
// month, averaged over the two most recent prior calendar years. With no
// history at all the weights are uniform over the current month's length.
func (e *Estimator) GetMonthPattern(ctx context.Context, month time.Month, storeId string) (*MonthPattern, error) {
	key := patternCacheKey(month, storeId)
	now := e.now()

	e.mu.Lock()
	if entry, ok := e.cache[key]; ok && now.Before(entry.expiresAt) {
		e.mu.Unlock()
		return entry.pattern, nil
	}
	e.mu.Unlock()

	var cached *MonthPattern
	if exists, err := config.GetRedisObject(key, &cached); err == nil && exists && cached != nil {
		e.storeLocal(key, cached, now)
		return cached, nil
	}

	pattern, err := e.computeMonthPattern(ctx, month, storeId)
	if err != nil {
		return nil, err
	}

	e.storeLocal(key, pattern, now)
	if err := config.SetRedisObject(key, pattern, patternCacheTTL); err != nil {
		config.LogError(e.logger, "pattern", "GetMonthPattern", "cache pattern in redis", map[string]interface{}{"key": key}, err)
	}
	return pattern, nil
}

func (e *Estimator) storeLocal(key string, pattern *MonthPattern, now time.Time) {
	e.mu.Lock()
	e.cache[key] = cacheEntry{pattern: pattern, expiresAt: now.Add(patternCacheTTL)}
	e.mu.Unlock()
}

func (e *Estimator) computeMonthPattern(ctx context.Context, month time.Month, storeId string) (*MonthPattern, error) {
	currentYear := e.now().Year()

	sums := make([]float64, 32)
	samples := make([]int, 32)
	yearsSampled := 0

	for _, year := range []int{currentYear - 1, currentYear - 2} {
		totals, err := e.history.MonthDayTotals(ctx, storeId, year, month)
		if err != nil {
			return nil, err
		}
		if len(totals) == 0 {
			continue
		}
		yearsSampled++
		for _, dt := range totals {
			if dt.Day < 1 || dt.Day > 31 {
				continue
			}
			total, _ := dt.Total.Float64()
			sums[dt.Day] += total
			samples[dt.Day] += dt.Count
		}
	}

	pattern := &MonthPattern{
		Month:        month,
		StoreId:      storeId,
		Days:         make([]DayWeight, 31),
		YearsSampled: yearsSampled,
	}

	if yearsSampled == 0 {
		daysInMonth := daysIn(e.now().Year(), e.now().Month())
		uniform := 1.0 / float64(daysInMonth)
		for day := 1; day <= 31; day++ {
			weight := 0.0
			if day <= daysInMonth {
				weight = uniform
			}
			pattern.Days[day-1] = DayWeight{Day: day, Weight: weight}
		}
		pattern.Uniform = true
		return pattern, nil
	}

	grandTotal := 0.0
	for day := 1; day <= 31; day++ {
		avg := sums[day] / float64(yearsSampled)
		pattern.Days[day-1] = DayWeight{Day: day, AvgSales: avg, Samples: samples[day]}
		grandTotal += avg
	}
	pattern.TotalAvgSales = grandTotal

	if grandTotal > 0 {
		for i := range pattern.Days {
			pattern.Days[i].Weight = pattern.Days[i].AvgSales / grandTotal
		}
	}
	return pattern, nil
}

// CalculateExpectedProgress converts a goal period plus "now" into the
// percentage of the target that should already be reached. Cross-month
// periods always use the linear share of elapsed days; single-month periods
// weigh elapsed days by the historical pattern. Any estimator failure
// degrades to linear.
func (e *Estimator) CalculateExpectedProgress(ctx context.Context, start, end, current time.Time, storeId string) ExpectedProgress {
	start = utils.DateOnly(start)
	end = utils.DateOnly(end)
	current = utils.DateOnly(current)

	linear := linearPercentage(start, end, current)
	result := ExpectedProgress{
		ExpectedPercentage: linear,
		LinearPercentage:   linear,
		PatternBased:       false,
		Confidence:         ConfidenceLow,
		Explanation:        "projecao linear",
	}

	if start.Month() != end.Month() || start.Year() != end.Year() {
		return result
	}
	if current.Before(start) {
		result.ExpectedPercentage = 0
		result.LinearPercentage = 0
		return result
	}

	pattern, err := e.GetMonthPattern(ctx, start.Month(), storeId)
	if err != nil {
		config.LogError(e.logger, "pattern", "CalculateExpectedProgress", "month pattern unavailable, using linear", map[string]interface{}{
			"store": storeId,
			"month": int(start.Month()),
		}, err)
		return result
	}

	startDay := start.Day()
	endDay := end.Day()
	currentDay := current.Day()
	if current.After(end) {
		currentDay = endDay
	}

	totalWeight := 0.0
	elapsedWeight := 0.0
	totalSamples := 0
	for day := startDay; day <= endDay; day++ {
		dw := pattern.Days[day-1]
		totalWeight += dw.Weight
		totalSamples += dw.Samples
		if day <= currentDay {
			elapsedWeight += dw.Weight
		}
	}
	if totalWeight == 0 {
		result.ExpectedPercentage = 0
		return result
	}

	expected := elapsedWeight / totalWeight * 100
	if expected > 100 {
		expected = 100
	}
	result.ExpectedPercentage = expected
	result.PatternBased = true
	result.Confidence = confidenceFor(totalSamples, endDay-startDay+1)
	result.Explanation = explanationFor(expected, linear)
	return result
}

func linearPercentage(start, end, current time.Time) float64 {
	totalDays := utils.DaysInclusive(start, end)
	if totalDays <= 0 {
		return 0
	}
	if current.Before(start) {
		return 0
	}
	elapsed := utils.DaysInclusive(start, current)
	if elapsed > totalDays {
		elapsed = totalDays
	}
	pct := float64(elapsed) / float64(totalDays) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func confidenceFor(totalSamples int, daysInRange int) string {
	if daysInRange <= 0 {
		return ConfidenceLow
	}
	avg := float64(totalSamples) / float64(daysInRange)
	switch {
	case avg >= 2:
		return ConfidenceHigh
	case avg >= 1:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func explanationFor(expected, linear float64) string {
	diff := expected - linear
	switch {
	case diff > 2:
		return "padrao historico acima da projecao linear"
	case diff < -2:
		return "padrao historico abaixo da projecao linear"
	default:
		return "padrao historico proximo da projecao linear"
	}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}
