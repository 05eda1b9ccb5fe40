package pattern

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/models"
	"github.com/shopspring/decimal"
)

type fakeHistory struct {
	totals map[int][]models.DayTotal
	err    error
}

func (f *fakeHistory) MonthDayTotals(ctx context.Context, storeId string, year int, month time.Month) ([]models.DayTotal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.totals[year], nil
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func newTestEstimator(history SalesHistory) *Estimator {
	e := NewEstimatorWithHistory(history)
	e.now = fixedNow
	return e
}

func dayTotal(day int, total float64, count int) models.DayTotal {
	return models.DayTotal{Day: day, Total: decimal.NewFromFloat(total), Count: count}
}

func weightSum(p *MonthPattern) float64 {
	sum := 0.0
	for _, dw := range p.Days {
		sum += dw.Weight
	}
	return sum
}

func TestGetMonthPattern_WeightsSumToOne(t *testing.T) {
	history := &fakeHistory{totals: map[int][]models.DayTotal{
		2024: {dayTotal(1, 100, 2), dayTotal(15, 300, 4), dayTotal(30, 600, 6)},
		2023: {dayTotal(1, 200, 2), dayTotal(15, 100, 2), dayTotal(30, 400, 4)},
	}}
	e := newTestEstimator(history)

	p, err := e.GetMonthPattern(context.Background(), time.June, "loja1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Uniform {
		t.Fatal("pattern with history must not be uniform")
	}
	if p.YearsSampled != 2 {
		t.Fatalf("years sampled = %d, want 2", p.YearsSampled)
	}
	if sum := weightSum(p); math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("weights sum to %f, want 1.0", sum)
	}
	// Day 30 averaged (600+400)/2 = 500 of total 850.
	if got := p.Days[29].Weight; math.Abs(got-500.0/850.0) > 1e-9 {
		t.Fatalf("day 30 weight = %f", got)
	}
}

func TestGetMonthPattern_UniformFallback(t *testing.T) {
	e := newTestEstimator(&fakeHistory{totals: map[int][]models.DayTotal{}})

	p, err := e.GetMonthPattern(context.Background(), time.June, "loja1")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Uniform {
		t.Fatal("no history must produce the uniform fallback")
	}
	if sum := weightSum(p); math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("uniform weights sum to %f, want 1.0", sum)
	}
	// June has 30 days; day 31 carries no weight.
	if p.Days[30].Weight != 0 {
		t.Fatalf("day 31 weight = %f, want 0", p.Days[30].Weight)
	}
}

func TestGetMonthPattern_Cached(t *testing.T) {
	calls := 0
	history := &fakeHistory{totals: map[int][]models.DayTotal{
		2024: {dayTotal(1, 100, 1)},
	}}
	e := newTestEstimator(countingHistory{history, &calls})

	if _, err := e.GetMonthPattern(context.Background(), time.June, "loja1"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GetMonthPattern(context.Background(), time.June, "loja1"); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		// Two prior years are queried once each; the second GetMonthPattern
		// call must be served from the cache.
		t.Fatalf("history queried %d times, want 2", calls)
	}
}

func TestInvalidate_DropsAllStoresPatternToo(t *testing.T) {
	history := &fakeHistory{totals: map[int][]models.DayTotal{
		2024: {dayTotal(1, 100, 1)},
	}}
	calls := 0
	e := newTestEstimator(countingHistory{history, &calls})

	if _, err := e.GetMonthPattern(context.Background(), time.June, config.StoreAll); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GetMonthPattern(context.Background(), time.June, "loja1"); err != nil {
		t.Fatal(err)
	}
	before := calls

	e.Invalidate("loja1")

	if _, err := e.GetMonthPattern(context.Background(), time.June, config.StoreAll); err != nil {
		t.Fatal(err)
	}
	if calls == before {
		t.Fatal("all-stores pattern must be recomputed after a store sync")
	}
}

type countingHistory struct {
	inner SalesHistory
	calls *int
}

func (c countingHistory) MonthDayTotals(ctx context.Context, storeId string, year int, month time.Month) ([]models.DayTotal, error) {
	*c.calls++
	return c.inner.MonthDayTotals(ctx, storeId, year, month)
}

func TestCalculateExpectedProgress_CrossMonthFallsBackToLinear(t *testing.T) {
	e := newTestEstimator(&fakeHistory{totals: map[int][]models.DayTotal{
		2024: {dayTotal(1, 100, 1)},
	}})

	start := time.Date(2024, 1, 28, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	current := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	res := e.CalculateExpectedProgress(context.Background(), start, end, current, "loja1")
	if res.PatternBased {
		t.Fatal("cross-month period must not be pattern based")
	}
	want := 4.0 / 7.0 * 100
	if math.Abs(res.ExpectedPercentage-want) > 1e-9 {
		t.Fatalf("expected = %f, want %f", res.ExpectedPercentage, want)
	}
	if res.ExpectedPercentage != res.LinearPercentage {
		t.Fatal("linear fallback must report the linear value")
	}
}

func TestCalculateExpectedProgress_MonthEndSkew(t *testing.T) {
	// All historical sales on days 25..30, none earlier. Mid-month the
	// pattern expects far less progress than the linear share.
	totals := []models.DayTotal{}
	for day := 25; day <= 30; day++ {
		totals = append(totals, dayTotal(day, 1000, 3))
	}
	e := newTestEstimator(&fakeHistory{totals: map[int][]models.DayTotal{2024: totals, 2023: totals}})

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	current := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	res := e.CalculateExpectedProgress(context.Background(), start, end, current, "loja1")
	if !res.PatternBased {
		t.Fatal("single-month period with history must be pattern based")
	}
	if res.ExpectedPercentage != 0 {
		t.Fatalf("no weight elapsed by day 15, expected = %f", res.ExpectedPercentage)
	}
	if res.LinearPercentage <= 0 {
		t.Fatal("linear percentage must still reflect elapsed days")
	}
	if res.Explanation != "padrao historico abaixo da projecao linear" {
		t.Fatalf("explanation = %q", res.Explanation)
	}
}

func TestCalculateExpectedProgress_QueryErrorDegradesToLinear(t *testing.T) {
	e := newTestEstimator(&fakeHistory{err: errors.New("db down")})

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	current := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	res := e.CalculateExpectedProgress(context.Background(), start, end, current, "loja1")
	if res.PatternBased {
		t.Fatal("estimator failure must degrade to linear")
	}
	want := 15.0 / 30.0 * 100
	if math.Abs(res.ExpectedPercentage-want) > 1e-9 {
		t.Fatalf("expected = %f, want %f", res.ExpectedPercentage, want)
	}
}

func TestCalculateExpectedProgress_Bounds(t *testing.T) {
	e := newTestEstimator(&fakeHistory{totals: map[int][]models.DayTotal{
		2024: {dayTotal(10, 100, 2), dayTotal(20, 100, 2)},
	}})

	start := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC)

	before := e.CalculateExpectedProgress(context.Background(), start, end, start.AddDate(0, 0, -3), "loja1")
	if before.ExpectedPercentage != 0 {
		t.Fatalf("before the period: expected = %f, want 0", before.ExpectedPercentage)
	}

	after := e.CalculateExpectedProgress(context.Background(), start, end, end.AddDate(0, 0, 5), "loja1")
	if after.ExpectedPercentage != 100 {
		t.Fatalf("after the period: expected = %f, want 100", after.ExpectedPercentage)
	}
}

func TestConfidenceLevels(t *testing.T) {
	if got := confidenceFor(20, 10); got != ConfidenceHigh {
		t.Fatalf("avg 2.0 samples/day = %s, want high", got)
	}
	if got := confidenceFor(10, 10); got != ConfidenceMedium {
		t.Fatalf("avg 1.0 samples/day = %s, want medium", got)
	}
	if got := confidenceFor(3, 10); got != ConfidenceLow {
		t.Fatalf("avg 0.3 samples/day = %s, want low", got)
	}
}
