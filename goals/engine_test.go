package goals

import (
	"context"
	"testing"
	"time"

	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/models"
	"github.com/grupovitrine/painel_backend/pattern"
	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. The database-backed adapters
// are thin pass-throughs to the models package; the engine's arithmetic and
// aggregation rules are exercised here through fakes.

type fakeSales struct {
	totals map[string]decimal.Decimal
}

func (f fakeSales) TotalSales(ctx context.Context, storeId string, sellerName string, start, end time.Time) (decimal.Decimal, error) {
	if value, ok := f.totals[storeId+"|"+sellerName]; ok {
		return value, nil
	}
	return decimal.Zero, nil
}

type fakeReceipts struct {
	totals []models.MethodTotal
}

func (f fakeReceipts) MethodTotals(ctx context.Context, storeId string, start, end time.Time, methods []string) ([]models.MethodTotal, error) {
	return f.totals, nil
}

type fakeGoals struct {
	active        []models.SalesGoal
	exact         []models.SalesGoal
	activeCashier []models.CashierGoal
	exactCashier  []models.CashierGoal
}

func (f fakeGoals) ActiveGoalsOn(ctx context.Context, date time.Time, storeIds []string) ([]models.SalesGoal, error) {
	if len(storeIds) == 0 {
		return f.active, nil
	}
	allowed := map[string]struct{}{}
	for _, s := range storeIds {
		allowed[s] = struct{}{}
	}
	var out []models.SalesGoal
	for _, g := range f.active {
		if _, ok := allowed[g.StoreId]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f fakeGoals) GoalsByExactRange(ctx context.Context, start, end time.Time) ([]models.SalesGoal, error) {
	var out []models.SalesGoal
	for _, g := range f.exact {
		if g.WeekStart.Equal(start) && g.WeekEnd.Equal(end) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f fakeGoals) ActiveCashierGoalsOn(ctx context.Context, date time.Time, storeIds []string) ([]models.CashierGoal, error) {
	return f.activeCashier, nil
}

func (f fakeGoals) CashierGoalsByExactRange(ctx context.Context, start, end time.Time) ([]models.CashierGoal, error) {
	var out []models.CashierGoal
	for _, g := range f.exactCashier {
		if g.WeekStart.Equal(start) && g.WeekEnd.Equal(end) {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeUsers struct {
	byId   map[int]*models.User
	byRole map[string][]models.User
}

func (f fakeUsers) ById(ctx context.Context, id int) (*models.User, error) {
	return f.byId[id], nil
}

func (f fakeUsers) ByRole(ctx context.Context, role models.UserRole, storeId string) ([]models.User, error) {
	return f.byRole[string(role)+"|"+storeId], nil
}

type fakeEstimator struct {
	result pattern.ExpectedProgress
	calls  int
}

func (f *fakeEstimator) CalculateExpectedProgress(ctx context.Context, start, end, current time.Time, storeId string) pattern.ExpectedProgress {
	f.calls++
	return f.result
}

func engineNow() time.Time {
	// A Wednesday.
	return time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC)
}

func newTestEngine(sales SalesReader, receipts ReceiptReader, goalsR GoalReader, users UserDirectory, estimator ProgressEstimator) *Engine {
	return &Engine{
		sales:     sales,
		receipts:  receipts,
		goals:     goalsR,
		users:     users,
		estimator: estimator,
		logger:    config.GetLogger(),
		now:       engineNow,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// salesTotals builds the fakeSales lookup map, keyed "store|sellerName".
type salesTotals map[string]decimal.Decimal

func (s salesTotals) m(key, value string) salesTotals {
	s[key] = dec(value)
	return s
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func seller(id int, name string, role models.UserRole, achieved, notAchieved string) *models.User {
	u := &models.User{ID: id, Name: name, Role: role, IsActive: boolPtr(true)}
	if achieved != "" {
		u.BonusPercentageAchieved = decPtr(achieved)
		u.BonusPercentageNotAchieved = decPtr(notAchieved)
	}
	return u
}

func weeklyGoal(id int, store string, sellerId *int, target string) models.SalesGoal {
	goalType := models.GoalTypeTeam
	if sellerId != nil {
		goalType = models.GoalTypeIndividual
	}
	return models.SalesGoal{
		ID:          id,
		Type:        goalType,
		Period:      models.GoalPeriodWeekly,
		StoreId:     store,
		SellerId:    sellerId,
		WeekStart:   day(2025, 6, 15),
		WeekEnd:     day(2025, 6, 21),
		TargetValue: dec(target),
		IsActive:    boolPtr(true),
	}
}

func TestGoalProgressFor_IndividualAchieved(t *testing.T) {
	users := fakeUsers{byId: map[int]*models.User{
		7: seller(7, "Maria Silva", models.UserRoleVendedor, "2.5", "1.0"),
	}}
	sales := fakeSales{totals: map[string]decimal.Decimal{
		"loja1|Maria Silva": dec("12000"),
	}}
	est := &fakeEstimator{result: pattern.ExpectedProgress{ExpectedPercentage: 50, PatternBased: true}}
	e := newTestEngine(sales, fakeReceipts{}, fakeGoals{}, users, est)

	goal := weeklyGoal(1, "loja1", intPtr(7), "10000")
	progress, err := e.GoalProgressFor(context.Background(), goal)
	if err != nil {
		t.Fatal(err)
	}

	if progress.Percentage != 120 {
		t.Fatalf("percentage = %f, want 120", progress.Percentage)
	}
	if !progress.IsOnTrack {
		t.Fatal("120%% against 50%% expected must be on track")
	}
	if progress.TotalDays != 7 {
		t.Fatalf("total days = %d, want 7", progress.TotalDays)
	}
	if progress.ElapsedDays != 4 {
		t.Fatalf("elapsed days = %d, want 4", progress.ElapsedDays)
	}
	if progress.EstimatedBonus == nil {
		t.Fatal("seller with rates must get an estimated bonus")
	}
	// 2.5% of 12000 under the custom rounding rule.
	if !progress.EstimatedBonus.Equal(dec("300")) {
		t.Fatalf("estimated bonus = %s, want 300", progress.EstimatedBonus.String())
	}
}

func TestGoalProgressFor_ZeroTargetAndNoRates(t *testing.T) {
	users := fakeUsers{byId: map[int]*models.User{
		7: seller(7, "Maria Silva", models.UserRoleVendedor, "", ""),
	}}
	sales := fakeSales{totals: map[string]decimal.Decimal{
		"loja1|Maria Silva": dec("500"),
	}}
	est := &fakeEstimator{}
	e := newTestEngine(sales, fakeReceipts{}, fakeGoals{}, users, est)

	goal := weeklyGoal(1, "loja1", intPtr(7), "0")
	progress, err := e.GoalProgressFor(context.Background(), goal)
	if err != nil {
		t.Fatal(err)
	}
	if progress.Percentage != 0 {
		t.Fatalf("zero target must give 0%%, got %f", progress.Percentage)
	}
	if progress.EstimatedBonus != nil {
		t.Fatal("seller without rates must not get a bonus estimate")
	}
}

func TestVendorView_TeamBonusSeesTeamGoalOnly(t *testing.T) {
	vendor := seller(7, "Maria Silva", models.UserRoleVendedor, "", "")
	vendor.Stores = "loja1"
	vendor.TeamBonus = boolPtr(true)

	goals := fakeGoals{active: []models.SalesGoal{
		weeklyGoal(1, "loja1", intPtr(7), "10000"),
		weeklyGoal(2, "loja1", nil, "50000"),
	}}
	users := fakeUsers{byId: map[int]*models.User{7: vendor}}
	e := newTestEngine(fakeSales{}, fakeReceipts{}, goals, users, &fakeEstimator{})

	results, err := e.VendorView(context.Background(), vendor)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d goals, want only the team goal", len(results))
	}
	if results[0].GoalId != 2 || results[0].Type != models.GoalTypeTeam {
		t.Fatalf("unexpected goal in view: %+v", results[0])
	}
}

func TestVendorView_RegularVendorSeesOwnGoals(t *testing.T) {
	vendor := seller(7, "Maria Silva", models.UserRoleVendedor, "", "")
	vendor.Stores = "loja1"

	goals := fakeGoals{active: []models.SalesGoal{
		weeklyGoal(1, "loja1", intPtr(7), "10000"),
		weeklyGoal(2, "loja1", intPtr(8), "10000"),
		weeklyGoal(3, "loja1", nil, "50000"),
	}}
	users := fakeUsers{byId: map[int]*models.User{
		7: vendor,
		8: seller(8, "Jose Souza", models.UserRoleVendedor, "", ""),
	}}
	e := newTestEngine(fakeSales{}, fakeReceipts{}, goals, users, &fakeEstimator{})

	results, err := e.VendorView(context.Background(), vendor)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].GoalId != 1 {
		t.Fatalf("vendor must see only goal 1, got %+v", results)
	}
}

func TestAdminView_AllStoresAggregateIsLinear(t *testing.T) {
	t.Setenv("DAPIC_STORES", "loja1,loja2")

	goals := fakeGoals{active: []models.SalesGoal{
		weeklyGoal(1, "loja1", nil, "10000"),
		weeklyGoal(2, "loja2", nil, "20000"),
	}}
	sales := fakeSales{totals: map[string]decimal.Decimal{
		"loja1|": dec("6000"),
		"loja2|": dec("9000"),
	}}
	est := &fakeEstimator{result: pattern.ExpectedProgress{ExpectedPercentage: 99, PatternBased: true}}
	e := newTestEngine(sales, fakeReceipts{}, goals, fakeUsers{}, est)

	results, err := e.AdminView(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d aggregates, want 1 weekly row", len(results))
	}
	agg := results[0]
	if agg.StoreId != AllStoresLabel {
		t.Fatalf("label = %q, want %q", agg.StoreId, AllStoresLabel)
	}
	if !agg.TargetValue.Equal(dec("30000")) || !agg.CurrentValue.Equal(dec("15000")) {
		t.Fatalf("target=%s current=%s", agg.TargetValue, agg.CurrentValue)
	}
	if agg.Percentage != 50 {
		t.Fatalf("percentage = %f, want 50", agg.Percentage)
	}
	if est.calls != 0 {
		t.Fatal("multi-store aggregate must not invoke the pattern estimator")
	}
	if agg.PatternBased {
		t.Fatal("multi-store aggregate must report the linear fallback")
	}
	// Wednesday the 18th is day 4 of the 7-day window.
	want := 4.0 / 7.0 * 100
	if diff := agg.ExpectedPercentage - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected = %f, want %f", agg.ExpectedPercentage, want)
	}
}

func TestAdminView_SingleStoreUsesEstimator(t *testing.T) {
	goals := fakeGoals{active: []models.SalesGoal{
		weeklyGoal(1, "loja1", nil, "10000"),
	}}
	est := &fakeEstimator{result: pattern.ExpectedProgress{ExpectedPercentage: 72, PatternBased: true}}
	e := newTestEngine(fakeSales{}, fakeReceipts{}, goals, fakeUsers{}, est)

	results, err := e.AdminView(context.Background(), "loja1")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d aggregates", len(results))
	}
	if est.calls != 1 {
		t.Fatalf("estimator calls = %d, want 1", est.calls)
	}
	if results[0].ExpectedPercentage != 72 || !results[0].PatternBased {
		t.Fatalf("aggregate must carry the estimator result, got %+v", results[0])
	}
	if results[0].StoreId != "loja1" {
		t.Fatalf("label = %q, want loja1", results[0].StoreId)
	}
}

func TestAggregate_WindowBounds(t *testing.T) {
	futureGoal := weeklyGoal(1, "loja1", nil, "10000")
	futureGoal.WeekStart = day(2025, 7, 6)
	futureGoal.WeekEnd = day(2025, 7, 12)

	e := newTestEngine(fakeSales{}, fakeReceipts{}, fakeGoals{}, fakeUsers{}, &fakeEstimator{})

	agg, err := e.aggregate(context.Background(), "loja1", models.GoalPeriodWeekly, []models.SalesGoal{futureGoal})
	if err != nil {
		t.Fatal(err)
	}
	if agg.ElapsedDays != 0 || agg.ExpectedPercentage != 0 {
		t.Fatalf("future window: elapsed=%d expected=%f, want zeros", agg.ElapsedDays, agg.ExpectedPercentage)
	}

	pastGoal := weeklyGoal(2, "loja1", nil, "10000")
	pastGoal.WeekStart = day(2025, 5, 4)
	pastGoal.WeekEnd = day(2025, 5, 10)

	agg, err = e.aggregate(context.Background(), "loja1", models.GoalPeriodWeekly, []models.SalesGoal{pastGoal})
	if err != nil {
		t.Fatal(err)
	}
	if agg.ElapsedDays != agg.TotalDays || agg.ExpectedPercentage != 100 {
		t.Fatalf("closed window: elapsed=%d/%d expected=%f, want full", agg.ElapsedDays, agg.TotalDays, agg.ExpectedPercentage)
	}
}
