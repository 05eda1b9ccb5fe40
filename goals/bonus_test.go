package goals

import (
	"context"
	"testing"

	"github.com/grupovitrine/painel_backend/models"
	"github.com/shopspring/decimal"
)

func TestComputeBonusSummary_VendorAchievedRate(t *testing.T) {
	users := fakeUsers{byId: map[int]*models.User{
		7: seller(7, "Maria Silva", models.UserRoleVendedor, "2.5", "1.0"),
	}}
	sales := fakeSales{totals: salesTotals{}.m("loja1|Maria Silva", "12000")}
	goals := fakeGoals{active: []models.SalesGoal{
		weeklyGoal(1, "loja1", intPtr(7), "10000"),
	}}
	e := newTestEngine(sales, fakeReceipts{}, goals, users, &fakeEstimator{})

	summary, err := e.ComputeBonusSummary(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Weekly.Vendors) != 1 {
		t.Fatalf("got %d vendor entries", len(summary.Weekly.Vendors))
	}
	entry := summary.Weekly.Vendors[0]
	if !entry.GoalMet {
		t.Fatal("12000 against 10000 must meet the goal")
	}
	// 2.5% of 12000 = 300.00 under the custom rounding rule.
	if !entry.Bonus.Equal(dec("300")) {
		t.Fatalf("bonus = %s, want 300", entry.Bonus.String())
	}
	if !summary.Weekly.Total.Equal(dec("300")) {
		t.Fatalf("weekly total = %s, want 300", summary.Weekly.Total.String())
	}
}

func TestComputeBonusSummary_NotAchievedRate(t *testing.T) {
	users := fakeUsers{byId: map[int]*models.User{
		7: seller(7, "Maria Silva", models.UserRoleVendedor, "2.5", "1.0"),
	}}
	sales := fakeSales{totals: salesTotals{}.m("loja1|Maria Silva", "8000")}
	goals := fakeGoals{active: []models.SalesGoal{
		weeklyGoal(1, "loja1", intPtr(7), "10000"),
	}}
	e := newTestEngine(sales, fakeReceipts{}, goals, users, &fakeEstimator{})

	summary, err := e.ComputeBonusSummary(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	entry := summary.Weekly.Vendors[0]
	if entry.GoalMet {
		t.Fatal("8000 against 10000 must not meet the goal")
	}
	// 1.0% of 8000.
	if !entry.Bonus.Equal(dec("80")) {
		t.Fatalf("bonus = %s, want 80", entry.Bonus.String())
	}
}

func TestComputeBonusSummary_ManagerTeamOverride(t *testing.T) {
	manager := seller(2, "Joao Gerente", models.UserRoleGerente, "", "")
	users := fakeUsers{
		byId: map[int]*models.User{
			7: seller(7, "Maria Silva", models.UserRoleVendedor, "2.5", "1.0"),
			2: manager,
		},
		byRole: map[string][]models.User{
			"gerente|loja1": {*manager},
		},
	}
	sales := fakeSales{totals: salesTotals{}.m("loja1|Maria Silva", "12000")}
	goals := fakeGoals{active: []models.SalesGoal{
		weeklyGoal(1, "loja1", intPtr(7), "10000"),
	}}
	e := newTestEngine(sales, fakeReceipts{}, goals, users, &fakeEstimator{})

	summary, err := e.ComputeBonusSummary(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Weekly.Managers) != 1 {
		t.Fatalf("got %d manager entries, want the override entry", len(summary.Weekly.Managers))
	}
	// 0.2% of the achieving member's 12000.
	if !summary.Weekly.Managers[0].Bonus.Equal(dec("24")) {
		t.Fatalf("override = %s, want 24", summary.Weekly.Managers[0].Bonus.String())
	}
	if !summary.Weekly.Total.Equal(dec("324")) {
		t.Fatalf("weekly total = %s, want 324", summary.Weekly.Total.String())
	}
}

func TestComputeBonusSummary_NoOverrideWhenGoalMissed(t *testing.T) {
	manager := seller(2, "Joao Gerente", models.UserRoleGerente, "", "")
	users := fakeUsers{
		byId: map[int]*models.User{
			7: seller(7, "Maria Silva", models.UserRoleVendedor, "2.5", "1.0"),
			2: manager,
		},
		byRole: map[string][]models.User{
			"gerente|loja1": {*manager},
		},
	}
	sales := fakeSales{totals: salesTotals{}.m("loja1|Maria Silva", "8000")}
	goals := fakeGoals{active: []models.SalesGoal{
		weeklyGoal(1, "loja1", intPtr(7), "10000"),
	}}
	e := newTestEngine(sales, fakeReceipts{}, goals, users, &fakeEstimator{})

	summary, err := e.ComputeBonusSummary(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Weekly.Managers) != 0 {
		t.Fatalf("missed member goal must not trigger an override, got %+v", summary.Weekly.Managers)
	}
}

func TestComputeBonusSummary_CashierBonus(t *testing.T) {
	cashier := seller(9, "Ana Caixa", models.UserRoleCaixa, "", "")
	users := fakeUsers{byId: map[int]*models.User{9: cashier}}
	sales := fakeSales{totals: salesTotals{}.m("loja1|", "10000")}
	receipts := fakeReceipts{totals: []models.MethodTotal{
		{PaymentMethod: models.PaymentMethodPix, TotalNet: dec("3000")},
		{PaymentMethod: models.PaymentMethodDebito, TotalNet: dec("2000")},
	}}
	goals := fakeGoals{activeCashier: []models.CashierGoal{{
		ID:                         1,
		StoreId:                    "loja1",
		CashierId:                  9,
		PaymentMethods:             "pix,debito",
		TargetPercentage:           dec("40"),
		BonusPercentageAchieved:    dec("1.0"),
		BonusPercentageNotAchieved: dec("0.5"),
		WeekStart:                  day(2025, 6, 15),
		WeekEnd:                    day(2025, 6, 21),
		IsActive:                   boolPtr(true),
	}}}
	e := newTestEngine(sales, receipts, goals, users, &fakeEstimator{})

	summary, err := e.ComputeBonusSummary(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Weekly.Cashiers) != 1 {
		t.Fatalf("got %d cashier entries", len(summary.Weekly.Cashiers))
	}
	entry := summary.Weekly.Cashiers[0]
	// 5000 of 10000 = 50% against a 40% target.
	if !entry.GoalMet {
		t.Fatal("50%% method share against 40%% target must be met")
	}
	// 1.0% of the 5000 method volume.
	if !entry.Bonus.Equal(dec("50")) {
		t.Fatalf("bonus = %s, want 50", entry.Bonus.String())
	}
}

func TestPreviousWeekBounds(t *testing.T) {
	// Monday 2025-06-16 pays the week of Sunday 8th through Saturday 14th.
	start, end := PreviousWeekBounds(day(2025, 6, 16))
	if !start.Equal(day(2025, 6, 8)) || !end.Equal(day(2025, 6, 14)) {
		t.Fatalf("bounds = %v..%v", start, end)
	}

	// A Sunday pays the week that just closed the day before.
	start, end = PreviousWeekBounds(day(2025, 6, 15))
	if !start.Equal(day(2025, 6, 8)) || !end.Equal(day(2025, 6, 14)) {
		t.Fatalf("sunday bounds = %v..%v", start, end)
	}

	// A Saturday still points at the prior closed week.
	start, end = PreviousWeekBounds(day(2025, 6, 14))
	if !start.Equal(day(2025, 6, 1)) || !end.Equal(day(2025, 6, 7)) {
		t.Fatalf("saturday bounds = %v..%v", start, end)
	}
}

func TestComputeWeeklyPaymentSummary_TeamGoalPaysNonGoaled(t *testing.T) {
	// now is Wednesday 2025-06-18, so the paid week is June 8..14.
	goaled := seller(7, "Maria Silva", models.UserRoleVendedor, "2.5", "1.0")
	freeRider := seller(8, "Jose Souza", models.UserRoleVendedor, "1.5", "0.5")
	manager := seller(2, "Joao Gerente", models.UserRoleGerente, "2.0", "1.0")

	users := fakeUsers{
		byId: map[int]*models.User{7: goaled, 8: freeRider, 2: manager},
		byRole: map[string][]models.User{
			"vendedor|loja1": {*goaled, *freeRider},
			"gerente|loja1":  {*manager},
		},
	}
	sales := fakeSales{totals: salesTotals{}.
		m("loja1|Maria Silva", "12000").
		m("loja1|", "40000")}

	individual := weeklyGoal(1, "loja1", intPtr(7), "10000")
	individual.WeekStart = day(2025, 6, 8)
	individual.WeekEnd = day(2025, 6, 14)
	team := weeklyGoal(2, "loja1", nil, "30000")
	team.WeekStart = day(2025, 6, 8)
	team.WeekEnd = day(2025, 6, 14)

	goals := fakeGoals{exact: []models.SalesGoal{individual, team}}
	e := newTestEngine(sales, fakeReceipts{}, goals, users, &fakeEstimator{})

	summary, err := e.ComputeWeeklyPaymentSummary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.WeekStart != "2025-06-08" || summary.WeekEnd != "2025-06-14" {
		t.Fatalf("week = %s..%s", summary.WeekStart, summary.WeekEnd)
	}

	totalByUser := map[int]decimal.Decimal{}
	typesByUser := map[int][]models.GoalType{}
	for _, entry := range summary.Entries {
		if existing, ok := totalByUser[entry.UserId]; ok {
			totalByUser[entry.UserId] = existing.Add(entry.Bonus)
		} else {
			totalByUser[entry.UserId] = entry.Bonus
		}
		typesByUser[entry.UserId] = append(typesByUser[entry.UserId], entry.GoalType)
	}

	// Maria met her own goal: 2.5% of 12000.
	if got := totalByUser[7]; !got.Equal(dec("300")) {
		t.Fatalf("goaled vendor payout = %s, want 300", got.String())
	}
	if typesByUser[7][0] != models.GoalTypeIndividual {
		t.Fatalf("goaled vendor paid as %v, want individual", typesByUser[7])
	}
	// Jose has no individual goal: team goal met (40000 >= 30000), 1.5% of
	// store sales.
	if got := totalByUser[8]; !got.Equal(dec("600")) {
		t.Fatalf("team-paid vendor payout = %s, want 600", got.String())
	}
	// The manager has no individual goal: 2.0% of store sales via the team
	// goal plus the 0.2% override on Maria's achieving 12000.
	if got := totalByUser[2]; !got.Equal(dec("824")) {
		t.Fatalf("manager payout = %s, want 824", got.String())
	}

	if summary.TotalsByStore["loja1"].IsZero() {
		t.Fatal("store rollup missing")
	}
	if summary.TotalsByRole["vendedor"].IsZero() {
		t.Fatal("role rollup missing")
	}
}
