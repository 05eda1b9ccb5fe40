package goals

import (
	"context"
	"time"

	"github.com/grupovitrine/painel_backend/models"
	"github.com/grupovitrine/painel_backend/utils"
	"github.com/shopspring/decimal"
)

// ManagerTeamOverrideRate is the fixed percentage of each achieving team
// member's sales credited to the store manager, independent of the manager's
// own configured rates.
var ManagerTeamOverrideRate = decimal.NewFromFloat(0.2)

// BonusEntry is one person's bonus for one goal.
type BonusEntry struct {
	UserId     int             `json:"user_id"`
	UserName   string          `json:"user_name"`
	Role       models.UserRole `json:"role"`
	StoreId    string          `json:"store_id"`
	GoalId     int             `json:"goal_id"`
	TotalSales decimal.Decimal `json:"total_sales"`
	Percentage float64         `json:"percentage"`
	GoalMet    bool            `json:"goal_met"`
	Bonus      decimal.Decimal `json:"bonus"`
}

// BonusBucket groups one period's entries by role.
type BonusBucket struct {
	Vendors       []BonusEntry    `json:"vendors"`
	Managers      []BonusEntry    `json:"managers"`
	Cashiers      []BonusEntry    `json:"cashiers"`
	TotalVendors  decimal.Decimal `json:"total_vendors"`
	TotalManagers decimal.Decimal `json:"total_managers"`
	TotalCashiers decimal.Decimal `json:"total_cashiers"`
	Total         decimal.Decimal `json:"total"`
}

// BonusSummary is the current-period financial view, one bucket per period
// type. The already-closed prior week is the payment summary's job, not this
// one's.
type BonusSummary struct {
	Weekly  BonusBucket `json:"weekly"`
	Monthly BonusBucket `json:"monthly"`
}

type memberResult struct {
	seller *models.User
	sales  decimal.Decimal
}

// ComputeBonusSummary derives the current weekly and monthly bonuses for
// every active goal containing today, scoped to the given stores (nil means
// all).
func (e *Engine) ComputeBonusSummary(ctx context.Context, storeIds []string) (*BonusSummary, error) {
	today := utils.DateOnly(e.now())

	goals, err := e.goals.ActiveGoalsOn(ctx, today, storeIds)
	if err != nil {
		return nil, err
	}

	summary := &BonusSummary{
		Weekly:  newBonusBucket(),
		Monthly: newBonusBucket(),
	}

	byPeriod := map[models.GoalPeriod][]models.SalesGoal{}
	for _, goal := range goals {
		byPeriod[goal.Period] = append(byPeriod[goal.Period], goal)
	}

	for period, group := range byPeriod {
		bucket := &summary.Weekly
		if period == models.GoalPeriodMonthly {
			bucket = &summary.Monthly
		}
		if err := e.fillSalesBonuses(ctx, group, bucket); err != nil {
			return nil, err
		}
	}

	cashierGoals, err := e.goals.ActiveCashierGoalsOn(ctx, today, storeIds)
	if err != nil {
		return nil, err
	}
	for _, goal := range cashierGoals {
		entry, err := e.cashierBonus(ctx, goal)
		if err != nil {
			return nil, err
		}
		bucket := &summary.Monthly
		if utils.DaysInclusive(goal.WeekStart, goal.WeekEnd) <= 7 {
			bucket = &summary.Weekly
		}
		bucket.Cashiers = append(bucket.Cashiers, *entry)
		bucket.TotalCashiers = bucket.TotalCashiers.Add(entry.Bonus)
	}

	finishBucket(&summary.Weekly)
	finishBucket(&summary.Monthly)
	return summary, nil
}

func newBonusBucket() BonusBucket {
	return BonusBucket{
		TotalVendors:  decimal.Zero,
		TotalManagers: decimal.Zero,
		TotalCashiers: decimal.Zero,
		Total:         decimal.Zero,
	}
}

func finishBucket(b *BonusBucket) {
	b.Total = b.TotalVendors.Add(b.TotalManagers).Add(b.TotalCashiers)
}

// fillSalesBonuses computes seller bonuses for one period group and the
// manager team overrides derived from the same group.
func (e *Engine) fillSalesBonuses(ctx context.Context, group []models.SalesGoal, bucket *BonusBucket) error {
	// (store, range) -> achieving individual-goal members, consumed by the
	// manager override below.
	type teamKey struct {
		store      string
		start, end time.Time
	}
	members := map[teamKey][]memberResult{}

	managerIdx := map[int]int{}

	for _, goal := range group {
		if goal.SellerId == nil {
			continue
		}
		seller, err := e.users.ById(ctx, *goal.SellerId)
		if err != nil {
			return err
		}

		start := utils.DateOnly(goal.WeekStart)
		end := utils.DateOnly(goal.WeekEnd)
		sales, err := e.sales.TotalSales(ctx, goal.StoreId, seller.Name, start, end)
		if err != nil {
			return err
		}

		percentage := 0.0
		if goal.TargetValue.IsPositive() {
			percentage, _ = sales.Div(goal.TargetValue).Mul(decimal.NewFromInt(100)).Float64()
		}
		met := percentage >= 100

		entry := BonusEntry{
			UserId:     seller.ID,
			UserName:   seller.Name,
			Role:       seller.Role,
			StoreId:    goal.StoreId,
			GoalId:     goal.ID,
			TotalSales: sales,
			Percentage: percentage,
			GoalMet:    met,
			Bonus:      decimal.Zero,
		}
		if seller.BonusPercentageAchieved != nil && seller.BonusPercentageNotAchieved != nil {
			rate := *seller.BonusPercentageNotAchieved
			if met {
				rate = *seller.BonusPercentageAchieved
			}
			entry.Bonus = utils.CustomRound(sales.Mul(rate).Div(decimal.NewFromInt(100)))
		}

		switch seller.Role {
		case models.UserRoleGerente:
			bucket.Managers = append(bucket.Managers, entry)
			bucket.TotalManagers = bucket.TotalManagers.Add(entry.Bonus)
			managerIdx[seller.ID] = len(bucket.Managers) - 1
		default:
			bucket.Vendors = append(bucket.Vendors, entry)
			bucket.TotalVendors = bucket.TotalVendors.Add(entry.Bonus)
		}

		if seller.Role != models.UserRoleGerente && met {
			key := teamKey{store: goal.StoreId, start: start, end: end}
			members[key] = append(members[key], memberResult{seller: seller, sales: sales})
		}
	}

	// Manager team override: 0.2% of each achieving member's sales in the
	// manager's store over the same date range.
	for key, achieving := range members {
		managers, err := e.users.ByRole(ctx, models.UserRoleGerente, key.store)
		if err != nil {
			return err
		}
		for _, manager := range managers {
			override := decimal.Zero
			for _, member := range achieving {
				override = override.Add(utils.CustomRound(member.sales.Mul(ManagerTeamOverrideRate).Div(decimal.NewFromInt(100))))
			}
			if override.IsZero() {
				continue
			}
			if idx, ok := managerIdx[manager.ID]; ok {
				bucket.Managers[idx].Bonus = bucket.Managers[idx].Bonus.Add(override)
			} else {
				entry := BonusEntry{
					UserId:   manager.ID,
					UserName: manager.Name,
					Role:     manager.Role,
					StoreId:  key.store,
					Bonus:    override,
				}
				bucket.Managers = append(bucket.Managers, entry)
				managerIdx[manager.ID] = len(bucket.Managers) - 1
			}
			bucket.TotalManagers = bucket.TotalManagers.Add(override)
		}
	}
	return nil
}

// cashierBonus evaluates one cashier goal. Achievement is the share of store
// sales settled through the targeted payment methods against the goal's
// target percentage; the bonus rate applies to the method-targeted volume.
func (e *Engine) cashierBonus(ctx context.Context, goal models.CashierGoal) (*BonusEntry, error) {
	start := utils.DateOnly(goal.WeekStart)
	end := utils.DateOnly(goal.WeekEnd)

	totals, err := e.receipts.MethodTotals(ctx, goal.StoreId, start, end, goal.MethodList())
	if err != nil {
		return nil, err
	}
	methodSales := decimal.Zero
	for _, mt := range totals {
		methodSales = methodSales.Add(mt.TotalNet)
	}

	storeSales, err := e.sales.TotalSales(ctx, goal.StoreId, "", start, end)
	if err != nil {
		return nil, err
	}

	percentage := 0.0
	if storeSales.IsPositive() {
		percentage, _ = methodSales.Div(storeSales).Mul(decimal.NewFromInt(100)).Float64()
	}
	target, _ := goal.TargetPercentage.Float64()
	met := percentage >= target

	rate := goal.BonusPercentageNotAchieved
	if met {
		rate = goal.BonusPercentageAchieved
	}
	bonus := utils.CustomRound(methodSales.Mul(rate).Div(decimal.NewFromInt(100)))

	cashier, err := e.users.ById(ctx, goal.CashierId)
	if err != nil {
		return nil, err
	}

	return &BonusEntry{
		UserId:     cashier.ID,
		UserName:   cashier.Name,
		Role:       cashier.Role,
		StoreId:    goal.StoreId,
		GoalId:     goal.ID,
		TotalSales: methodSales,
		Percentage: percentage,
		GoalMet:    met,
		Bonus:      bonus,
	}, nil
}
