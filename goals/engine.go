package goals

import (
	"context"
	"time"

	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/models"
	"github.com/grupovitrine/painel_backend/pattern"
	"github.com/grupovitrine/painel_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AllStoresLabel is the storeId shown on admin aggregates spanning every
// store.
const AllStoresLabel = "Todas as Lojas"

// SalesReader sums persisted sales. An empty sellerName means store-wide.
type SalesReader interface {
	TotalSales(ctx context.Context, storeId string, sellerName string, start, end time.Time) (decimal.Decimal, error)
}

// ReceiptReader sums receipts per payment method for cashier goals.
type ReceiptReader interface {
	MethodTotals(ctx context.Context, storeId string, start, end time.Time, methods []string) ([]models.MethodTotal, error)
}

// GoalReader loads goal definitions.
type GoalReader interface {
	ActiveGoalsOn(ctx context.Context, date time.Time, storeIds []string) ([]models.SalesGoal, error)
	GoalsByExactRange(ctx context.Context, start, end time.Time) ([]models.SalesGoal, error)
	ActiveCashierGoalsOn(ctx context.Context, date time.Time, storeIds []string) ([]models.CashierGoal, error)
	CashierGoalsByExactRange(ctx context.Context, start, end time.Time) ([]models.CashierGoal, error)
}

// UserDirectory resolves sellers and role rosters.
type UserDirectory interface {
	ById(ctx context.Context, id int) (*models.User, error)
	ByRole(ctx context.Context, role models.UserRole, storeId string) ([]models.User, error)
}

// ProgressEstimator is satisfied by *pattern.Estimator.
type ProgressEstimator interface {
	CalculateExpectedProgress(ctx context.Context, start, end, current time.Time, storeId string) pattern.ExpectedProgress
}

type dbSalesReader struct{}

func (dbSalesReader) TotalSales(ctx context.Context, storeId string, sellerName string, start, end time.Time) (decimal.Decimal, error) {
	sales, err := models.GetSales(ctx, storeId, sellerName, &start, &end)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.TotalValue)
	}
	return total, nil
}

type dbReceiptReader struct{}

func (dbReceiptReader) MethodTotals(ctx context.Context, storeId string, start, end time.Time, methods []string) ([]models.MethodTotal, error) {
	return models.GetReceiptTotalsByPaymentMethod(ctx, storeId, start, end, methods)
}

type dbGoalReader struct{}

func (dbGoalReader) ActiveGoalsOn(ctx context.Context, date time.Time, storeIds []string) ([]models.SalesGoal, error) {
	return models.GetActiveGoalsOn(ctx, date, storeIds)
}

func (dbGoalReader) GoalsByExactRange(ctx context.Context, start, end time.Time) ([]models.SalesGoal, error) {
	return models.GetGoalsByExactRange(ctx, start, end)
}

func (dbGoalReader) ActiveCashierGoalsOn(ctx context.Context, date time.Time, storeIds []string) ([]models.CashierGoal, error) {
	return models.GetActiveCashierGoalsOn(ctx, date, storeIds)
}

func (dbGoalReader) CashierGoalsByExactRange(ctx context.Context, start, end time.Time) ([]models.CashierGoal, error) {
	return models.GetCashierGoalsByExactRange(ctx, start, end)
}

type dbUserDirectory struct{}

func (dbUserDirectory) ById(ctx context.Context, id int) (*models.User, error) {
	return models.GetUserById(ctx, id)
}

func (dbUserDirectory) ByRole(ctx context.Context, role models.UserRole, storeId string) ([]models.User, error) {
	return models.GetUsersByRole(ctx, role, storeId)
}

// Engine computes goal progress, role dashboards, bonus summaries and the
// weekly payment summary.
type Engine struct {
	sales     SalesReader
	receipts  ReceiptReader
	goals     GoalReader
	users     UserDirectory
	estimator ProgressEstimator
	logger    *logrus.Logger
	now       func() time.Time
}

func NewEngine(estimator ProgressEstimator) *Engine {
	return &Engine{
		sales:     dbSalesReader{},
		receipts:  dbReceiptReader{},
		goals:     dbGoalReader{},
		users:     dbUserDirectory{},
		estimator: estimator,
		logger:    config.GetLogger(),
		now:       utils.NowBrazil,
	}
}

// GoalProgress is the dashboard view of one active goal.
type GoalProgress struct {
	GoalId             int               `json:"goal_id"`
	Type               models.GoalType   `json:"type"`
	Period             models.GoalPeriod `json:"period"`
	StoreId            string            `json:"store_id"`
	SellerId           *int              `json:"seller_id,omitempty"`
	SellerName         string            `json:"seller_name,omitempty"`
	WeekStart          string            `json:"week_start"`
	WeekEnd            string            `json:"week_end"`
	TargetValue        decimal.Decimal   `json:"target_value"`
	CurrentValue       decimal.Decimal   `json:"current_value"`
	Percentage         float64           `json:"percentage"`
	TotalDays          int               `json:"total_days"`
	ElapsedDays        int               `json:"elapsed_days"`
	ExpectedPercentage float64           `json:"expected_percentage"`
	PatternBased       bool              `json:"pattern_based"`
	IsOnTrack          bool              `json:"is_on_track"`
	EstimatedBonus     *decimal.Decimal  `json:"estimated_bonus,omitempty"`
}

// GoalProgressFor computes the progress of one active goal as of today.
func (e *Engine) GoalProgressFor(ctx context.Context, goal models.SalesGoal) (*GoalProgress, error) {
	today := utils.DateOnly(e.now())
	start := utils.DateOnly(goal.WeekStart)
	end := utils.DateOnly(goal.WeekEnd)

	sellerName := ""
	var seller *models.User
	if goal.SellerId != nil {
		var err error
		seller, err = e.users.ById(ctx, *goal.SellerId)
		if err != nil {
			return nil, err
		}
		sellerName = seller.Name
	}

	current, err := e.sales.TotalSales(ctx, goal.StoreId, sellerName, start, end)
	if err != nil {
		return nil, err
	}

	percentage := 0.0
	if goal.TargetValue.IsPositive() {
		percentage, _ = current.Div(goal.TargetValue).Mul(decimal.NewFromInt(100)).Float64()
	}

	totalDays := utils.DaysInclusive(start, end)
	elapsedDays := 0
	if !today.Before(start) {
		elapsedDays = utils.DaysInclusive(start, today)
		if elapsedDays > totalDays {
			elapsedDays = totalDays
		}
	}

	progress := e.estimator.CalculateExpectedProgress(ctx, start, end, today, goal.StoreId)

	result := &GoalProgress{
		GoalId:             goal.ID,
		Type:               goal.Type,
		Period:             goal.Period,
		StoreId:            goal.StoreId,
		SellerId:           goal.SellerId,
		SellerName:         sellerName,
		WeekStart:          utils.FormatDateOnly(start),
		WeekEnd:            utils.FormatDateOnly(end),
		TargetValue:        goal.TargetValue,
		CurrentValue:       current,
		Percentage:         percentage,
		TotalDays:          totalDays,
		ElapsedDays:        elapsedDays,
		ExpectedPercentage: progress.ExpectedPercentage,
		PatternBased:       progress.PatternBased,
		IsOnTrack:          percentage >= progress.ExpectedPercentage,
	}

	if goal.Type == models.GoalTypeIndividual && seller != nil {
		if bonus := estimatedBonus(seller, current, percentage); bonus != nil {
			result.EstimatedBonus = bonus
		}
	}
	return result, nil
}

// estimatedBonus applies the seller's configured achieved or not-achieved
// rate. Sellers without rates get no estimate.
func estimatedBonus(seller *models.User, sales decimal.Decimal, percentage float64) *decimal.Decimal {
	if seller.BonusPercentageAchieved == nil || seller.BonusPercentageNotAchieved == nil {
		return nil
	}
	rate := *seller.BonusPercentageNotAchieved
	if percentage >= 100 {
		rate = *seller.BonusPercentageAchieved
	}
	bonus := utils.CustomRound(sales.Mul(rate).Div(decimal.NewFromInt(100)))
	return &bonus
}

// AggregateProgress merges several goals of the same period type into one
// dashboard row, window spanning the earliest start to the latest end.
type AggregateProgress struct {
	StoreId            string            `json:"store_id"`
	Period             models.GoalPeriod `json:"period"`
	GoalIds            []int             `json:"goal_ids"`
	WeekStart          string            `json:"week_start"`
	WeekEnd            string            `json:"week_end"`
	TargetValue        decimal.Decimal   `json:"target_value"`
	CurrentValue       decimal.Decimal   `json:"current_value"`
	Percentage         float64           `json:"percentage"`
	TotalDays          int               `json:"total_days"`
	ElapsedDays        int               `json:"elapsed_days"`
	ExpectedPercentage float64           `json:"expected_percentage"`
	PatternBased       bool              `json:"pattern_based"`
	IsOnTrack          bool              `json:"is_on_track"`
}

// VendorView lists the vendor's own active individual goals, except that a
// vendor on a team-bonus store sees the store's team goal instead.
func (e *Engine) VendorView(ctx context.Context, user *models.User) ([]GoalProgress, error) {
	goals, err := e.goals.ActiveGoalsOn(ctx, e.now(), user.AssignedStores())
	if err != nil {
		return nil, err
	}

	teamBonus := user.TeamBonus != nil && *user.TeamBonus
	var results []GoalProgress
	for _, goal := range goals {
		if teamBonus {
			if goal.Type != models.GoalTypeTeam {
				continue
			}
		} else {
			if goal.Type != models.GoalTypeIndividual || goal.SellerId == nil || *goal.SellerId != user.ID {
				continue
			}
		}
		progress, err := e.GoalProgressFor(ctx, goal)
		if err != nil {
			return nil, err
		}
		results = append(results, *progress)
	}
	return results, nil
}

// ManagerView aggregates the manager's stores into one row per period type.
func (e *Engine) ManagerView(ctx context.Context, user *models.User) ([]AggregateProgress, error) {
	stores := user.AssignedStores()
	label := AllStoresLabel
	if len(stores) == 1 {
		label = stores[0]
	}
	return e.aggregateView(ctx, label, stores)
}

// AdminView aggregates one selected store, or every store with the
// all-stores label when storeId is empty.
func (e *Engine) AdminView(ctx context.Context, storeId string) ([]AggregateProgress, error) {
	if storeId == "" {
		return e.aggregateView(ctx, AllStoresLabel, config.GetStores())
	}
	return e.aggregateView(ctx, storeId, []string{storeId})
}

func (e *Engine) aggregateView(ctx context.Context, label string, stores []string) ([]AggregateProgress, error) {
	goals, err := e.goals.ActiveGoalsOn(ctx, e.now(), stores)
	if err != nil {
		return nil, err
	}

	byPeriod := map[models.GoalPeriod][]models.SalesGoal{}
	for _, goal := range goals {
		byPeriod[goal.Period] = append(byPeriod[goal.Period], goal)
	}

	var results []AggregateProgress
	for _, period := range []models.GoalPeriod{models.GoalPeriodWeekly, models.GoalPeriodMonthly} {
		group := byPeriod[period]
		if len(group) == 0 {
			continue
		}
		agg, err := e.aggregate(ctx, label, period, group)
		if err != nil {
			return nil, err
		}
		results = append(results, *agg)
	}
	return results, nil
}

func (e *Engine) aggregate(ctx context.Context, label string, period models.GoalPeriod, group []models.SalesGoal) (*AggregateProgress, error) {
	today := utils.DateOnly(e.now())

	start := utils.DateOnly(group[0].WeekStart)
	end := utils.DateOnly(group[0].WeekEnd)
	target := decimal.Zero
	current := decimal.Zero
	var goalIds []int
	storeSet := map[string]struct{}{}

	for _, goal := range group {
		goalIds = append(goalIds, goal.ID)
		storeSet[goal.StoreId] = struct{}{}
		target = target.Add(goal.TargetValue)

		gs := utils.DateOnly(goal.WeekStart)
		ge := utils.DateOnly(goal.WeekEnd)
		if gs.Before(start) {
			start = gs
		}
		if ge.After(end) {
			end = ge
		}

		sellerName := ""
		if goal.Type == models.GoalTypeIndividual && goal.SellerId != nil {
			seller, err := e.users.ById(ctx, *goal.SellerId)
			if err != nil {
				return nil, err
			}
			sellerName = seller.Name
		}
		value, err := e.sales.TotalSales(ctx, goal.StoreId, sellerName, gs, ge)
		if err != nil {
			return nil, err
		}
		current = current.Add(value)
	}

	percentage := 0.0
	if target.IsPositive() {
		percentage, _ = current.Div(target).Mul(decimal.NewFromInt(100)).Float64()
	}

	totalDays := utils.DaysInclusive(start, end)
	var elapsedDays int
	var expected float64
	patternBased := false

	switch {
	case today.Before(start):
		elapsedDays = 0
		expected = 0
	case today.After(end):
		elapsedDays = totalDays
		expected = 100
	default:
		elapsedDays = utils.DaysInclusive(start, today)
		if len(storeSet) == 1 {
			// Pattern estimation only applies to a single store; blending
			// patterns across stores is out of scope and falls back to
			// linear.
			var storeId string
			for s := range storeSet {
				storeId = s
			}
			progress := e.estimator.CalculateExpectedProgress(ctx, start, end, today, storeId)
			expected = progress.ExpectedPercentage
			patternBased = progress.PatternBased
		} else {
			expected = float64(elapsedDays) / float64(totalDays) * 100
			if expected > 100 {
				expected = 100
			}
		}
	}

	return &AggregateProgress{
		StoreId:            label,
		Period:             period,
		GoalIds:            goalIds,
		WeekStart:          utils.FormatDateOnly(start),
		WeekEnd:            utils.FormatDateOnly(end),
		TargetValue:        target,
		CurrentValue:       current,
		Percentage:         percentage,
		TotalDays:          totalDays,
		ElapsedDays:        elapsedDays,
		ExpectedPercentage: expected,
		PatternBased:       patternBased,
		IsOnTrack:          percentage >= expected,
	}, nil
}
