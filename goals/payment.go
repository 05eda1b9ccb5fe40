package goals

import (
	"context"
	"time"

	"github.com/grupovitrine/painel_backend/models"
	"github.com/grupovitrine/painel_backend/utils"
	"github.com/shopspring/decimal"
)

// PreviousWeekBounds returns the Sunday and Saturday of the week before the
// one containing now. Payments run on Monday for that closed week.
func PreviousWeekBounds(now time.Time) (time.Time, time.Time) {
	today := utils.DateOnly(now)
	currentSunday := today.AddDate(0, 0, -int(today.Weekday()))
	start := currentSunday.AddDate(0, 0, -7)
	end := start.AddDate(0, 0, 6)
	return start, end
}

// PaymentEntry is one person's payout for the closed week.
type PaymentEntry struct {
	UserId     int             `json:"user_id"`
	UserName   string          `json:"user_name"`
	Role       models.UserRole `json:"role"`
	StoreId    string          `json:"store_id"`
	GoalId     int             `json:"goal_id,omitempty"`
	GoalType   models.GoalType `json:"goal_type"`
	TotalSales decimal.Decimal `json:"total_sales"`
	Percentage float64         `json:"percentage"`
	GoalMet    bool            `json:"goal_met"`
	Bonus      decimal.Decimal `json:"bonus"`
}

// PaymentSummary is the finance view of everything owed for the previous
// Sunday to Saturday week. Only goals whose boundaries equal that exact week
// participate.
type PaymentSummary struct {
	WeekStart     string                     `json:"week_start"`
	WeekEnd       string                     `json:"week_end"`
	Entries       []PaymentEntry             `json:"entries"`
	TotalsByRole  map[string]decimal.Decimal `json:"totals_by_role"`
	TotalsByStore map[string]decimal.Decimal `json:"totals_by_store"`
	Total         decimal.Decimal            `json:"total"`
}

// ComputeWeeklyPaymentSummary re-derives bonuses for the closed previous
// week. Individual goals pay their sellers, team goals pay every vendor and
// manager of the store who has no individual goal that week, cashier goals
// pay their cashiers.
func (e *Engine) ComputeWeeklyPaymentSummary(ctx context.Context) (*PaymentSummary, error) {
	start, end := PreviousWeekBounds(e.now())

	summary := &PaymentSummary{
		WeekStart:     utils.FormatDateOnly(start),
		WeekEnd:       utils.FormatDateOnly(end),
		TotalsByRole:  map[string]decimal.Decimal{},
		TotalsByStore: map[string]decimal.Decimal{},
		Total:         decimal.Zero,
	}

	goals, err := e.goals.GoalsByExactRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	var individual, team []models.SalesGoal
	individuallyGoaled := map[int]struct{}{}
	for _, goal := range goals {
		if goal.Type == models.GoalTypeIndividual && goal.SellerId != nil {
			individual = append(individual, goal)
			individuallyGoaled[*goal.SellerId] = struct{}{}
		} else if goal.Type == models.GoalTypeTeam {
			team = append(team, goal)
		}
	}

	bucket := newBonusBucket()
	if err := e.fillSalesBonuses(ctx, individual, &bucket); err != nil {
		return nil, err
	}
	goalIdByUser := map[int]int{}
	for _, goal := range individual {
		goalIdByUser[*goal.SellerId] = goal.ID
	}
	for _, entry := range append(bucket.Vendors, bucket.Managers...) {
		summary.add(PaymentEntry{
			UserId:     entry.UserId,
			UserName:   entry.UserName,
			Role:       entry.Role,
			StoreId:    entry.StoreId,
			GoalId:     entry.GoalId,
			GoalType:   models.GoalTypeIndividual,
			TotalSales: entry.TotalSales,
			Percentage: entry.Percentage,
			GoalMet:    entry.GoalMet,
			Bonus:      entry.Bonus,
		})
	}

	for _, goal := range team {
		if err := e.teamGoalPayments(ctx, goal, start, end, individuallyGoaled, summary); err != nil {
			return nil, err
		}
	}

	cashierGoals, err := e.goals.CashierGoalsByExactRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	for _, goal := range cashierGoals {
		entry, err := e.cashierBonus(ctx, goal)
		if err != nil {
			return nil, err
		}
		summary.add(PaymentEntry{
			UserId:     entry.UserId,
			UserName:   entry.UserName,
			Role:       entry.Role,
			StoreId:    entry.StoreId,
			GoalId:     entry.GoalId,
			TotalSales: entry.TotalSales,
			Percentage: entry.Percentage,
			GoalMet:    entry.GoalMet,
			Bonus:      entry.Bonus,
		})
	}

	return summary, nil
}

// teamGoalPayments pays every non-individually-goaled vendor and manager of
// the store against total store sales.
func (e *Engine) teamGoalPayments(ctx context.Context, goal models.SalesGoal, start, end time.Time, individuallyGoaled map[int]struct{}, summary *PaymentSummary) error {
	storeSales, err := e.sales.TotalSales(ctx, goal.StoreId, "", start, end)
	if err != nil {
		return err
	}

	percentage := 0.0
	if goal.TargetValue.IsPositive() {
		percentage, _ = storeSales.Div(goal.TargetValue).Mul(decimal.NewFromInt(100)).Float64()
	}
	met := percentage >= 100

	for _, role := range []models.UserRole{models.UserRoleVendedor, models.UserRoleGerente} {
		users, err := e.users.ByRole(ctx, role, goal.StoreId)
		if err != nil {
			return err
		}
		for _, user := range users {
			if _, hasOwn := individuallyGoaled[user.ID]; hasOwn {
				continue
			}
			if user.BonusPercentageAchieved == nil || user.BonusPercentageNotAchieved == nil {
				continue
			}
			rate := *user.BonusPercentageNotAchieved
			if met {
				rate = *user.BonusPercentageAchieved
			}
			summary.add(PaymentEntry{
				UserId:     user.ID,
				UserName:   user.Name,
				Role:       user.Role,
				StoreId:    goal.StoreId,
				GoalId:     goal.ID,
				GoalType:   models.GoalTypeTeam,
				TotalSales: storeSales,
				Percentage: percentage,
				GoalMet:    met,
				Bonus:      utils.CustomRound(storeSales.Mul(rate).Div(decimal.NewFromInt(100))),
			})
		}
	}
	return nil
}

func (s *PaymentSummary) add(entry PaymentEntry) {
	s.Entries = append(s.Entries, entry)

	role := string(entry.Role)
	if existing, ok := s.TotalsByRole[role]; ok {
		s.TotalsByRole[role] = existing.Add(entry.Bonus)
	} else {
		s.TotalsByRole[role] = entry.Bonus
	}
	if existing, ok := s.TotalsByStore[entry.StoreId]; ok {
		s.TotalsByStore[entry.StoreId] = existing.Add(entry.Bonus)
	} else {
		s.TotalsByStore[entry.StoreId] = entry.Bonus
	}
	s.Total = s.Total.Add(entry.Bonus)
}
