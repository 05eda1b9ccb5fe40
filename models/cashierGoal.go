package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/utils"
	"github.com/shopspring/decimal"
)

// CashierGoal targets a share of total store sales settled through a named
// set of payment methods, with separate bonus rates for achieved and not
// achieved, scoped to one cashier.
type CashierGoal struct {
	ID                         int             `gorm:"primary_key" json:"id"`
	StoreId                    string          `gorm:"index;size:50;not null" json:"store_id"`
	CashierId                  int             `gorm:"index;not null" json:"cashier_id"`
	PaymentMethods             string          `gorm:"size:255;not null" json:"payment_methods"`
	TargetPercentage           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"target_percentage"`
	BonusPercentageAchieved    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bonus_percentage_achieved"`
	BonusPercentageNotAchieved decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bonus_percentage_not_achieved"`
	WeekStart                  time.Time       `gorm:"not null" json:"week_start"`
	WeekEnd                    time.Time       `gorm:"not null" json:"week_end"`
	IsActive                   *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt                  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCashierGoal struct {
	StoreId                    string          `json:"store_id" binding:"required"`
	CashierId                  int             `json:"cashier_id" binding:"required"`
	PaymentMethods             []string        `json:"payment_methods" binding:"required"`
	TargetPercentage           decimal.Decimal `json:"target_percentage" binding:"required"`
	BonusPercentageAchieved    decimal.Decimal `json:"bonus_percentage_achieved"`
	BonusPercentageNotAchieved decimal.Decimal `json:"bonus_percentage_not_achieved"`
	WeekStart                  string          `json:"week_start" binding:"required"`
	WeekEnd                    string          `json:"week_end" binding:"required"`
	IsActive                   *bool           `json:"is_active"`
}

// MethodList splits the stored CSV back into normalized method names.
func (g *CashierGoal) MethodList() []string {
	parts := strings.Split(g.PaymentMethods, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (input *NewCashierGoal) toGoal() (*CashierGoal, error) {
	methods := make([]string, 0, len(input.PaymentMethods))
	for _, m := range input.PaymentMethods {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		known := false
		for _, v := range PaymentMethods {
			if v == m {
				known = true
				break
			}
		}
		if !known {
			return nil, errors.New("unknown payment method: " + m)
		}
		methods = append(methods, m)
	}
	if len(methods) == 0 {
		return nil, errors.New("payment_methods is required")
	}
	start, err := utils.ParseDateOnly(input.WeekStart)
	if err != nil {
		return nil, err
	}
	end, err := utils.ParseDateOnly(input.WeekEnd)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, errors.New("week_end precedes week_start")
	}
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	return &CashierGoal{
		StoreId:                    input.StoreId,
		CashierId:                  input.CashierId,
		PaymentMethods:             strings.Join(methods, ","),
		TargetPercentage:           input.TargetPercentage,
		BonusPercentageAchieved:    input.BonusPercentageAchieved,
		BonusPercentageNotAchieved: input.BonusPercentageNotAchieved,
		WeekStart:                  start,
		WeekEnd:                    end,
		IsActive:                   isActive,
	}, nil
}

func CreateCashierGoal(ctx context.Context, input *NewCashierGoal) (*CashierGoal, error) {
	goal, err := input.toGoal()
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Create(goal).Error; err != nil {
		return nil, err
	}
	return goal, nil
}

func UpdateCashierGoal(ctx context.Context, id int, input *NewCashierGoal) (*CashierGoal, error) {
	goal, err := input.toGoal()
	if err != nil {
		return nil, err
	}
	goal.ID = id
	db := config.GetDB().WithContext(ctx)
	var existing CashierGoal
	if err := db.Where("id = ?", id).Take(&existing).Error; err != nil {
		return nil, normalizeNotFound(err)
	}
	if err := db.Model(&existing).Select("store_id", "cashier_id", "payment_methods",
		"target_percentage", "bonus_percentage_achieved", "bonus_percentage_not_achieved",
		"week_start", "week_end", "is_active").Updates(goal).Error; err != nil {
		return nil, err
	}
	return goal, nil
}

func DeleteCashierGoal(ctx context.Context, id int) error {
	result := config.GetDB().WithContext(ctx).Where("id = ?", id).Delete(&CashierGoal{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func ListCashierGoals(ctx context.Context, storeId string, cashierId *int) ([]CashierGoal, error) {
	query := config.GetDB().WithContext(ctx).Model(&CashierGoal{})
	if storeId != "" {
		query = query.Where("store_id = ?", storeId)
	}
	if cashierId != nil {
		query = query.Where("cashier_id = ?", *cashierId)
	}

	var goals []CashierGoal
	if err := query.Order("week_start desc").Find(&goals).Error; err != nil {
		return nil, err
	}
	return goals, nil
}

// GetActiveCashierGoalsOn returns active cashier goals whose range contains
// the date.
func GetActiveCashierGoalsOn(ctx context.Context, date time.Time, storeIds []string) ([]CashierGoal, error) {
	day := utils.DateOnly(date)
	query := config.GetDB().WithContext(ctx).Model(&CashierGoal{}).
		Where("is_active = ? AND week_start <= ? AND week_end >= ?", true, day, day)
	if len(storeIds) > 0 {
		query = query.Where("store_id IN ?", storeIds)
	}

	var goals []CashierGoal
	if err := query.Find(&goals).Error; err != nil {
		return nil, err
	}
	return goals, nil
}

// GetCashierGoalsByExactRange mirrors GetGoalsByExactRange for cashier goals.
func GetCashierGoalsByExactRange(ctx context.Context, start time.Time, end time.Time) ([]CashierGoal, error) {
	var goals []CashierGoal
	err := config.GetDB().WithContext(ctx).Model(&CashierGoal{}).
		Where("is_active = ? AND week_start = ? AND week_end = ?", true, utils.DateOnly(start), utils.DateOnly(end)).
		Find(&goals).Error
	if err != nil {
		return nil, err
	}
	return goals, nil
}
