package models

import (
	"context"
	"errors"
	"time"

	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/utils"
	"github.com/shopspring/decimal"
)

// SalesGoal is a weekly or monthly sales target, either for one seller
// (individual) or for the whole store (team).
type SalesGoal struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Type        GoalType        `gorm:"type:enum('individual','team');not null" json:"type"`
	Period      GoalPeriod      `gorm:"type:enum('weekly','monthly');not null" json:"period"`
	StoreId     string          `gorm:"index;size:50;not null" json:"store_id"`
	SellerId    *int            `gorm:"index;default:null" json:"seller_id"`
	WeekStart   time.Time       `gorm:"not null" json:"week_start"`
	WeekEnd     time.Time       `gorm:"not null" json:"week_end"`
	TargetValue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"target_value"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSalesGoal struct {
	Type        GoalType        `json:"type" binding:"required"`
	Period      GoalPeriod      `json:"period" binding:"required"`
	StoreId     string          `json:"store_id" binding:"required"`
	SellerId    *int            `json:"seller_id"`
	WeekStart   string          `json:"week_start" binding:"required"`
	WeekEnd     string          `json:"week_end" binding:"required"`
	TargetValue decimal.Decimal `json:"target_value" binding:"required"`
	IsActive    *bool           `json:"is_active"`
}

var ErrGoalSellerRequired = errors.New("individual goals require a seller_id")
var ErrGoalSellerForbidden = errors.New("team goals must not carry a seller_id")

func (input *NewSalesGoal) toGoal() (*SalesGoal, error) {
	if input.Type == GoalTypeIndividual && input.SellerId == nil {
		return nil, ErrGoalSellerRequired
	}
	if input.Type == GoalTypeTeam && input.SellerId != nil {
		return nil, ErrGoalSellerForbidden
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
	return &SalesGoal{
		Type:        input.Type,
		Period:      input.Period,
		StoreId:     input.StoreId,
		SellerId:    input.SellerId,
		WeekStart:   start,
		WeekEnd:     end,
		TargetValue: input.TargetValue,
		IsActive:    isActive,
	}, nil
}

func CreateSalesGoal(ctx context.Context, input *NewSalesGoal) (*SalesGoal, error) {
	goal, err := input.toGoal()
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Create(goal).Error; err != nil {
		return nil, err
	}
	return goal, nil
}

func UpdateSalesGoal(ctx context.Context, id int, input *NewSalesGoal) (*SalesGoal, error) {
	goal, err := input.toGoal()
	if err != nil {
		return nil, err
	}
	goal.ID = id
	db := config.GetDB().WithContext(ctx)
	var existing SalesGoal
	if err := db.Where("id = ?", id).Take(&existing).Error; err != nil {
		return nil, normalizeNotFound(err)
	}
	if err := db.Model(&existing).Select("type", "period", "store_id", "seller_id",
		"week_start", "week_end", "target_value", "is_active").Updates(goal).Error; err != nil {
		return nil, err
	}
	return goal, nil
}

func DeleteSalesGoal(ctx context.Context, id int) error {
	result := config.GetDB().WithContext(ctx).Where("id = ?", id).Delete(&SalesGoal{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func GetSalesGoal(ctx context.Context, id int) (*SalesGoal, error) {
	var goal SalesGoal
	if err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&goal).Error; err != nil {
		return nil, normalizeNotFound(err)
	}
	return &goal, nil
}

// ListSalesGoals filters by optional store, type, period and seller.
func ListSalesGoals(ctx context.Context, storeId string, goalType GoalType, period GoalPeriod, sellerId *int) ([]SalesGoal, error) {
	query := config.GetDB().WithContext(ctx).Model(&SalesGoal{})
	if storeId != "" {
		query = query.Where("store_id = ?", storeId)
	}
	if goalType != "" {
		query = query.Where("type = ?", goalType)
	}
	if period != "" {
		query = query.Where("period = ?", period)
	}
	if sellerId != nil {
		query = query.Where("seller_id = ?", *sellerId)
	}

	var goals []SalesGoal
	if err := query.Order("week_start desc").Find(&goals).Error; err != nil {
		return nil, err
	}
	return goals, nil
}

// FindGoalsForOverlap is the dumb persistence pre-filter behind overlap
// validation: active goals sharing (store, type, period) and the same
// sellerId null-ness. The interval predicate itself lives in the goals
// package as a pure function.
func FindGoalsForOverlap(ctx context.Context, storeId string, goalType GoalType, period GoalPeriod, sellerId *int) ([]SalesGoal, error) {
	query := config.GetDB().WithContext(ctx).Model(&SalesGoal{}).
		Where("store_id = ? AND type = ? AND period = ? AND is_active = ?", storeId, goalType, period, true)
	if sellerId != nil {
		query = query.Where("seller_id = ?", *sellerId)
	} else {
		query = query.Where("seller_id IS NULL")
	}

	var goals []SalesGoal
	if err := query.Find(&goals).Error; err != nil {
		return nil, err
	}
	return goals, nil
}

// GetActiveGoalsOn returns active goals whose inclusive range contains the
// given date, optionally scoped to a set of stores.
func GetActiveGoalsOn(ctx context.Context, date time.Time, storeIds []string) ([]SalesGoal, error) {
	day := utils.DateOnly(date)
	query := config.GetDB().WithContext(ctx).Model(&SalesGoal{}).
		Where("is_active = ? AND week_start <= ? AND week_end >= ?", true, day, day)
	if len(storeIds) > 0 {
		query = query.Where("store_id IN ?", storeIds)
	}

	var goals []SalesGoal
	if err := query.Find(&goals).Error; err != nil {
		return nil, err
	}
	return goals, nil
}

// GetGoalsByExactRange returns active goals whose boundaries equal the given
// dates exactly. The weekly payment summary keys on exact week boundaries,
// not on overlap.
func GetGoalsByExactRange(ctx context.Context, start time.Time, end time.Time) ([]SalesGoal, error) {
	var goals []SalesGoal
	err := config.GetDB().WithContext(ctx).Model(&SalesGoal{}).
		Where("is_active = ? AND week_start = ? AND week_end = ?", true, utils.DateOnly(start), utils.DateOnly(end)).
		Find(&goals).Error
	if err != nil {
		return nil, err
	}
	return goals, nil
}
