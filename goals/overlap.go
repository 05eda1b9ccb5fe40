package goals

import (
	"context"
	"fmt"
	"time"

	"github.com/grupovitrine/painel_backend/models"
	"github.com/grupovitrine/painel_backend/utils"
)

// OverlapError carries the ids of existing goals whose period intersects the
// candidate's. Handlers surface it as a 409 with the conflicting ids.
type OverlapError struct {
	ConflictingIds []int
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("goal period overlaps existing goals %v", e.ConflictingIds)
}

// RangesOverlap is the standard three-clause inclusive interval test:
// A starts inside B, A ends inside B, or A fully contains B.
func RangesOverlap(startA, endA, startB, endB time.Time) bool {
	startA, endA = utils.DateOnly(startA), utils.DateOnly(endA)
	startB, endB = utils.DateOnly(startB), utils.DateOnly(endB)

	within := func(t, start, end time.Time) bool {
		return !t.Before(start) && !t.After(end)
	}
	return within(startA, startB, endB) ||
		within(endA, startB, endB) ||
		(startA.Before(startB) && endA.After(endB))
}

// CheckOverlappingGoals validates a candidate goal period against existing
// active goals of the same (store, type, period, seller null-ness). excludeId
// keeps an update from conflicting with itself; pass 0 on create.
func CheckOverlappingGoals(ctx context.Context, storeId string, goalType models.GoalType, period models.GoalPeriod, sellerId *int, start, end time.Time, excludeId int) error {
	existing, err := models.FindGoalsForOverlap(ctx, storeId, goalType, period, sellerId)
	if err != nil {
		return err
	}

	var conflicting []int
	for _, goal := range existing {
		if goal.ID == excludeId {
			continue
		}
		if RangesOverlap(start, end, goal.WeekStart, goal.WeekEnd) {
			conflicting = append(conflicting, goal.ID)
		}
	}
	if len(conflicting) > 0 {
		return &OverlapError{ConflictingIds: conflicting}
	}
	return nil
}
