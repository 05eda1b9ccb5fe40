package goals

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/grupovitrine/painel_backend/models"
	"github.com/grupovitrine/painel_backend/utils"
)

func resolveUser(c *gin.Context) (*models.User, error) {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || username == "" {
		return nil, errors.New("unauthorized")
	}
	return models.GetUserByUsername(c.Request.Context(), username)
}

func requireRole(c *gin.Context, roles ...models.UserRole) (*models.User, bool) {
	user, err := resolveUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	for _, role := range roles {
		if user.Role == role {
			return user, true
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	return nil, false
}

func respondOverlap(c *gin.Context, err error) bool {
	var overlap *OverlapError
	if errors.As(err, &overlap) {
		c.JSON(http.StatusConflict, gin.H{
			"error":           "goal period overlaps existing goals",
			"conflicting_ids": overlap.ConflictingIds,
		})
		return true
	}
	return false
}

// validateGoalOverlap parses the candidate's dates and runs the overlap
// check. excludeId is 0 on create.
func validateGoalOverlap(c *gin.Context, input *models.NewSalesGoal, excludeId int) bool {
	start, err := utils.ParseDateOnly(input.WeekStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid week_start"})
		return false
	}
	end, err := utils.ParseDateOnly(input.WeekEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid week_end"})
		return false
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "week_end before week_start"})
		return false
	}

	err = CheckOverlappingGoals(c.Request.Context(), input.StoreId, input.Type, input.Period, input.SellerId, start, end, excludeId)
	if err != nil {
		if !respondOverlap(c, err) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return false
	}
	return true
}

func CreateGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireRole(c, models.UserRoleAdmin, models.UserRoleGerente); !ok {
			return
		}
		var input models.NewSalesGoal
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}
		if !validateGoalOverlap(c, &input, 0) {
			return
		}
		goal, err := models.CreateSalesGoal(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, goal)
	}
}

func UpdateGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireRole(c, models.UserRoleAdmin, models.UserRoleGerente); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid goal id"})
			return
		}
		var input models.NewSalesGoal
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}
		if !validateGoalOverlap(c, &input, id) {
			return
		}
		goal, err := models.UpdateSalesGoal(c.Request.Context(), id, &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "goal not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, goal)
	}
}

func DeleteGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireRole(c, models.UserRoleAdmin, models.UserRoleGerente); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid goal id"})
			return
		}
		if err := models.DeleteSalesGoal(c.Request.Context(), id); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "goal not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

func ListGoalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireRole(c, models.UserRoleAdmin, models.UserRoleGerente); !ok {
			return
		}
		var sellerId *int
		if raw := c.Query("seller_id"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				sellerId = &n
			}
		}
		goals, err := models.ListSalesGoals(
			c.Request.Context(),
			c.Query("store_id"),
			models.GoalType(c.Query("type")),
			models.GoalPeriod(c.Query("period")),
			sellerId,
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"goals": goals})
	}
}

func CreateCashierGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireRole(c, models.UserRoleAdmin, models.UserRoleGerente); !ok {
			return
		}
		var input models.NewCashierGoal
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}
		goal, err := models.CreateCashierGoal(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, goal)
	}
}

func UpdateCashierGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireRole(c, models.UserRoleAdmin, models.UserRoleGerente); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid goal id"})
			return
		}
		var input models.NewCashierGoal
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
			return
		}
		goal, err := models.UpdateCashierGoal(c.Request.Context(), id, &input)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "goal not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, goal)
	}
}

func DeleteCashierGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireRole(c, models.UserRoleAdmin, models.UserRoleGerente); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid goal id"})
			return
		}
		if err := models.DeleteCashierGoal(c.Request.Context(), id); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "goal not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

func ListCashierGoalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolveUser(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var cashierId *int
		if user.Role == models.UserRoleCaixa {
			cashierId = &user.ID
		} else if raw := c.Query("cashier_id"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				cashierId = &n
			}
		}
		goals, err := models.ListCashierGoals(c.Request.Context(), c.Query("store_id"), cashierId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"goals": goals})
	}
}

// DashboardHandler dispatches the goal dashboard by role. Vendors see their
// own goals, managers see per-store aggregates, admins see one store or the
// all-stores aggregate.
func DashboardHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolveUser(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		switch user.Role {
		case models.UserRoleVendedor, models.UserRoleCaixa:
			results, err := engine.VendorView(c.Request.Context(), user)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"goals": results})
		case models.UserRoleGerente:
			results, err := engine.ManagerView(c.Request.Context(), user)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"aggregates": results})
		case models.UserRoleAdmin:
			results, err := engine.AdminView(c.Request.Context(), strings.TrimSpace(c.Query("store_id")))
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"aggregates": results})
		default:
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		}
	}
}

// BonusSummaryHandler returns current-period bonuses. Managers are scoped to
// their stores, admins to an optional store filter.
func BonusSummaryHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireRole(c, models.UserRoleAdmin, models.UserRoleGerente)
		if !ok {
			return
		}

		var stores []string
		if user.Role == models.UserRoleGerente {
			stores = user.AssignedStores()
		} else if storeId := strings.TrimSpace(c.Query("store_id")); storeId != "" {
			stores = []string{storeId}
		}

		summary, err := engine.ComputeBonusSummary(c.Request.Context(), stores)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// PaymentSummaryHandler returns the closed previous week's payouts.
func PaymentSummaryHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireRole(c, models.UserRoleAdmin); !ok {
			return
		}
		summary, err := engine.ComputeWeeklyPaymentSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
