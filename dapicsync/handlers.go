package dapicsync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/models"
	"github.com/grupovitrine/painel_backend/utils"
)

type syncRequest struct {
	StoreId   string `json:"store_id"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Mode      string `json:"mode"`
}

func resolveUser(c *gin.Context) (*models.User, error) {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || username == "" {
		return nil, errors.New("unauthorized")
	}
	return models.GetUserByUsername(c.Request.Context(), username)
}

func requireAdmin(c *gin.Context) (*models.User, bool) {
	// Token claims reject non-admins before the user lookup; the role on
	// the loaded user stays authoritative.
	if isAdmin, ok := utils.GetIsAdminFromContext(c.Request.Context()); ok && !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return nil, false
	}
	user, err := resolveUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	if user.Role != models.UserRoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return nil, false
	}
	return user, true
}

// SyncHandler triggers a manual sync for one store or every store.
func SyncHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}

		var req syncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date are required"})
			return
		}

		start, err := utils.ParseDateOnly(req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
			return
		}
		end, err := utils.ParseDateOnly(req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
			return
		}
		if end.Before(start) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date before start_date"})
			return
		}

		mode := models.SyncModeReplace
		if strings.TrimSpace(req.Mode) == models.SyncModeAdditive {
			mode = models.SyncModeAdditive
		}

		storeId := strings.TrimSpace(req.StoreId)
		if storeId == "" || storeId == config.StoreAll {
			results := svc.SyncAllStores(c.Request.Context(), start, end, mode, models.SyncTriggeredManual)
			c.JSON(http.StatusOK, gin.H{"results": results})
			return
		}
		if !config.IsValidStore(storeId) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown store"})
			return
		}

		var result *StoreSyncResult
		if mode == models.SyncModeAdditive {
			result, err = svc.SyncStoreAdditive(c.Request.Context(), storeId, start, end, models.SyncTriggeredManual)
		} else {
			result, err = svc.SyncStore(c.Request.Context(), storeId, start, end, models.SyncTriggeredManual)
		}
		if err != nil {
			if errors.Is(err, ErrAlreadySyncing) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// SyncFullHistoryHandler replays everything from the history start date.
func SyncFullHistoryHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		results := svc.SyncFullHistory(c.Request.Context(), models.SyncTriggeredManual)
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

// ScheduleSyncHandler enqueues a scheduled sync through Pub/Sub instead of
// running it inline, so the push subscription fans it out with the same
// locking as the Cloud Scheduler triggers.
func ScheduleSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		var req struct {
			Scope string `json:"scope" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scope is required"})
			return
		}
		if !ValidScheduledScope(req.Scope) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown scope"})
			return
		}
		if err := PublishScheduledSync(c.Request.Context(), req.Scope); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"scheduled": req.Scope})
	}
}

// SyncCurrentMonthHandler replays the current month to date.
func SyncCurrentMonthHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		results := svc.SyncCurrentMonth(c.Request.Context(), models.SyncTriggeredManual)
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

// RunsHandler lists recent sync runs, optionally filtered by store.
func RunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}
		runs, err := models.ListSyncRuns(c.Request.Context(), c.Query("store_id"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

// RunDetailHandler returns one run with its per-record errors.
func RunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		run, errs, err := models.GetSyncRun(c.Request.Context(), uint(id))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run, "errors": errs})
	}
}

// ReferenceHandler proxies upstream reference data (clients, products) with
// the short response cache. kind must be "clientes" or "produtos".
func ReferenceHandler(client *Client, kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveUser(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		storeId := strings.TrimSpace(c.Query("store_id"))
		if storeId == "" {
			storeId = config.StoreAll
		}
		if storeId != config.StoreAll && !config.IsValidStore(storeId) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown store"})
			return
		}
		results, storeErrors := client.FetchReference(c.Request.Context(), kind, storeId)
		c.JSON(http.StatusOK, gin.H{"results": results, "errors": storeErrors})
	}
}

// LiveSalesHandler fetches one sales page straight from the upstream for
// every store, without persisting anything.
func LiveSalesHandler(client *Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		start, err := utils.ParseDateOnly(c.Query("start_date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
			return
		}
		end, err := utils.ParseDateOnly(c.Query("end_date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
			return
		}
		page := 1
		if raw := c.Query("page"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				page = n
			}
		}
		results, storeErrors := client.FanOutSales(c.Request.Context(), page, start, end)
		c.JSON(http.StatusOK, gin.H{"results": results, "errors": storeErrors})
	}
}
