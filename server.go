package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/dapicsync"
	"github.com/grupovitrine/painel_backend/goals"
	"github.com/grupovitrine/painel_backend/middlewares"
	"github.com/grupovitrine/painel_backend/models"
	"github.com/grupovitrine/painel_backend/pattern"
	"github.com/grupovitrine/painel_backend/utils"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	dapicClient := dapicsync.NewClient()
	syncService := dapicsync.NewService(dapicClient)
	estimator := pattern.NewEstimator()
	syncService.OnRunComplete(estimator.Invalidate)
	goalEngine := goals.NewEngine(estimator)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(func(c *gin.Context) {
		if c.GetHeader("token") == "" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token := strings.TrimSpace(auth[7:])
				if token != "" {
					c.Request.Header.Set("token", token)
				}
			}
		}
		c.Next()
	})
	r.Use(middlewares.SessionMiddleware())
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/api/login", loginHandler())
	r.POST("/api/logout", logoutHandler())

	// Dapic synchronization.
	r.POST("/api/sync", dapicsync.SyncHandler(syncService))
	r.POST("/api/sync/full-history", dapicsync.SyncFullHistoryHandler(syncService))
	r.POST("/api/sync/current-month", dapicsync.SyncCurrentMonthHandler(syncService))
	r.POST("/api/sync/schedule", dapicsync.ScheduleSyncHandler())
	r.GET("/api/sync/runs", dapicsync.RunsHandler())
	r.GET("/api/sync/runs/:id", dapicsync.RunDetailHandler())
	r.GET("/api/dapic/clients", dapicsync.ReferenceHandler(dapicClient, "clientes"))
	r.GET("/api/dapic/products", dapicsync.ReferenceHandler(dapicClient, "produtos"))
	r.GET("/api/dapic/sales", dapicsync.LiveSalesHandler(dapicClient))

	// Goals and bonuses.
	r.POST("/api/goals", goals.CreateGoalHandler())
	r.PUT("/api/goals/:id", goals.UpdateGoalHandler())
	r.DELETE("/api/goals/:id", goals.DeleteGoalHandler())
	r.GET("/api/goals", goals.ListGoalsHandler())
	r.POST("/api/cashier-goals", goals.CreateCashierGoalHandler())
	r.PUT("/api/cashier-goals/:id", goals.UpdateCashierGoalHandler())
	r.DELETE("/api/cashier-goals/:id", goals.DeleteCashierGoalHandler())
	r.GET("/api/cashier-goals", goals.ListCashierGoalsHandler())
	r.GET("/api/dashboard/goals", goals.DashboardHandler(goalEngine))
	r.GET("/api/bonus-summary", goals.BonusSummaryHandler(goalEngine))
	r.GET("/api/payment-summary", goals.PaymentSummaryHandler(goalEngine))

	// Pub/Sub push endpoint for scheduled syncs.
	r.POST("/pubsub/dapic-sync", dapicsync.PubSubPushHandler(syncService))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		token, user, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := utils.GetTokenFromContext(c.Request.Context())
		if !ok || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
			return
		}
		if err := models.Logout(c.Request.Context(), token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logged_out": true})
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		fields := logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}
		if userId, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
			fields["user_id"] = userId
		}
		logger.WithFields(fields).Info("request")
	}
}
