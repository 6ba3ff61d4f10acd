package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/middlewares"
	"github.com/rasamasa/franchise_backend/models"
	"github.com/rasamasa/franchise_backend/utils"
	"github.com/rasamasa/franchise_backend/workflow"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("franchise-backend")

func bindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func respondError(c *gin.Context, err error) {
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func requireActor(c *gin.Context) bool {
	if _, _, err := models.GetActorFromContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	return true
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		token, user, err := models.Login(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	}
}

func registerUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		if role, _ := utils.GetUserRoleFromContext(c.Request.Context()); role != "ADMIN" {
			c.JSON(http.StatusForbidden, gin.H{"error": "only an admin can register users"})
			return
		}
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		if role, _ := utils.GetUserRoleFromContext(c.Request.Context()); role != "ADMIN" {
			c.JSON(http.StatusForbidden, gin.H{"error": "only an admin can list users"})
			return
		}
		users, err := models.ListUsers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func getUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		if role, _ := utils.GetUserRoleFromContext(c.Request.Context()); role != "ADMIN" {
			c.JSON(http.StatusForbidden, gin.H{"error": "only an admin can view users"})
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		user, err := models.GetUser(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func createIngredientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		var input models.NewIngredient
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		ingredient, err := models.CreateIngredient(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, ingredient)
	}
}

func updateIngredientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewIngredient
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		ingredient, err := models.UpdateIngredient(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ingredient)
	}
}

func deleteIngredientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		ingredient, err := models.DeleteIngredient(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ingredient)
	}
}

func listIngredientsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("name")
		ingredients, err := models.ListIngredients(c.Request.Context(), &name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ingredients)
	}
}

func getIngredientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		ingredient, err := models.GetActiveIngredient(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ingredient)
	}
}

func getOutletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		outlet, err := models.GetActiveOutlet(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, outlet)
	}
}

func createOutletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		var input models.NewOutlet
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		outlet, err := models.CreateOutlet(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, outlet)
	}
}

func updateOutletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewOutlet
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		outlet, err := models.UpdateOutlet(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, outlet)
	}
}

func deleteOutletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		outlet, err := models.DeleteOutlet(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, outlet)
	}
}

func listOutletsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("name")
		outlets, err := models.ListOutlets(c.Request.Context(), &name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, outlets)
	}
}

func createTransactionHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		var input models.NewInventoryTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		trx, err := workflow.RecordInventoryTransaction(c.Request.Context(), logger, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, trx)
	}
}

func listTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.InventoryTransactionFilter{
			Kind:       c.Query("kind"),
			SourceType: c.Query("source_type"),
		}
		filter.OutletId, _ = strconv.Atoi(c.Query("outlet_id"))
		filter.IngredientId, _ = strconv.Atoi(c.Query("ingredient_id"))
		if raw := c.Query("date_from"); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				filter.DateFrom = &t
			}
		}
		if raw := c.Query("date_to"); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				filter.DateTo = &t
			}
		}
		if raw := c.Query("is_valid"); raw != "" {
			v := raw == "true" || raw == "1"
			filter.IsValid = &v
		}
		if raw := c.Query("is_calculated"); raw != "" {
			v := raw == "true" || raw == "1"
			filter.IsCalculated = &v
		}
		results, err := models.ListInventoryTransactions(c.Request.Context(), &filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}

func getTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		trx, err := models.GetInventoryTransaction(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trx)
	}
}

func setTransactionValidityHandler(logger *logrus.Logger, desired bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		trx, err := workflow.SetTransactionValidity(c.Request.Context(), logger, id, desired)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trx)
	}
}

func deleteTransactionHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		trx, err := workflow.DeleteInventoryTransaction(c.Request.Context(), logger, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trx)
	}
}

func getOutletStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		stock, err := models.GetOutletStock(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stock)
	}
}

func updateOutletStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var patch map[string]interface{}
		if err := c.ShouldBindJSON(&patch); err != nil {
			bindError(c, err)
			return
		}
		stock, err := models.UpdateOutletStock(c.Request.Context(), id, patch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stock)
	}
}

func reconcileOutletHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		spanCtx, span := tracer.Start(c.Request.Context(), "stock.reconcile")
		defer span.End()
		_, actorName, _ := models.GetActorFromContext(spanCtx)
		if err := workflow.ReconcileOutletStock(spanCtx, logger, id, actorName); err != nil {
			respondError(c, err)
			return
		}
		stock, err := models.GetOutletStock(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stock)
	}
}

func reconcileAllHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		if role, _ := utils.GetUserRoleFromContext(c.Request.Context()); role != "ADMIN" {
			c.JSON(http.StatusForbidden, gin.H{"error": "only an admin can reconcile all outlets"})
			return
		}
		_, actorName, _ := models.GetActorFromContext(c.Request.Context())
		if err := workflow.ReconcileAllOutletStocks(c.Request.Context(), logger, actorName); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func createOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		var input models.NewOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		order, err := models.CreateOrder(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		outletId, _ := strconv.Atoi(c.Query("outlet_id"))
		status := c.Query("status")
		orders, err := models.ListOrders(c.Request.Context(), outletId, &status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := models.GetOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func acceptOrderItemHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		item, err := workflow.AcceptOrderItem(c.Request.Context(), logger, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func unacceptOrderItemHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		item, err := workflow.UnacceptOrderItem(c.Request.Context(), logger, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func createSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		var input models.NewSale
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		sale, err := models.CreateSale(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sale)
	}
}

func listSalesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		outletId, _ := strconv.Atoi(c.Query("outlet_id"))
		var dateFrom, dateTo *time.Time
		if raw := c.Query("date_from"); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				dateFrom = &t
			}
		}
		if raw := c.Query("date_to"); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				dateTo = &t
			}
		}
		sales, err := models.ListSales(c.Request.Context(), outletId, dateFrom, dateTo)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sales)
	}
}

func getSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		sale, err := models.GetSale(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sale)
	}
}

func createServiceRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		var input models.NewServiceRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		request, err := models.CreateServiceRequest(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, request)
	}
}

func listServiceRequestsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.Query("status")
		requests, err := models.ListServiceRequests(c.Request.Context(), &status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, requests)
	}
}

type decideRequestInput struct {
	Notes string `json:"notes"`
}

func approveRequestHandler(logger *logrus.Logger, runner *workflow.BackgroundRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input decideRequestInput
		_ = c.ShouldBindJSON(&input)
		request, err := workflow.ApproveServiceRequest(c.Request.Context(), logger, runner, id, input.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, request)
	}
}

func rejectRequestHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireActor(c) {
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input decideRequestInput
		_ = c.ShouldBindJSON(&input)
		request, err := workflow.RejectServiceRequest(c.Request.Context(), logger, id, input.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, request)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
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

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()

	// Correlation IDs: generate once per request and attach to context.
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
		if config.GetDB() == nil {
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
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	runner := workflow.NewBackgroundRunner(logger)

	r.POST("/auth/login", loginHandler())
	r.POST("/auth/register", registerUserHandler())
	r.GET("/users", listUsersHandler())
	r.GET("/users/:id", getUserHandler())

	r.POST("/ingredients", createIngredientHandler())
	r.GET("/ingredients", listIngredientsHandler())
	r.GET("/ingredients/:id", getIngredientHandler())
	r.PUT("/ingredients/:id", updateIngredientHandler())
	r.DELETE("/ingredients/:id", deleteIngredientHandler())

	r.POST("/outlets", createOutletHandler())
	r.GET("/outlets", listOutletsHandler())
	r.GET("/outlets/:id", getOutletHandler())
	r.PUT("/outlets/:id", updateOutletHandler())
	r.DELETE("/outlets/:id", deleteOutletHandler())

	r.POST("/inventory-transactions", createTransactionHandler(logger))
	r.GET("/inventory-transactions", listTransactionsHandler())
	r.GET("/inventory-transactions/:id", getTransactionHandler())
	r.POST("/inventory-transactions/:id/invalidate", setTransactionValidityHandler(logger, false))
	r.POST("/inventory-transactions/:id/revalidate", setTransactionValidityHandler(logger, true))
	r.DELETE("/inventory-transactions/:id", deleteTransactionHandler(logger))

	r.GET("/outlets/:id/stock", getOutletStockHandler())
	r.PUT("/outlets/:id/stock", updateOutletStockHandler())
	r.POST("/outlets/:id/stock/reconcile", reconcileOutletHandler(logger))
	r.POST("/stock/reconcile-all", reconcileAllHandler(logger))

	r.POST("/orders", createOrderHandler())
	r.GET("/orders", listOrdersHandler())
	r.GET("/orders/:id", getOrderHandler())
	r.POST("/order-items/:id/accept", acceptOrderItemHandler(logger))
	r.POST("/order-items/:id/unaccept", unacceptOrderItemHandler(logger))

	r.POST("/sales", createSaleHandler())
	r.GET("/sales", listSalesHandler())
	r.GET("/sales/:id", getSaleHandler())

	r.POST("/requests", createServiceRequestHandler())
	r.GET("/requests", listServiceRequestsHandler())
	r.POST("/requests/:id/approve", approveRequestHandler(logger, runner))
	r.POST("/requests/:id/reject", rejectRequestHandler(logger))

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	runner.Start()

	logger.WithFields(logrus.Fields{
		"port": port,
	}).Info("server started")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we drain.
	runner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
