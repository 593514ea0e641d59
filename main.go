package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"shop-svc/cache"
	"shop-svc/checkout"
	"shop-svc/database"
	"shop-svc/gateway"
	"shop-svc/handlers"
	"shop-svc/kafka"
	"shop-svc/ledger"
	"shop-svc/mailer"
	"shop-svc/middleware"
)

const serviceName = "shop-svc"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	shutdownTracing, err := middleware.InitTracing(serviceName)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	rdb, err := cache.InitRedis(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer rdb.Close()
	productCache := cache.NewProductCache(rdb, logger)

	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()
	notifier := kafka.NewOrderNotifier(producer, logger)

	store := ledger.NewStore(db, logger)
	finalizer := checkout.NewFinalizer(store, notifier, productCache, logger)
	gatewayClient := gateway.NewClient(logger)

	jwtSecret := getEnv("JWT_SECRET", "dev-secret-change-me")
	webhookSecret := getEnv("WEBHOOK_SECRET", "")
	if webhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET is not set, all webhook deliveries will be rejected")
	}

	authHandler := handlers.NewAuthHandler(db, jwtSecret, logger)
	productHandler := handlers.NewProductHandler(db, productCache, logger)
	categoryHandler := handlers.NewCategoryHandler(db, logger)
	orderHandler := handlers.NewOrderHandler(db, finalizer, logger)
	checkoutHandler := handlers.NewCheckoutHandler(db, store, gatewayClient, finalizer, logger)
	webhookHandler := handlers.NewWebhookHandler(store, finalizer, webhookSecret, logger)
	storeHandler := handlers.NewStoreHandler(db, logger)
	transactionHandler := handlers.NewTransactionHandler(db, logger)
	analyticsHandler := handlers.NewAnalyticsHandler(db, logger)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Confirmation emails ride the order_events topic; the consumer is
	// in-process but decoupled from the request path.
	mailConsumer := mailer.NewConsumer(mailer.NewMailer(logger), logger)
	defer mailConsumer.Close()
	go func() {
		if err := mailConsumer.Run(rootCtx); err != nil {
			logger.Error("Mail consumer stopped", zap.Error(err))
		}
	}()

	go runPurchaseSweeper(rootCtx, store, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	api := router.Group("/api/v1")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)

		api.GET("/products", productHandler.GetProducts)
		api.GET("/products/:id", productHandler.GetProduct)
		api.GET("/categories", categoryHandler.GetCategories)
		api.GET("/categories/:id/products", categoryHandler.GetCategoryProducts)
		api.GET("/store", storeHandler.GetStoreSettings)

		api.POST("/orders", orderHandler.CreateOrder)
		api.GET("/orders/:orderId", orderHandler.GetOrder)

		api.POST("/checkout/card", checkoutHandler.InitiateCardCheckout)
		api.GET("/checkout/verify", checkoutHandler.CompleteCardCheckout)

		api.POST("/webhooks/payment", webhookHandler.HandlePaymentWebhook)
	}

	authed := api.Group("")
	authed.Use(middleware.AuthRequired(jwtSecret))
	{
		authed.GET("/me", authHandler.GetProfile)
		authed.PUT("/me", authHandler.UpdateProfile)
		authed.GET("/users/:userId/orders", orderHandler.GetUserOrders)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(jwtSecret), middleware.AdminOnly())
	{
		admin.POST("/products", productHandler.CreateProduct)
		admin.PUT("/products/:id", productHandler.UpdateProduct)
		admin.DELETE("/products/:id", productHandler.DeleteProduct)

		admin.POST("/categories", categoryHandler.CreateCategory)
		admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)

		admin.GET("/orders", orderHandler.GetAllOrders)
		admin.GET("/orders/latest", orderHandler.GetLatestOrders)
		admin.PUT("/orders/:id/status", orderHandler.UpdateOrderStatus)
		admin.DELETE("/orders/:id", orderHandler.DeleteOrder)

		admin.PUT("/store", storeHandler.UpdateStoreSettings)

		admin.GET("/transactions", transactionHandler.GetTransactions)
		admin.GET("/transactions/:txRef", transactionHandler.GetTransaction)

		admin.GET("/analytics/summary", analyticsHandler.GetSummary)
		admin.GET("/analytics/monthly-sales", analyticsHandler.GetMonthlySales)
		admin.GET("/analytics/top-products", analyticsHandler.GetTopProducts)
	}

	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// runPurchaseSweeper removes abandoned card checkouts past their TTL.
func runPurchaseSweeper(ctx context.Context, store *ledger.Store, logger *zap.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpiredPurchases(ctx)
			if err != nil {
				logger.Error("Failed to sweep expired purchases", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Swept expired pending purchases", zap.Int64("count", n))
			}
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
