package rest

import (
	"net/http"

	"github.com/dvigi/clubdvigi-api/config"
	"github.com/dvigi/clubdvigi-api/internal/api/rest/handlers"
	"github.com/dvigi/clubdvigi-api/internal/api/rest/middleware"
	"github.com/dvigi/clubdvigi-api/internal/integration/shopify"
	"github.com/dvigi/clubdvigi-api/internal/kafka/producer"
	"github.com/dvigi/clubdvigi-api/internal/metrics"
	"github.com/dvigi/clubdvigi-api/internal/service"
	"github.com/dvigi/clubdvigi-api/pkg/logger"
	"github.com/dvigi/clubdvigi-api/pkg/res"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(cfg *config.Config, events producer.ClubProducer, registry *prometheus.Registry, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Подключение middleware: CORS отвечает на preflight до любой логики
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORSMiddleware(cfg.CORS))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("Panic recovered: %v", recovered)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error: "UNCAUGHT",
		}, http.StatusInternalServerError, log)
		c.Abort()
	}))

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Создание Shopify клиента и сервисов
	shopifyMetrics := metrics.NewShopifyMetrics(registry, log)
	shopifyClient := shopify.NewClient(shopify.Config{
		Store:      cfg.Shopify.Store,
		AdminToken: cfg.Shopify.AdminToken,
		APIVersion: cfg.Shopify.APIVersion,
	}, shopifyMetrics, log)

	lookupService := service.NewLookupService(shopifyClient, cfg.Shopify, shopifyMetrics, log)
	upsertService := service.NewUpsertService(shopifyClient, cfg.Shopify, cfg.Warranty, shopifyMetrics, events, log)

	// Инициализация обработчиков
	lookupHandler := handlers.NewLookupHandler(lookupService, log)
	upsertHandler := handlers.NewUpsertHandler(upsertService, log)

	// API для витрины
	api := r.Group("/api")
	{
		api.GET("/lookup", lookupHandler.Lookup)
		api.POST("/lookup", lookupHandler.Lookup)
		api.POST("/upsert", upsertHandler.Upsert)
	}

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"ok":    false,
			"error": "Método no permitido",
		})
	})

	return r
}
