package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/dvigi/clubdvigi-api/config"
	"github.com/dvigi/clubdvigi-api/internal/api/rest"
	"github.com/dvigi/clubdvigi-api/internal/kafka"
	"github.com/dvigi/clubdvigi-api/internal/kafka/producer"
	"github.com/dvigi/clubdvigi-api/internal/metrics"
	"github.com/dvigi/clubdvigi-api/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

var log *logger.Logger

func init() {
	// Загружаем переменные окружения
	if err := godotenv.Load(); err != nil {
		// Пропускаем ошибку, если .env файл не найден
	}

	// Инициализация логгера
	logLevel := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if os.Getenv("DEBUG") == "true" {
		logLevel = logger.DEBUG
	}
	log = logger.New(logLevel)
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	// Отсутствующее подключение к Shopify не мешает старту: каждый
	// запрос вернет ошибку конфигурации до исходящего вызова
	if missing := cfg.Shopify.Missing(); len(missing) > 0 {
		log.Warn("Missing Shopify configuration: %v", missing)
	}

	// Инициализация Prometheus
	promRegistry := prometheus.NewRegistry()
	systemMetrics := metrics.NewSystemMetrics(promRegistry, log)

	// Запускаем сбор системных метрик
	systemMetrics.StartRecording(15 * time.Second)
	defer systemMetrics.Stop()

	// Инициализация Kafka продюсера, если публикация событий включена
	var events producer.ClubProducer
	if cfg.Kafka.Enabled {
		kafkaConfig := kafka.NewConfig(cfg.Kafka.Brokers)
		saramaConfig := kafka.NewSaramaConfig(kafkaConfig, log)

		kafkaProducer, err := sarama.NewSyncProducer(kafkaConfig.Brokers, saramaConfig)
		if err != nil {
			log.Fatal("Failed to create Kafka producer: %v", err)
		}

		events = producer.NewKafkaClubProducer(kafkaProducer, log)
		defer events.Close()
	}

	// Установка режима Gin
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Настройка маршрутизатора
	router := rest.SetupRouter(cfg, events, promRegistry, log)

	// Создание и запуск HTTP сервера
	server := rest.NewServer(router, cfg, log)

	// Запуск сервера в горутине
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}
