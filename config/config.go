package config

import (
	"os"
	"strconv"
	"strings"
)

// Config структура конфигурации приложения
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	CORS     CORSConfig
	Shopify  ShopifyConfig
	Warranty WarrantyConfig
	Kafka    KafkaConfig
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Port            string
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
}

// LoggingConfig конфигурация логгера
type LoggingConfig struct {
	Level string
}

// CORSConfig конфигурация CORS-заголовков
type CORSConfig struct {
	AllowOrigin string
}

// ShopifyConfig параметры подключения к Shopify Admin API
type ShopifyConfig struct {
	Store      string
	AdminToken string
	APIVersion string
}

// WarrantyConfig параметры регистрации гарантий
type WarrantyConfig struct {
	MonthsToExpire     int
	ClubTag            string
	MetaobjectType     string
	MetafieldNamespace string
	MetafieldKey       string
}

// KafkaConfig конфигурация публикации событий
type KafkaConfig struct {
	Enabled bool
	Brokers []string
}

// HasStore сообщает, задан ли домен магазина
func (c *ShopifyConfig) HasStore() bool {
	return c.Store != ""
}

// HasToken сообщает, задан ли Admin API токен
func (c *ShopifyConfig) HasToken() bool {
	return c.AdminToken != ""
}

// Missing возвращает список отсутствующих обязательных переменных подключения
func (c *ShopifyConfig) Missing() []string {
	var missing []string
	if !c.HasStore() {
		missing = append(missing, "SHOPIFY_STORE")
	}
	if !c.HasToken() {
		missing = append(missing, "SHOPIFY_ADMIN_TOKEN")
	}
	return missing
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			ShutdownTimeout: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT", 30),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		CORS: CORSConfig{
			AllowOrigin: getEnv("CORS_ALLOW_ORIGIN", "*"),
		},
		Shopify: ShopifyConfig{
			Store:      getEnv("SHOPIFY_STORE", ""),
			AdminToken: getEnv("SHOPIFY_ADMIN_TOKEN", ""),
			APIVersion: getEnv("SHOPIFY_API_VERSION", "2025-01"),
		},
		Warranty: WarrantyConfig{
			MonthsToExpire:     getEnvAsInt("WARRANTY_MONTHS_TO_EXPIRE", 12),
			ClubTag:            getEnv("CLUB_TAG", "clubdvigi"),
			MetaobjectType:     getEnv("WARRANTY_METAOBJECT_TYPE", "warranty_registration"),
			MetafieldNamespace: getEnv("WARRANTY_METAFIELD_NAMESPACE", "custom"),
			MetafieldKey:       getEnv("WARRANTY_METAFIELD_KEY", "registros_de_garantia"),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		},
	}

	return cfg, nil
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int или возвращает значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool или возвращает значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsSlice получает значение переменной окружения как список через запятую
func getEnvAsSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
