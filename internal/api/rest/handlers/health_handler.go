package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck обработчик для проверки работоспособности сервиса.
// Подключение к Shopify не проверяется: для этого есть checkshop=1.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "clubdvigi-api",
		"time":    time.Now().Format(time.RFC3339),
	})
}
