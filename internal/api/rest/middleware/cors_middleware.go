package middleware

import (
	"net/http"

	"github.com/dvigi/clubdvigi-api/config"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware выставляет CORS-заголовки на каждый ответ и отвечает
// на preflight-запросы OPTIONS до любой другой логики
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowOrigin := cfg.AllowOrigin
	if allowOrigin == "" {
		allowOrigin = "*"
	}

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowOrigin)
		c.Header("Access-Control-Allow-Methods", "POST,GET,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
