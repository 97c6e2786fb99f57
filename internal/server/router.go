// internal/server/router.go
//
// 路由註冊與 middleware。handler.go 定義如何處理請求，這裡決定請求如何被導向。
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Router 建立 gin engine；gin 模式由呼叫端以 gin.SetMode 決定。
func (s *Server) Router() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	// REST API
	r.GET("/api/openapi.yaml", s.openapiSpec)
	api := r.Group("/api/accounts", s.validateRequest)
	{
		api.GET("", s.listAccounts)
		api.POST("", s.createAccount)
		api.PUT("/yields", s.generateYields)
		api.GET("/:number", s.getAccount)
		api.GET("/:number/transactions", s.listTransactions)
		api.PUT("/:number/deposit", s.deposit)
		api.PUT("/:number/withdraw", s.withdraw)
		api.PUT("/:number/transfer", s.transfer)
	}

	// 網頁介面
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/accounts/") })
	web := r.Group("/accounts")
	{
		web.GET("/", s.pageList)
		web.GET("/create/", s.pageCreate)
		web.POST("/create/", s.submitCreate)
		web.GET("/yields/", s.pageYields)
		web.POST("/yields/", s.submitYields)
		web.GET("/:number/", s.pageDetail)
		web.POST("/:number/", s.submitOperation)
	}

	return r
}

// requestLogger 以 slog 記錄每個請求；5xx 以 Error 等級輸出。
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "HTTP request", attrs...)
	}
}
