// internal/server/response.go
//
// 錯誤回應集中於此：領域錯誤對應 HTTP 狀態碼，格式一律為 {"error": "..."}。
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bankapp/internal/bank"
)

// statusFor 將錯誤映射為 HTTP 狀態碼。
func statusFor(err error) int {
	switch {
	case errors.Is(err, bank.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, bank.ErrBalanceLimit),
		errors.Is(err, bank.ErrNumberInUse):
		return http.StatusConflict
	case errors.Is(err, bank.ErrNegativeAmount),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrSameAccount),
		errors.Is(err, bank.ErrInvalidNumber),
		errors.Is(err, bank.ErrInvalidKind),
		errors.Is(err, bank.ErrNotSavings),
		errors.Is(err, bank.ErrNegativeRate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeErr 輸出錯誤並中止後續 handler。
// 500 不外露內部訊息，原始錯誤掛在 c.Errors 交給請求日誌。
func writeErr(c *gin.Context, err error) {
	_ = c.Error(err)
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = http.StatusText(code)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// badRequest 用於無法解析的請求內容。
func badRequest(c *gin.Context, err error) {
	msg := "invalid request"
	if err != nil {
		_ = c.Error(err)
		msg = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
