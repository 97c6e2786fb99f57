// internal/server/handler.go
//
// Package server 提供 REST API（/api）與網頁介面，作為 bank 模組的應用層。
// handler 只負責解析請求、呼叫 bank 層、回傳 JSON；
// 快取、事件與指標都由 bank 層在交易提交後處理。
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bankapp/internal/bank"
)

// Server 為 HTTP 層核心結構。
type Server struct {
	Bank *bank.Bank

	logger  *slog.Logger
	metrics http.Handler
	api     *apiContract
	pages   *pages
}

// Option 設定 Server。
type Option func(*Server)

// WithLogger 指定請求日誌使用的 logger。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsHandler 掛上 GET /metrics；未設定時不提供該路徑。
func WithMetricsHandler(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// NewServer 建立 HTTP 伺服器；內嵌的 OpenAPI 文件與模板在此載入，失敗即回傳錯誤。
func NewServer(b *bank.Bank, opts ...Option) (*Server, error) {
	s := &Server{Bank: b, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	api, err := loadContract()
	if err != nil {
		return nil, err
	}
	p, err := loadPages()
	if err != nil {
		return nil, err
	}
	s.api, s.pages = api, p
	return s, nil
}

type accountSummary struct {
	ID     uuid.UUID `json:"id"`
	Number uint      `json:"number"`
	Type   bank.Kind `json:"type"`
}

type accountDetail struct {
	ID      uuid.UUID `json:"id"`
	Number  uint      `json:"number"`
	Balance string    `json:"balance"`
	Type    bank.Kind `json:"type"`
	Points  *int      `json:"points,omitempty"`
}

type transactionView struct {
	Kind         bank.TxKind `json:"kind"`
	Amount       string      `json:"amount"`
	BalanceAfter string      `json:"balance_after"`
	PointsEarned int         `json:"points_earned,omitempty"`
	Counterparty uint        `json:"counter_account,omitempty"`
	Time         string      `json:"time"`
}

func summaryOf(a *bank.Account) accountSummary {
	return accountSummary{ID: a.ID, Number: a.Number, Type: a.Kind}
}

// detailOf 只有 bonus 帳戶輸出 points。
func detailOf(a *bank.Account) accountDetail {
	d := accountDetail{ID: a.ID, Number: a.Number, Balance: a.Balance.StringFixed(2), Type: a.Kind}
	if a.Kind == bank.KindBonus {
		points := a.Points
		d.Points = &points
	}
	return d
}

// listAccounts: GET /api/accounts
func (s *Server) listAccounts(c *gin.Context) {
	accts, err := s.Bank.List(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	out := make([]accountSummary, 0, len(accts))
	for _, a := range accts {
		out = append(out, summaryOf(a))
	}
	c.JSON(http.StatusOK, out)
}

// createAccount: POST /api/accounts
func (s *Server) createAccount(c *gin.Context) {
	var req struct {
		Number uint   `json:"number"`
		Type   string `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	kind, err := bank.ParseKind(req.Type)
	if err != nil {
		writeErr(c, err)
		return
	}
	a, err := s.Bank.Open(c.Request.Context(), req.Number, kind)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, summaryOf(a))
}

// getAccount: GET /api/accounts/:number
func (s *Server) getAccount(c *gin.Context) {
	number, ok := pathNumber(c)
	if !ok {
		return
	}
	a, err := s.Bank.Get(c.Request.Context(), number)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, detailOf(a))
}

// listTransactions: GET /api/accounts/:number/transactions?limit=N
func (s *Server) listTransactions(c *gin.Context) {
	number, ok := pathNumber(c)
	if !ok {
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(c, err)
			return
		}
		limit = n
	}
	txs, err := s.Bank.Transactions(c.Request.Context(), number, limit)
	if err != nil {
		writeErr(c, err)
		return
	}
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionView{
			Kind:         t.Kind,
			Amount:       t.Amount.StringFixed(2),
			BalanceAfter: t.BalanceAfter.StringFixed(2),
			PointsEarned: t.PointsEarned,
			Counterparty: t.Counterparty,
			Time:         t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

type balanceOp func(ctx context.Context, number uint, amount decimal.Decimal) (*bank.Account, error)

// deposit: PUT /api/accounts/:number/deposit
func (s *Server) deposit(c *gin.Context) { s.applyBalanceOp(c, s.Bank.Deposit) }

// withdraw: PUT /api/accounts/:number/withdraw
func (s *Server) withdraw(c *gin.Context) { s.applyBalanceOp(c, s.Bank.Withdraw) }

func (s *Server) applyBalanceOp(c *gin.Context, op balanceOp) {
	number, ok := pathNumber(c)
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := op(c.Request.Context(), number, req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"amount":  req.Amount.StringFixed(2),
		"balance": a.Balance.StringFixed(2),
	})
}

// transfer: PUT /api/accounts/:number/transfer
func (s *Server) transfer(c *gin.Context) {
	number, ok := pathNumber(c)
	if !ok {
		return
	}
	var req struct {
		To     uint            `json:"to"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	from, _, err := s.Bank.Transfer(c.Request.Context(), number, req.To, req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"amount":  req.Amount.StringFixed(2),
		"to":      req.To,
		"balance": from.Balance.StringFixed(2),
	})
}

// generateYields: PUT /api/accounts/yields
func (s *Server) generateYields(c *gin.Context) {
	var req struct {
		Tax decimal.Decimal `json:"tax"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	report, err := s.Bank.GenerateYields(c.Request.Context(), req.Tax)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"tax":      req.Tax.StringFixed(2),
		"accounts": len(report.Credits),
		"total":    report.Total.StringFixed(2),
	})
}

// health: GET /health，可供存活檢查 (liveness) 使用。
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// pathNumber 解析 :number；超出 1..MaxNumber 一律視為帳戶不存在。
func pathNumber(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("number"), 10, 64)
	if err != nil || n == 0 || n > bank.MaxNumber {
		writeErr(c, bank.ErrNotFound)
		return 0, false
	}
	return uint(n), true
}
