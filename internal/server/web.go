// internal/server/web.go
//
// 網頁介面：pongo2 模板內嵌於執行檔。
// 表單送出後一律 redirect（POST/Redirect/GET），提示訊息經由 query string 傳遞，
// 顯示前以 bluemonday 清洗。
package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"bankapp/internal/bank"
)

//go:embed templates/*.html
var templateFS embed.FS

// recentTransactions 為明細頁顯示的交易筆數。
const recentTransactions = 10

var (
	errMissingTarget = errors.New("choose the account to transfer to")
	errBadAmount     = errors.New("enter a valid amount")
	errBadNumber     = errors.New("enter a valid account number")
)

var (
	flashPolicy     *bluemonday.Policy
	flashPolicyOnce sync.Once
)

// sanitizeFlash 移除 query string 帶入的任何標記。
// 輸出已是跳脫過的純文字，模板以 safe 輸出。
func sanitizeFlash(s string) string {
	flashPolicyOnce.Do(func() {
		flashPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(flashPolicy.Sanitize(s))
}

type pages struct {
	tpls map[string]*pongo2.Template
}

func loadPages() (*pages, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	set := pongo2.NewSet("bankapp", pongo2.NewFSLoader(sub))
	p := &pages{tpls: make(map[string]*pongo2.Template)}
	for _, name := range []string{"list.html", "create.html", "detail.html", "yields.html"} {
		tpl, err := set.FromFile(name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		p.tpls[name] = tpl
	}
	return p, nil
}

// render 先寫入 buffer，模板錯誤時仍可回傳 500。
func (p *pages) render(c *gin.Context, code int, name string, ctx pongo2.Context) {
	ctx["message"] = sanitizeFlash(c.Query("msg"))
	if _, ok := ctx["error"]; !ok {
		ctx["error"] = sanitizeFlash(c.Query("err"))
	}
	var buf bytes.Buffer
	if err := p.tpls[name].ExecuteWriter(ctx, &buf); err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	c.Data(code, "text/html; charset=utf-8", buf.Bytes())
}

// redirectWith 導向 path 並附上一則提示；key 為 msg 或 err。
func redirectWith(c *gin.Context, path, key, text string) {
	q := url.Values{}
	q.Set(key, text)
	c.Redirect(http.StatusSeeOther, path+"?"+q.Encode())
}

func accountPath(number uint) string { return fmt.Sprintf("/accounts/%d/", number) }

type accountRow struct {
	Number  uint
	Type    string
	Verbose string
	Balance string
	Points  int
	IsBonus bool
}

func rowOf(a *bank.Account) accountRow {
	return accountRow{
		Number:  a.Number,
		Type:    string(a.Kind),
		Verbose: a.Kind.Verbose(),
		Balance: a.Balance.StringFixed(2),
		Points:  a.Points,
		IsBonus: a.Kind == bank.KindBonus,
	}
}

type kindOption struct {
	Value string
	Label string
}

func kindOptions() []kindOption {
	out := make([]kindOption, 0, len(bank.Kinds))
	for _, k := range bank.Kinds {
		out = append(out, kindOption{Value: string(k), Label: k.Verbose()})
	}
	return out
}

// pageList: GET /accounts/
func (s *Server) pageList(c *gin.Context) {
	accts, err := s.Bank.List(c.Request.Context())
	if err != nil {
		s.pageError(c, err)
		return
	}
	rows := make([]accountRow, 0, len(accts))
	for _, a := range accts {
		rows = append(rows, rowOf(a))
	}
	s.pages.render(c, http.StatusOK, "list.html", pongo2.Context{
		"template_title": "Accounts",
		"accounts":       rows,
	})
}

// pageCreate: GET /accounts/create/
func (s *Server) pageCreate(c *gin.Context) {
	s.pages.render(c, http.StatusOK, "create.html", pongo2.Context{
		"template_title": "Open account",
		"kinds":          kindOptions(),
		"form_type":      string(bank.KindSimple),
		"form_number":    "",
	})
}

// submitCreate: POST /accounts/create/
// 驗證失敗時重新顯示表單並保留輸入。
func (s *Server) submitCreate(c *gin.Context) {
	rawNumber := strings.TrimSpace(c.PostForm("number"))
	rawType := c.PostForm("type")

	fail := func(err error) {
		s.pages.render(c, statusFor(err), "create.html", pongo2.Context{
			"template_title": "Open account",
			"kinds":          kindOptions(),
			"form_type":      rawType,
			"form_number":    rawNumber,
			"error":          sanitizeFlash(err.Error()),
		})
	}

	n, err := strconv.ParseUint(rawNumber, 10, 64)
	if err != nil || n == 0 || n > bank.MaxNumber {
		fail(bank.ErrInvalidNumber)
		return
	}
	kind, err := bank.ParseKind(rawType)
	if err != nil {
		fail(err)
		return
	}
	a, err := s.Bank.Open(c.Request.Context(), uint(n), kind)
	if err != nil {
		fail(err)
		return
	}
	redirectWith(c, "/accounts/create/", "msg", fmt.Sprintf("Account Nº %d was successfully created.", a.Number))
}

// pageDetail: GET /accounts/:number/
func (s *Server) pageDetail(c *gin.Context) {
	number, ok := s.pageNumber(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	a, err := s.Bank.Get(ctx, number)
	if err != nil {
		s.pageError(c, err)
		return
	}
	txs, err := s.Bank.Transactions(ctx, number, recentTransactions)
	if err != nil {
		s.pageError(c, err)
		return
	}
	history := make([]pongo2.Context, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		t := txs[i]
		history = append(history, pongo2.Context{
			"when":    t.CreatedAt.Format("2006-01-02 15:04"),
			"kind":    strings.ReplaceAll(string(t.Kind), "_", " "),
			"amount":  t.Amount.StringFixed(2),
			"balance": t.BalanceAfter.StringFixed(2),
			"counter": t.Counterparty,
			"points":  t.PointsEarned,
		})
	}
	s.pages.render(c, http.StatusOK, "detail.html", pongo2.Context{
		"template_title": fmt.Sprintf("%s Nº %d", a.Kind.Verbose(), a.Number),
		"account":        rowOf(a),
		"history":        history,
	})
}

// txForm 為明細頁各操作共用的表單欄位。
type txForm struct {
	Amount decimal.Decimal
	To     uint
}

func parseTxForm(c *gin.Context) (txForm, error) {
	var f txForm
	amount, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("amount")))
	if err != nil {
		return f, errBadAmount
	}
	f.Amount = amount
	if raw := strings.TrimSpace(c.PostForm("to")); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 || n > bank.MaxNumber {
			return f, errBadNumber
		}
		f.To = uint(n)
	}
	return f, nil
}

// operation 執行一項明細頁操作並回傳成功訊息。
type operation func(ctx context.Context, b *bank.Bank, number uint, f txForm) (string, error)

// operations 為表單 operation 欄位可用的操作；不在表中的名稱一律拒絕。
var operations = map[string]operation{
	"deposit": func(ctx context.Context, b *bank.Bank, number uint, f txForm) (string, error) {
		if _, err := b.Deposit(ctx, number, f.Amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("Deposited %s.", f.Amount.StringFixed(2)), nil
	},
	"withdraw": func(ctx context.Context, b *bank.Bank, number uint, f txForm) (string, error) {
		if _, err := b.Withdraw(ctx, number, f.Amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("Withdrew %s.", f.Amount.StringFixed(2)), nil
	},
	"transfer": func(ctx context.Context, b *bank.Bank, number uint, f txForm) (string, error) {
		if f.To == 0 {
			return "", errMissingTarget
		}
		if _, _, err := b.Transfer(ctx, number, f.To, f.Amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("Transferred %s to account Nº %d.", f.Amount.StringFixed(2), f.To), nil
	},
}

// submitOperation: POST /accounts/:number/
func (s *Server) submitOperation(c *gin.Context) {
	number, ok := s.pageNumber(c)
	if !ok {
		return
	}
	op, ok := operations[c.PostForm("operation")]
	if !ok {
		c.String(http.StatusBadRequest, "unknown operation")
		return
	}
	back := accountPath(number)
	f, err := parseTxForm(c)
	if err != nil {
		redirectWith(c, back, "err", err.Error())
		return
	}
	msg, err := op(c.Request.Context(), s.Bank, number, f)
	switch {
	case errors.Is(err, bank.ErrNotFound) && f.To == 0:
		s.pageError(c, err)
	case err != nil:
		redirectWith(c, back, "err", err.Error())
	default:
		redirectWith(c, back, "msg", msg)
	}
}

// pageYields: GET /accounts/yields/
func (s *Server) pageYields(c *gin.Context) {
	s.pages.render(c, http.StatusOK, "yields.html", pongo2.Context{
		"template_title": "Generate yields",
	})
}

// submitYields: POST /accounts/yields/
func (s *Server) submitYields(c *gin.Context) {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("tax")))
	if err != nil {
		redirectWith(c, "/accounts/yields/", "err", errBadAmount.Error())
		return
	}
	report, err := s.Bank.GenerateYields(c.Request.Context(), rate)
	if err != nil {
		redirectWith(c, "/accounts/yields/", "err", err.Error())
		return
	}
	redirectWith(c, "/accounts/yields/", "msg", fmt.Sprintf(
		"Yields of %s%% credited to %d savings accounts, %s in total.",
		rate.StringFixed(2), len(report.Credits), report.Total.StringFixed(2)))
}

func (s *Server) pageNumber(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("number"), 10, 64)
	if err != nil || n == 0 || n > bank.MaxNumber {
		s.pageError(c, bank.ErrNotFound)
		return 0, false
	}
	return uint(n), true
}

// pageError 以純文字回應無法顯示頁面的錯誤。
func (s *Server) pageError(c *gin.Context, err error) {
	code := statusFor(err)
	_ = c.Error(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = http.StatusText(code)
	}
	c.String(code, msg)
}
