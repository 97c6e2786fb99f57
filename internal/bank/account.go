// Package bank 定義核心領域模型與業務規則。
// 本檔定義 Account、帳戶類型 Kind 與交易紀錄 Transaction，不含任何 HTTP 或儲存細節。

package bank

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind 為帳戶類型。
type Kind string

const (
	KindSimple  Kind = "simple"
	KindBonus   Kind = "bonus"
	KindSavings Kind = "savings"
)

// Kinds 依固定順序列出所有帳戶類型（表單下拉選單使用）。
var Kinds = []Kind{KindSimple, KindBonus, KindSavings}

// ParseKind 解析帳戶類型字串；空字串視為 simple。
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return KindSimple, nil
	}
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Valid 回報是否為已知的帳戶類型。
func (k Kind) Valid() bool {
	switch k {
	case KindSimple, KindBonus, KindSavings:
		return true
	}
	return false
}

// Verbose 回傳給人看的類型名稱。
func (k Kind) Verbose() string {
	switch k {
	case KindBonus:
		return "Bonus Account"
	case KindSavings:
		return "Savings Account"
	default:
		return "Account"
	}
}

// Account represents a bank account.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	Number    uint            `json:"number"`
	Kind      Kind            `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	Points    int             `json:"points"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

var hundred = decimal.NewFromInt(100)

// Deposit 將金額加入餘額並回傳本次獲得的紅利點數。
// 只有 bonus 帳戶累積點數：floor(amount / cutoff)。
// 入帳後餘額不得達到 maxAmount，失敗時帳戶狀態不變。
func (a *Account) Deposit(amount, cutoff decimal.Decimal) (int, error) {
	if amount.IsNegative() {
		return 0, ErrNegativeAmount
	}
	next := a.Balance.Add(amount)
	if next.GreaterThanOrEqual(maxAmount) {
		return 0, ErrBalanceLimit
	}
	a.Balance = next
	if a.Kind != KindBonus {
		return 0, nil
	}
	earned := pointsFor(amount, cutoff)
	a.Points += earned
	return earned, nil
}

// Withdraw 扣款；扣款後餘額不得低於 floor。
// 失敗時帳戶狀態不變。
func (a *Account) Withdraw(amount, floor decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	next := a.Balance.Sub(amount)
	if next.LessThan(floor) {
		return ErrInsufficientBalance
	}
	a.Balance = next
	return nil
}

// Interest 計算儲蓄帳戶以 rate（百分比）產生的利息，四捨六入五成雙至小數兩位。
// 餘額不為正時利息為 0。
func (a *Account) Interest(rate decimal.Decimal) (decimal.Decimal, error) {
	if a.Kind != KindSavings {
		return decimal.Zero, ErrNotSavings
	}
	if rate.IsNegative() {
		return decimal.Zero, ErrNegativeRate
	}
	if !a.Balance.IsPositive() {
		return decimal.Zero, nil
	}
	return a.Balance.Mul(rate).Div(hundred).RoundBank(2), nil
}

func pointsFor(amount, cutoff decimal.Decimal) int {
	if !cutoff.IsPositive() || !amount.IsPositive() {
		return 0
	}
	return int(amount.Div(cutoff).Floor().IntPart())
}

// TxKind 為交易紀錄類型。
type TxKind string

const (
	TxDeposit     TxKind = "deposit"
	TxWithdraw    TxKind = "withdraw"
	TxTransferIn  TxKind = "transfer_in"
	TxTransferOut TxKind = "transfer_out"
	TxYield       TxKind = "yield"
)

// Transaction represents a ledger entry written for every balance change.
type Transaction struct {
	ID            uint            `json:"id"`
	AccountNumber uint            `json:"account_number"`
	Kind          TxKind          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	PointsEarned  int             `json:"points_earned,omitempty"`
	Counterparty  uint            `json:"counter_account,omitempty"`
	CreatedAt     time.Time       `json:"time"`
}
