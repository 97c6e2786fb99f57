// internal/events/events.go

// Package events 將帳戶異動以 JSON 事件發佈到 NATS，供下游（通知、對帳）訂閱。
// 主旨格式為 <prefix>.<type>，例如 bank.accounts.deposit。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

// 事件類型。
const (
	TypeOpened   = "opened"
	TypeDeposit  = "deposit"
	TypeWithdraw = "withdraw"
	TypeTransfer = "transfer"
	TypeYield    = "yield"
)

// DefaultPrefix 為預設主旨前綴。
const DefaultPrefix = "bank.accounts"

// Event 為一次已提交的帳戶異動。
type Event struct {
	Type         string          `json:"type"`
	Number       uint            `json:"number"`
	Counterparty uint            `json:"counterparty,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Balance      decimal.Decimal `json:"balance"`
	Points       int             `json:"points,omitempty"`
	At           time.Time       `json:"at"`
}

// Publisher 發佈帳戶事件。
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Nop 丟棄所有事件（未設定 NATS 時使用）。
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}

// NATSPublisher 以 NATS core publish 發佈事件。
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	owned  bool
}

// Connect 連線到 url 並回傳擁有該連線的 Publisher。
func Connect(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("bankapp"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p := NewNATSPublisher(nc, prefix)
	p.owned = true
	return p, nil
}

// NewNATSPublisher 以既有連線建立 Publisher；Close 不會關閉外部傳入的連線。
func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// Subject 回傳事件類型對應的主旨。
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish 序列化並發佈事件。
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	return p.nc.Publish(p.Subject(e.Type), data)
}

// Close 送出緩衝中的訊息並關閉自己建立的連線。
func (p *NATSPublisher) Close() {
	if p.owned {
		_ = p.nc.Drain()
		return
	}
	_ = p.nc.Flush()
}
