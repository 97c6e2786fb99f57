// internal/bank/bank.go

// Bank 為聚合根 (Aggregate Root)：協調帳戶規則、資料庫交易、快取、事件與指標。
// 每個會改變餘額的操作都在「單一資料庫交易」內完成：鎖定帳戶列 → 套用 Account 規則 →
// 寫回餘額 → 追加交易日誌。任一步驟失敗整筆回滾，不會留下部分成功的狀態。
// 提交成功後才失效快取、發佈事件。
package bank

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bankapp/internal/events"
	"bankapp/internal/metrics"
	"bankapp/internal/storage"
)

// Bank 為帳務服務。
type Bank struct {
	repo    *storage.Repository
	cache   *storage.Cache
	events  events.Publisher
	metrics *metrics.Metrics
	rules   Rules
	logger  *slog.Logger
}

// Option 設定 Bank 的可選元件。
type Option func(*Bank)

// WithCache 啟用帳戶明細快取。
func WithCache(c *storage.Cache) Option { return func(b *Bank) { b.cache = c } }

// WithPublisher 設定事件發佈器。
func WithPublisher(p events.Publisher) Option {
	return func(b *Bank) {
		if p != nil {
			b.events = p
		}
	}
}

// WithMetrics 設定 Prometheus 指標。
func WithMetrics(m *metrics.Metrics) Option { return func(b *Bank) { b.metrics = m } }

// WithRules 覆寫預設帳務規則。
func WithRules(r Rules) Option { return func(b *Bank) { b.rules = r } }

// WithLogger 設定 logger。
func WithLogger(l *slog.Logger) Option {
	return func(b *Bank) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBank 建立帳務服務。
func NewBank(repo *storage.Repository, opts ...Option) *Bank {
	b := &Bank{
		repo:   repo,
		events: events.Nop{},
		rules:  DefaultRules(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Rules 回傳目前生效的帳務規則。
func (b *Bank) Rules() Rules { return b.rules }

// Open 以帳號與類型開戶，初始餘額為 0；bonus 帳戶獲得開戶贈點。
func (b *Bank) Open(ctx context.Context, number uint, kind Kind) (*Account, error) {
	var err error
	switch {
	case !validNumber(number):
		err = ErrInvalidNumber
	case !kind.Valid():
		err = ErrInvalidKind
	}
	rec := &storage.AccountRecord{
		ID:      uuid.New(),
		Number:  number,
		Kind:    string(kind),
		Balance: decimal.Zero,
	}
	if kind == KindBonus {
		rec.Points = b.rules.InitialPoints
	}
	if err == nil {
		err = b.repo.CreateAccount(ctx, rec)
	}
	if err := b.done(ctx, events.TypeOpened, decimal.Zero, err, number); err != nil {
		return nil, err
	}
	a := fromRecord(rec)
	b.publish(ctx, events.Event{Type: events.TypeOpened, Number: a.Number, Balance: a.Balance, Points: a.Points})
	return a, nil
}

// Get 依帳號取得帳戶（先讀快取）。
func (b *Bank) Get(ctx context.Context, number uint) (*Account, error) {
	if !validNumber(number) {
		return nil, ErrNotFound
	}
	if rec, ok := b.cache.GetAccount(ctx, number); ok {
		return fromRecord(rec), nil
	}
	// 世代須在讀資料庫之前取得，期間若有異動提交，回填會被放棄。
	gen := b.cache.Generation(ctx, number)
	rec, err := b.repo.FindByNumber(ctx, number, false)
	if err != nil {
		return nil, translate(err)
	}
	b.cache.PutAccount(ctx, rec, gen)
	return fromRecord(rec), nil
}

// List 依帳號遞增回傳所有帳戶。
func (b *Bank) List(ctx context.Context) ([]*Account, error) {
	recs, err := b.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Account, 0, len(recs))
	for i := range recs {
		out = append(out, fromRecord(&recs[i]))
	}
	return out, nil
}

// Transactions 回傳帳戶交易日誌（舊到新）；limit > 0 時只取最近 limit 筆。
func (b *Bank) Transactions(ctx context.Context, number uint, limit int) ([]Transaction, error) {
	if !validNumber(number) {
		return nil, ErrNotFound
	}
	if _, err := b.repo.FindByNumber(ctx, number, false); err != nil {
		return nil, translate(err)
	}
	recs, err := b.repo.ListTransactions(ctx, number, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, len(recs))
	for i, r := range recs {
		out[i] = Transaction{
			ID:            r.ID,
			AccountNumber: r.AccountNumber,
			Kind:          TxKind(r.Kind),
			Amount:        r.Amount,
			BalanceAfter:  r.BalanceAfter,
			PointsEarned:  r.PointsEarned,
			Counterparty:  r.Counterparty,
			CreatedAt:     r.CreatedAt,
		}
	}
	return out, nil
}

// Deposit 存款；bonus 帳戶依直接存款門檻累積點數。
func (b *Bank) Deposit(ctx context.Context, number uint, amount decimal.Decimal) (*Account, error) {
	var acct *Account
	err := checkAmount(amount)
	if err == nil {
		err = b.repo.WithTx(ctx, func(tx *storage.Repository) error {
			a, err := lock(ctx, tx, number)
			if err != nil {
				return err
			}
			earned, err := a.Deposit(amount, b.rules.DepositCutoff)
			if err != nil {
				return err
			}
			if err := b.record(ctx, tx, a, TxDeposit, amount, earned, 0); err != nil {
				return err
			}
			acct = a
			return nil
		})
	}
	if err := b.done(ctx, events.TypeDeposit, amount, err, number); err != nil {
		return nil, err
	}
	b.publish(ctx, events.Event{Type: events.TypeDeposit, Number: number, Amount: amount, Balance: acct.Balance, Points: acct.Points})
	return acct, nil
}

// Withdraw 提款；扣款後不得低於該類型的餘額下限。
func (b *Bank) Withdraw(ctx context.Context, number uint, amount decimal.Decimal) (*Account, error) {
	var acct *Account
	err := checkAmount(amount)
	if err == nil {
		err = b.repo.WithTx(ctx, func(tx *storage.Repository) error {
			a, err := lock(ctx, tx, number)
			if err != nil {
				return err
			}
			if err := a.Withdraw(amount, b.rules.Floor(a.Kind)); err != nil {
				return err
			}
			if err := b.record(ctx, tx, a, TxWithdraw, amount, 0, 0); err != nil {
				return err
			}
			acct = a
			return nil
		})
	}
	if err := b.done(ctx, events.TypeWithdraw, amount, err, number); err != nil {
		return nil, err
	}
	b.publish(ctx, events.Event{Type: events.TypeWithdraw, Number: number, Amount: amount, Balance: acct.Balance, Points: acct.Points})
	return acct, nil
}

// Transfer 轉帳：來源扣款、目標入帳（bonus 目標依轉入門檻累積點數），兩者同一交易提交。
// 兩列依帳號遞增順序加鎖，反向的並行轉帳不會互相等待。
func (b *Bank) Transfer(ctx context.Context, fromNum, toNum uint, amount decimal.Decimal) (*Account, *Account, error) {
	var from, to *Account
	err := checkAmount(amount)
	if err == nil && fromNum == toNum {
		err = ErrSameAccount
	}
	if err == nil {
		err = b.repo.WithTx(ctx, func(tx *storage.Repository) error {
			order := []uint{fromNum, toNum}
			if fromNum > toNum {
				order = []uint{toNum, fromNum}
			}
			locked := make(map[uint]*Account, 2)
			for _, n := range order {
				a, err := lock(ctx, tx, n)
				if err != nil {
					return err
				}
				locked[n] = a
			}
			src, dst := locked[fromNum], locked[toNum]

			if err := src.Withdraw(amount, b.rules.Floor(src.Kind)); err != nil {
				return err
			}
			earned, err := dst.Deposit(amount, b.rules.TransferCutoff)
			if err != nil {
				return err
			}
			if err := b.record(ctx, tx, src, TxTransferOut, amount, 0, toNum); err != nil {
				return err
			}
			if err := b.record(ctx, tx, dst, TxTransferIn, amount, earned, fromNum); err != nil {
				return err
			}
			from, to = src, dst
			return nil
		})
	}
	if err := b.done(ctx, events.TypeTransfer, amount, err, fromNum, toNum); err != nil {
		return nil, nil, err
	}
	b.publish(ctx, events.Event{Type: events.TypeTransfer, Number: fromNum, Counterparty: toNum, Amount: amount, Balance: from.Balance})
	return from, to, nil
}

// YieldCredit 為一個儲蓄帳戶本次入帳的利息。
type YieldCredit struct {
	Number  uint            `json:"number"`
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

// YieldReport 為一次計息的結果。
type YieldReport struct {
	Rate    decimal.Decimal `json:"rate"`
	Credits []YieldCredit   `json:"credits"`
	Total   decimal.Decimal `json:"total"`
}

// GenerateYields 對所有儲蓄帳戶以 rate（百分比）計息並存入；simple 與 bonus 帳戶不受影響。
// 所有儲蓄帳戶在同一交易內入帳。
func (b *Bank) GenerateYields(ctx context.Context, rate decimal.Decimal) (*YieldReport, error) {
	report := &YieldReport{Rate: rate, Total: decimal.Zero}
	var err error
	if rate.IsNegative() {
		err = ErrNegativeRate
	} else {
		err = checkAmount(rate)
	}
	if err == nil {
		err = b.repo.WithTx(ctx, func(tx *storage.Repository) error {
			recs, err := tx.ListByKind(ctx, string(KindSavings), true)
			if err != nil {
				return err
			}
			for i := range recs {
				a := fromRecord(&recs[i])
				interest, err := a.Interest(rate)
				if err != nil {
					return err
				}
				if !interest.IsPositive() {
					continue
				}
				if _, err := a.Deposit(interest, b.rules.DepositCutoff); err != nil {
					return err
				}
				if err := b.record(ctx, tx, a, TxYield, interest, 0, 0); err != nil {
					return err
				}
				report.Credits = append(report.Credits, YieldCredit{Number: a.Number, Amount: interest, Balance: a.Balance})
				report.Total = report.Total.Add(interest)
			}
			return nil
		})
	}
	numbers := make([]uint, len(report.Credits))
	for i, c := range report.Credits {
		numbers[i] = c.Number
	}
	if err := b.done(ctx, events.TypeYield, report.Total, err, numbers...); err != nil {
		return nil, err
	}
	b.metrics.YieldCredited(len(report.Credits))
	for _, c := range report.Credits {
		b.publish(ctx, events.Event{Type: events.TypeYield, Number: c.Number, Amount: c.Amount, Balance: c.Balance})
	}
	return report, nil
}

// Snapshot 匯出整個資料庫內容。
func (b *Bank) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	return b.repo.Export(ctx)
}

// Restore 以快照取代資料庫內容，並清除新舊帳號的快取。
func (b *Bank) Restore(ctx context.Context, snap storage.Snapshot) error {
	before, err := b.repo.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if err := b.repo.Import(ctx, snap); err != nil {
		return err
	}
	numbers := make([]uint, 0, len(before)+len(snap.Accounts))
	for _, r := range before {
		numbers = append(numbers, r.Number)
	}
	for _, r := range snap.Accounts {
		numbers = append(numbers, r.Number)
	}
	b.cache.Invalidate(ctx, numbers...)
	b.logger.Info("snapshot restored", "accounts", len(snap.Accounts), "transactions", len(snap.Transactions))
	return nil
}

// lock 在交易內以 FOR UPDATE 讀取帳戶。
func lock(ctx context.Context, tx *storage.Repository, number uint) (*Account, error) {
	if !validNumber(number) {
		return nil, ErrNotFound
	}
	rec, err := tx.FindByNumber(ctx, number, true)
	if err != nil {
		return nil, err
	}
	return fromRecord(rec), nil
}

// record 寫回帳戶並追加一筆交易日誌。
func (b *Bank) record(ctx context.Context, tx *storage.Repository, a *Account, kind TxKind, amount decimal.Decimal, earned int, counter uint) error {
	rec := toRecord(a)
	if err := tx.SaveAccount(ctx, rec); err != nil {
		return err
	}
	a.UpdatedAt = rec.UpdatedAt
	return tx.AppendTransaction(ctx, &storage.TransactionRecord{
		AccountID:     a.ID,
		AccountNumber: a.Number,
		Kind:          string(kind),
		Amount:        amount,
		BalanceAfter:  a.Balance,
		PointsEarned:  earned,
		Counterparty:  counter,
	})
}

// done 轉換錯誤、記錄指標與日誌；成功時失效相關帳號的快取。
func (b *Bank) done(ctx context.Context, op string, amount decimal.Decimal, err error, numbers ...uint) error {
	err = translate(err)
	b.metrics.Observe(op, err, amount)
	if err != nil {
		b.logger.Info("account operation rejected", "op", op, "accounts", numbers, "amount", amount.String(), "error", err)
		return err
	}
	b.cache.Invalidate(ctx, numbers...)
	b.logger.Info("account operation", "op", op, "accounts", numbers, "amount", amount.String())
	return nil
}

func (b *Bank) publish(ctx context.Context, e events.Event) {
	if err := b.events.Publish(ctx, e); err != nil {
		b.logger.Warn("publish event failed", "type", e.Type, "number", e.Number, "error", err)
	}
}

// translate 將 storage 層錯誤轉為領域錯誤。
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrDuplicate):
		return ErrNumberInUse
	}
	return err
}

func fromRecord(r *storage.AccountRecord) *Account {
	return &Account{
		ID:        r.ID,
		Number:    r.Number,
		Kind:      Kind(r.Kind),
		Balance:   r.Balance,
		Points:    r.Points,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toRecord(a *Account) *storage.AccountRecord {
	return &storage.AccountRecord{
		ID:        a.ID,
		Number:    a.Number,
		Kind:      string(a.Kind),
		Balance:   a.Balance,
		Points:    a.Points,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
