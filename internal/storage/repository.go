// internal/storage/repository.go
//
// Repository 封裝所有 gorm 查詢。
// 交易內的操作透過 WithTx 取得綁定在同一個 *gorm.DB 交易上的 Repository，
// 讓 bank 層可以在一個資料庫交易內完成跨帳戶的變更。
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound 查無資料列。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 違反唯一性限制（例如帳號重複）。
	ErrDuplicate = errors.New("duplicate record")
)

// Repository 為 accounts / transactions 兩張表的存取層。
type Repository struct {
	db *gorm.DB
}

// NewRepository 以既有連線建立 Repository。
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx 在單一資料庫交易內執行 fn；fn 回傳錯誤時整筆回滾。
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// CreateAccount 新增帳戶。
func (r *Repository) CreateAccount(ctx context.Context, rec *AccountRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("account %d: %w", rec.Number, ErrDuplicate)
		}
		return err
	}
	return nil
}

// FindByNumber 依帳號查詢；forUpdate 會對該列加上 SELECT ... FOR UPDATE 鎖（sqlite 忽略）。
func (r *Repository) FindByNumber(ctx context.Context, number uint, forUpdate bool) (*AccountRecord, error) {
	var rec AccountRecord
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("number = ?", number).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListAccounts 依帳號遞增回傳所有帳戶。
func (r *Repository) ListAccounts(ctx context.Context) ([]AccountRecord, error) {
	var recs []AccountRecord
	err := r.db.WithContext(ctx).Order("number").Find(&recs).Error
	return recs, err
}

// ListByKind 回傳指定類型的所有帳戶。
func (r *Repository) ListByKind(ctx context.Context, kind string, forUpdate bool) ([]AccountRecord, error) {
	var recs []AccountRecord
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("kind = ?", kind).Order("number").Find(&recs).Error
	return recs, err
}

// SaveAccount 寫回帳戶所有欄位。
func (r *Repository) SaveAccount(ctx context.Context, rec *AccountRecord) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

// AppendTransaction 追加一筆交易日誌。
func (r *Repository) AppendTransaction(ctx context.Context, rec *TransactionRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// ListTransactions 依寫入順序回傳帳戶的交易日誌；limit > 0 時只取最近 limit 筆。
func (r *Repository) ListTransactions(ctx context.Context, number uint, limit int) ([]TransactionRecord, error) {
	var recs []TransactionRecord
	q := r.db.WithContext(ctx).Where("account_number = ?", number)
	if limit > 0 {
		q = q.Order("id DESC").Limit(limit)
	} else {
		q = q.Order("id")
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	if limit > 0 {
		for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
			recs[i], recs[j] = recs[j], recs[i]
		}
	}
	return recs, nil
}

// Export 匯出整個資料庫為 Snapshot。
func (r *Repository) Export(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Meta: Meta{
			Storage:   "json_snapshot",
			Version:   SnapshotVersion,
			Timestamp: time.Now(),
		},
	}
	db := r.db.WithContext(ctx)
	if err := db.Order("number").Find(&snap.Accounts).Error; err != nil {
		return snap, fmt.Errorf("export accounts: %w", err)
	}
	if err := db.Order("id").Find(&snap.Transactions).Error; err != nil {
		return snap, fmt.Errorf("export transactions: %w", err)
	}
	return snap, nil
}

// Import 以 Snapshot 取代資料庫內容（單一交易）。
// 交易日誌的 ID 會重新配發，保留原本的先後順序。
func (r *Repository) Import(ctx context.Context, snap Snapshot) error {
	return r.WithTx(ctx, func(tx *Repository) error {
		db := tx.db.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := db.Delete(&TransactionRecord{}).Error; err != nil {
			return fmt.Errorf("clear transactions: %w", err)
		}
		if err := db.Delete(&AccountRecord{}).Error; err != nil {
			return fmt.Errorf("clear accounts: %w", err)
		}
		if len(snap.Accounts) > 0 {
			if err := tx.db.CreateInBatches(snap.Accounts, 100).Error; err != nil {
				return fmt.Errorf("import accounts: %w", err)
			}
		}
		if len(snap.Transactions) > 0 {
			txs := make([]TransactionRecord, len(snap.Transactions))
			copy(txs, snap.Transactions)
			for i := range txs {
				txs[i].ID = 0
			}
			if err := tx.db.CreateInBatches(txs, 100).Error; err != nil {
				return fmt.Errorf("import transactions: %w", err)
			}
		}
		return nil
	})
}
