// internal/storage/model.go
//
// 定義「資料持久化層 (storage layer)」的結構模型。
// AccountRecord / TransactionRecord 為 gorm 資料表模型；Snapshot 為 JSON 匯出格式，
// 保存必要的中繼資訊 (Meta)，以便版本控制與搬遷資料庫。
package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRecord 為 accounts 資料表的一列。
// 三種帳戶類型共用一張表，以 Kind 欄位區分；Points 只對 bonus 帳戶有意義。
type AccountRecord struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Number    uint            `json:"number" gorm:"uniqueIndex;not null"`
	Kind      string          `json:"kind" gorm:"size:16;not null;index"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:numeric(15,2);not null"`
	Points    int             `json:"points" gorm:"not null"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName 固定資料表名稱。
func (AccountRecord) TableName() string { return "accounts" }

// TransactionRecord 為 transactions 資料表的一列（帳戶交易日誌）。
type TransactionRecord struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	AccountID     uuid.UUID       `json:"account_id" gorm:"type:uuid;index;not null"`
	AccountNumber uint            `json:"account_number" gorm:"index;not null"`
	Kind          string          `json:"kind" gorm:"size:16;not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(15,2);not null"`
	BalanceAfter  decimal.Decimal `json:"balance_after" gorm:"type:numeric(15,2);not null"`
	PointsEarned  int             `json:"points_earned"`
	Counterparty  uint            `json:"counterparty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TableName 固定資料表名稱。
func (TransactionRecord) TableName() string { return "transactions" }

// Meta 為快照的中繼資料 (metadata)。
type Meta struct {
	Storage   string    `json:"storage"`        // 儲存類型，例如 "json_snapshot"
	Version   int       `json:"version"`        // 結構版本號
	Timestamp time.Time `json:"timestamp"`      // 快照建立時間
	Note      string    `json:"note,omitempty"` // 備註欄
}

// Snapshot 為整個資料庫內容的快照，用於匯出與匯入。
type Snapshot struct {
	Meta         Meta                `json:"_meta"`
	Accounts     []AccountRecord     `json:"accounts"`
	Transactions []TransactionRecord `json:"transactions"`
}

// SnapshotVersion 為目前的快照格式版本。
const SnapshotVersion = 2
