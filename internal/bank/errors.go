// internal/bank/errors.go
//
// 本檔集中定義「領域錯誤（domain errors）」。
// 這些錯誤屬於商業邏輯層級（非系統錯誤），會由上層 HTTP handler 轉換成適當的 HTTP 狀態碼。
// 統一集中管理錯誤類別能確保 REST API 與網頁介面回傳行為一致。

package bank

import "errors"

var (
	// ErrNotFound 代表帳戶不存在。
	// 對應 HTTP 狀態碼 404 Not Found。
	ErrNotFound = errors.New("account not found")

	// ErrNegativeAmount 代表存款、提款或轉帳金額為負數。
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrInvalidAmount 代表金額超出 15 位數或小數超過 2 位。
	ErrInvalidAmount = errors.New("amount must have at most 15 digits and 2 decimal places")

	// ErrInsufficientBalance 代表扣款後將低於該帳戶類型的餘額下限。
	// 對應 HTTP 狀態碼 409 Conflict。
	ErrInsufficientBalance = errors.New("account doesn't have sufficient balance")

	// ErrBalanceLimit 代表入帳後餘額將超出 15 位數（小數 2 位）的上限。
	// 對應 HTTP 狀態碼 409 Conflict。
	ErrBalanceLimit = errors.New("balance would exceed the account limit")

	// ErrSameAccount 代表轉帳來源與目標帳戶相同。
	ErrSameAccount = errors.New("from and to are same")

	// ErrNumberInUse 代表帳號已被其他帳戶使用（409）。
	ErrNumberInUse = errors.New("account number already in use")

	// ErrInvalidNumber 帳號必須為 1 到 MaxNumber 之間的整數。
	ErrInvalidNumber = errors.New("account number must be between 1 and 2147483647")

	// ErrInvalidKind 帳戶類型不是 simple / bonus / savings。
	ErrInvalidKind = errors.New("unknown account type")

	// ErrNotSavings 只有儲蓄帳戶可以計息。
	ErrNotSavings = errors.New("only savings accounts generate yields")

	// ErrNegativeRate 利率不可為負。
	ErrNegativeRate = errors.New("rate must not be negative")
)
