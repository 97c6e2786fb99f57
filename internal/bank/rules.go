// internal/bank/rules.go

package bank

import "github.com/shopspring/decimal"

// Rules 為可設定的帳務規則：各類型餘額下限、紅利門檻與開戶贈點。
type Rules struct {
	Floors         map[Kind]decimal.Decimal
	DepositCutoff  decimal.Decimal
	TransferCutoff decimal.Decimal
	InitialPoints  int
}

// DefaultRules 回傳預設規則：simple/savings 下限 0、bonus 可透支至 -1000，
// 直接存款每 100 得 1 點、轉入每 200 得 1 點，開戶贈 10 點。
func DefaultRules() Rules {
	return Rules{
		Floors: map[Kind]decimal.Decimal{
			KindSimple:  decimal.Zero,
			KindBonus:   decimal.NewFromInt(-1000),
			KindSavings: decimal.Zero,
		},
		DepositCutoff:  decimal.NewFromInt(100),
		TransferCutoff: decimal.NewFromInt(200),
		InitialPoints:  10,
	}
}

// Floor 回傳該類型的餘額下限；未設定者為 0。
func (r Rules) Floor(k Kind) decimal.Decimal {
	if f, ok := r.Floors[k]; ok {
		return f
	}
	return decimal.Zero
}

// maxAmount 同時是金額與餘額的上限：numeric(15,2) 的整數部分最多 13 位。
var maxAmount = decimal.New(1, 13)

// MaxNumber 為帳號上限（資料庫 integer 欄位）。
const MaxNumber = 2147483647

func validNumber(n uint) bool { return n >= 1 && n <= MaxNumber }

// checkAmount 驗證金額：非負、小數最多 2 位、總位數最多 15 位。
func checkAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !amount.Equal(amount.Round(2)) || amount.GreaterThanOrEqual(maxAmount) {
		return ErrInvalidAmount
	}
	return nil
}
