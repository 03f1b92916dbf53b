package models

import "time"

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome     TransactionType = "income"
	TransactionTypeExpense    TransactionType = "expense"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// Reference prefixes for transactions created by the investment engine.
// A mirrored trade transaction carries "investment_trade_<tradeID>"; a
// valuation adjustment carries "investment_valuation_<valuationID>".
const (
	TradeReferencePrefix     = "investment_trade_"
	ValuationReferencePrefix = "investment_valuation_"
)

// Transaction represents a financial transaction in the system.
// Amount is signed, in minor units: income and deposits are positive,
// expenses and fees negative. An account's plain balance is its opening
// balance plus the sum of its transaction amounts.
type Transaction struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID   string          `gorm:"type:uuid;not null;index" json:"account_id"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Amount      int64           `gorm:"type:bigint;not null" json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `gorm:"not null" json:"date"`
	Reference   string          `gorm:"index" json:"reference,omitempty"`

	// Relationships
	Account Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
}
