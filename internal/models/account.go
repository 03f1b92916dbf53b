package models

// AccountType represents the type of account
type AccountType string

const (
	AccountTypeCash       AccountType = "cash"
	AccountTypeInvestment AccountType = "investment"
)

// Account represents a generic financial account. Monetary amounts are
// stored in minor units (cents). The account itself carries only the
// opening balance; its current balance is the opening balance plus the
// sum of its transactions.
type Account struct {
	Base
	UserID         string      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name           string      `gorm:"not null" json:"name"`
	Type           AccountType `gorm:"not null" json:"type"`
	Description    string      `json:"description"`
	Currency       string      `gorm:"not null;default:'USD'" json:"currency"`
	OpeningBalance int64       `gorm:"type:bigint;not null;default:0" json:"opening_balance"`
	IsActive       bool        `gorm:"default:true" json:"is_active"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:AccountID" json:"transactions,omitempty"`
}
