package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentAccountKind distinguishes brokerage accounts from crypto wallets.
type InvestmentAccountKind string

const (
	InvestmentAccountBrokerage InvestmentAccountKind = "brokerage"
	InvestmentAccountWallet    InvestmentAccountKind = "wallet"
)

// InvestmentAccount represents an investment account. It is linked 1:1 to a
// generic Account which carries the currency and opening cash balance; the
// generic account's transaction ledger mirrors the cash effect of every trade.
type InvestmentAccount struct {
	Base
	UserID     string                `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID  string                `gorm:"type:uuid;not null;uniqueIndex" json:"account_id"`
	AssetClass string                `json:"asset_class"`
	Kind       InvestmentAccountKind `gorm:"not null;default:'brokerage'" json:"kind"`

	// Relationships
	Account    Account               `gorm:"foreignKey:AccountID" json:"account"`
	Trades     []InvestmentTrade     `gorm:"foreignKey:InvestmentAccountID" json:"trades,omitempty"`
	Valuations []InvestmentValuation `gorm:"foreignKey:InvestmentAccountID" json:"valuations,omitempty"`
}

// TradeType represents the type of investment trade.
type TradeType string

const (
	TradeTypeBuy        TradeType = "buy"
	TradeTypeSell       TradeType = "sell"
	TradeTypeDeposit    TradeType = "deposit"
	TradeTypeWithdraw   TradeType = "withdraw"
	TradeTypeDividend   TradeType = "dividend"
	TradeTypeInterest   TradeType = "interest"
	TradeTypeFee        TradeType = "fee"
	TradeTypeAdjustment TradeType = "adjustment"
)

// TradeAssetType represents the asset class of a traded symbol.
type TradeAssetType string

const (
	TradeAssetCrypto TradeAssetType = "crypto"
	TradeAssetEquity TradeAssetType = "equity"
)

// InvestmentTrade represents one entry in an investment account's trade log.
// Buy and sell trades carry symbol, asset type, quantity, and price; the other
// types are pure cash movements and leave those fields empty. Amount and Fees
// are in minor units. Withdrawal amounts are stored already negated.
type InvestmentTrade struct {
	Base
	InvestmentAccountID string          `gorm:"type:uuid;not null;index" json:"investment_account_id"`
	Type                TradeType       `gorm:"not null" json:"type"`
	Symbol              string          `json:"symbol,omitempty"`
	AssetType           TradeAssetType  `json:"asset_type,omitempty"`
	Quantity            decimal.Decimal `gorm:"type:numeric(32,12)" json:"quantity"`
	PricePerUnit        int64           `gorm:"type:bigint" json:"price_per_unit"`
	Amount              int64           `gorm:"type:bigint;not null" json:"amount"`
	Fees                int64           `gorm:"type:bigint" json:"fees"`
	OccurredAt          time.Time       `gorm:"not null;index" json:"occurred_at"`
	Notes               string          `json:"notes"`

	// Relationships
	InvestmentAccount InvestmentAccount `gorm:"foreignKey:InvestmentAccountID" json:"investment_account,omitempty"`
}
