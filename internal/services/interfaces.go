package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"moneta/internal/models"
	"moneta/internal/pagination"
	"moneta/internal/prices"
	"moneta/internal/valuation"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
}

// AccountServicer defines the contract for generic account business logic.
type AccountServicer interface {
	GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(userID, accountID string) (*models.Account, error)
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate *time.Time
	ToDate   *time.Time
	Type     *models.TransactionType
}

// TransactionServicer defines the contract for generic transaction reads.
type TransactionServicer interface {
	GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
}

// PriceService fetches quotes for a set of symbols. Satisfied by
// *prices.Service; stubbed in tests.
type PriceService interface {
	GetPrices(ctx context.Context, requests []prices.SymbolRequest) (valuation.Quotes, []prices.Warning)
}

// InvestmentAccountParams holds the inputs for creating an investment account.
type InvestmentAccountParams struct {
	Name           string
	Description    string
	Currency       string
	AssetClass     string
	Kind           models.InvestmentAccountKind
	OpeningBalance int64
}

// TradeParams holds the inputs for creating or editing a trade.
type TradeParams struct {
	Type         models.TradeType
	Symbol       string
	AssetType    models.TradeAssetType
	Quantity     decimal.Decimal
	PricePerUnit int64
	Amount       int64
	Fees         int64
	OccurredAt   time.Time
	Notes        string
}

// AccountBalanceResult is a computed account balance plus any price-fetch
// warnings the caller should surface to the user.
type AccountBalanceResult struct {
	valuation.AccountBalance
	Warnings []string `json:"warnings,omitempty"`
}

// LedgerView is the read-only aggregation of an investment account: its
// computed balance, latest recorded valuation, and recent activity.
type LedgerView struct {
	Account         *models.InvestmentAccount  `json:"account"`
	Balance         AccountBalanceResult       `json:"balance"`
	RecentTrades    []models.InvestmentTrade   `json:"recent_trades"`
	LatestValuation *models.InvestmentValuation `json:"latest_valuation,omitempty"`
}

// AccountRefreshResult is the per-account outcome of a bulk price refresh.
type AccountRefreshResult struct {
	InvestmentAccountID string `json:"investment_account_id"`
	Value               int64  `json:"value"`
}

// RefreshResult summarizes a bulk price refresh. Errors holds per-account
// failures; a failing account never aborts the rest of the batch. Warnings
// holds non-fatal price-provider failures that degraded some prices to zero.
type RefreshResult struct {
	Processed int                    `json:"processed"`
	Updated   int                    `json:"updated"`
	Results   []AccountRefreshResult `json:"results"`
	Errors    []string               `json:"errors"`
	Warnings  []string               `json:"warnings,omitempty"`
}

// InvestmentServicer defines the contract for the investment account
// valuation and ledger engine.
type InvestmentServicer interface {
	CreateAccount(userID string, params InvestmentAccountParams) (*models.InvestmentAccount, error)
	GetUserInvestmentAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.InvestmentAccount], error)
	GetAccountByID(userID, accountID string) (*models.InvestmentAccount, error)
	DeleteAccount(userID, accountID string) error

	CreateTrade(userID, accountID string, params TradeParams) (*models.InvestmentTrade, error)
	UpdateTrade(userID, tradeID string, params TradeParams) (*models.InvestmentTrade, error)
	DeleteTrade(userID, tradeID string) error
	GetAccountTrades(userID, accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.InvestmentTrade], error)

	GetAccountBalance(ctx context.Context, userID, accountID string) (*AccountBalanceResult, error)
	GetLedgerView(ctx context.Context, userID, accountID string) (*LedgerView, error)

	RecordValuation(userID, accountID string, asOf time.Time, valueCents int64) (*models.InvestmentValuation, error)
	RecomputeValuation(ctx context.Context, userID, accountID string, asOf time.Time) (*models.InvestmentValuation, error)
	RefreshUserAccounts(ctx context.Context, userID string) (*RefreshResult, error)
	RefreshAllAccounts(ctx context.Context) (*RefreshResult, error)
}
