package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "moneta/internal/errors"
	"moneta/internal/models"
	"moneta/internal/pagination"
	"moneta/internal/prices"
	"moneta/internal/valuation"
)

// investmentService handles the investment account valuation and ledger
// engine: account and trade CRUD with mirrored ledger transactions, computed
// balances, and valuation reconciliation.
type investmentService struct {
	db     *gorm.DB
	prices PriceService
}

// NewInvestmentService creates a new InvestmentServicer.
func NewInvestmentService(db *gorm.DB, priceService PriceService) InvestmentServicer {
	return &investmentService{db: db, prices: priceService}
}

// CreateAccount creates an investment account together with its underlying
// generic account. A non-zero opening balance records an initial valuation
// dated today; since the plain balance equals the opening balance at that
// point, no adjustment transaction appears.
func (s *investmentService) CreateAccount(userID string, params InvestmentAccountParams) (*models.InvestmentAccount, error) {
	if params.Name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	if params.Currency == "" {
		params.Currency = "USD"
	}
	if params.Kind == "" {
		params.Kind = models.InvestmentAccountBrokerage
	}
	if params.Kind != models.InvestmentAccountBrokerage && params.Kind != models.InvestmentAccountWallet {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "kind must be brokerage or wallet")
	}

	account := &models.InvestmentAccount{
		UserID:     userID,
		AssetClass: params.AssetClass,
		Kind:       params.Kind,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		generic := &models.Account{
			UserID:         userID,
			Name:           params.Name,
			Type:           models.AccountTypeInvestment,
			Description:    params.Description,
			Currency:       params.Currency,
			OpeningBalance: params.OpeningBalance,
			IsActive:       true,
		}
		if txErr := tx.Create(generic).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}

		account.AccountID = generic.ID
		if txErr := tx.Create(account).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		account.Account = *generic

		if params.OpeningBalance != 0 {
			_, txErr := s.reconcile(tx, account, nowUTC(), params.OpeningBalance)
			return txErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// GetUserInvestmentAccounts returns a paginated list of the user's
// investment accounts.
func (s *investmentService) GetUserInvestmentAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.InvestmentAccount], error) {
	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.InvestmentAccount{}).
		Where("user_id = ?", userID).
		Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var accounts []models.InvestmentAccount
	if err := s.db.Preload("Account").Where("user_id = ?", userID).
		Scopes(pagination.Paginate(page)).Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(accounts, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetAccountByID returns an investment account if it belongs to the user.
func (s *investmentService) GetAccountByID(userID, accountID string) (*models.InvestmentAccount, error) {
	var account models.InvestmentAccount
	if err := s.db.Preload("Account").
		Where("id = ? AND user_id = ?", accountID, userID).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvestmentAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// DeleteAccount deletes an investment account together with its trades,
// valuations, ledger transactions, and underlying generic account.
func (s *investmentService) DeleteAccount(userID, accountID string) error {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Where("investment_account_id = ?", account.ID).Delete(&models.InvestmentTrade{}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		if txErr := tx.Where("investment_account_id = ?", account.ID).Delete(&models.InvestmentValuation{}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		// Mirrored trade transactions and valuation adjustments all live on
		// the generic account, so this removes both.
		if txErr := tx.Where("account_id = ?", account.AccountID).Delete(&models.Transaction{}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		if txErr := tx.Where("id = ?", account.ID).Delete(&models.InvestmentAccount{}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		if txErr := tx.Where("id = ?", account.AccountID).Delete(&models.Account{}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	})
}

// CreateTrade appends a trade to the account's log and writes its mirrored
// ledger transaction, in one transaction.
func (s *investmentService) CreateTrade(userID, accountID string, params TradeParams) (*models.InvestmentTrade, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}
	if err := validateTradeParams(&params); err != nil {
		return nil, err
	}

	trade := &models.InvestmentTrade{
		InvestmentAccountID: account.ID,
		Type:                params.Type,
		Symbol:              params.Symbol,
		AssetType:           params.AssetType,
		Quantity:            params.Quantity,
		PricePerUnit:        params.PricePerUnit,
		Amount:              params.Amount,
		Fees:                params.Fees,
		OccurredAt:          params.OccurredAt,
		Notes:               params.Notes,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(trade).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return s.writeTradeMirror(tx, account, trade)
	})
	if err != nil {
		return nil, err
	}

	return trade, nil
}

// UpdateTrade edits a trade and keeps its mirrored ledger transaction in
// lockstep.
func (s *investmentService) UpdateTrade(userID, tradeID string, params TradeParams) (*models.InvestmentTrade, error) {
	trade, account, err := s.getTradeForUser(userID, tradeID)
	if err != nil {
		return nil, err
	}
	if err := validateTradeParams(&params); err != nil {
		return nil, err
	}

	trade.Type = params.Type
	trade.Symbol = params.Symbol
	trade.AssetType = params.AssetType
	trade.Quantity = params.Quantity
	trade.PricePerUnit = params.PricePerUnit
	trade.Amount = params.Amount
	trade.Fees = params.Fees
	trade.OccurredAt = params.OccurredAt
	trade.Notes = params.Notes

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Save(trade).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return s.writeTradeMirror(tx, account, trade)
	})
	if err != nil {
		return nil, err
	}

	return trade, nil
}

// DeleteTrade removes a trade and its mirrored ledger transaction together;
// neither record survives alone.
func (s *investmentService) DeleteTrade(userID, tradeID string) error {
	trade, _, err := s.getTradeForUser(userID, tradeID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Delete(trade).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		ref := models.TradeReferencePrefix + trade.ID
		if txErr := tx.Where("reference = ?", ref).Delete(&models.Transaction{}).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	})
}

// GetAccountTrades returns a paginated list of trades for an account, most
// recent first.
func (s *investmentService) GetAccountTrades(userID, accountID string, page pagination.PageRequest) (*pagination.PageResponse[models.InvestmentTrade], error) {
	if _, err := s.GetAccountByID(userID, accountID); err != nil {
		return nil, err
	}

	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.InvestmentTrade{}).
		Where("investment_account_id = ?", accountID).
		Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var trades []models.InvestmentTrade
	if err := s.db.Where("investment_account_id = ?", accountID).
		Order("occurred_at DESC").
		Scopes(pagination.Paginate(page)).
		Find(&trades).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(trades, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetAccountBalance replays the account's full trade log, prices the open
// positions, and returns the computed balance with any price warnings.
func (s *investmentService) GetAccountBalance(ctx context.Context, userID, accountID string) (*AccountBalanceResult, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}
	trades, err := s.accountTrades(account.ID)
	if err != nil {
		return nil, err
	}
	return s.computeBalance(ctx, account, trades), nil
}

// GetLedgerView returns the read-only aggregation of an account: computed
// balance, latest recorded valuation, and recent activity.
func (s *investmentService) GetLedgerView(ctx context.Context, userID, accountID string) (*LedgerView, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}
	trades, err := s.accountTrades(account.ID)
	if err != nil {
		return nil, err
	}

	view := &LedgerView{
		Account: account,
		Balance: *s.computeBalance(ctx, account, trades),
	}

	var recent []models.InvestmentTrade
	if err := s.db.Where("investment_account_id = ?", account.ID).
		Order("occurred_at DESC").Limit(10).
		Find(&recent).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	view.RecentTrades = recent

	var latest models.InvestmentValuation
	err = s.db.Where("investment_account_id = ?", account.ID).
		Order("date DESC").First(&latest).Error
	switch {
	case err == nil:
		view.LatestValuation = &latest
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return view, nil
}

// accountTrades fetches an account's full trade log ordered by occurrence
// time. Valuation is a full replay; fetching a partial log would silently
// corrupt the result.
func (s *investmentService) accountTrades(accountID string) ([]models.InvestmentTrade, error) {
	var trades []models.InvestmentTrade
	if err := s.db.Where("investment_account_id = ?", accountID).
		Order("occurred_at ASC").
		Find(&trades).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return trades, nil
}

// computeBalance prices the replayed positions and assembles the balance
// result. Provider failures surface as warnings, never as errors; symbols
// without quotes are valued at zero.
func (s *investmentService) computeBalance(ctx context.Context, account *models.InvestmentAccount, trades []models.InvestmentTrade) *AccountBalanceResult {
	ledger := valuation.ReplayTrades(account.Account.OpeningBalance, trades)
	quotes, warnings := s.prices.GetPrices(ctx, symbolRequests(ledger.Positions))

	result := &AccountBalanceResult{
		AccountBalance: valuation.ComputeAccountBalance(account.Account.OpeningBalance, trades, quotes),
	}
	for _, w := range warnings {
		result.Warnings = append(result.Warnings, w.String())
	}
	return result
}

// getTradeForUser loads a trade and verifies that its account belongs to
// the user. Ownership failures report the trade as not found.
func (s *investmentService) getTradeForUser(userID, tradeID string) (*models.InvestmentTrade, *models.InvestmentAccount, error) {
	var trade models.InvestmentTrade
	if err := s.db.Where("id = ?", tradeID).First(&trade).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrTradeNotFound
		}
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	account, err := s.GetAccountByID(userID, trade.InvestmentAccountID)
	if err != nil {
		return nil, nil, apperrors.ErrTradeNotFound
	}
	return &trade, account, nil
}

// writeTradeMirror creates or updates the generic ledger transaction that
// mirrors a trade's cash effect, addressed by its reference string.
func (s *investmentService) writeTradeMirror(tx *gorm.DB, account *models.InvestmentAccount, trade *models.InvestmentTrade) error {
	effect := valuation.CashEffect(trade)
	ref := models.TradeReferencePrefix + trade.ID

	var mirror models.Transaction
	err := tx.Where("reference = ?", ref).First(&mirror).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"type":        mirrorType(effect),
			"amount":      effect,
			"description": mirrorDescription(trade),
			"date":        trade.OccurredAt,
		}
		if txErr := tx.Model(&mirror).Updates(updates).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		mirror = models.Transaction{
			UserID:      account.UserID,
			AccountID:   account.AccountID,
			Type:        mirrorType(effect),
			Amount:      effect,
			Description: mirrorDescription(trade),
			Date:        trade.OccurredAt,
			Reference:   ref,
		}
		if txErr := tx.Create(&mirror).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	default:
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
}

// validateTradeParams checks the per-type field requirements and applies
// defaults. Buy and sell trades need symbol, asset type, quantity, and
// price; the other types are pure cash movements and have those fields
// cleared. Withdrawal amounts must arrive already non-positive.
func validateTradeParams(p *TradeParams) error {
	if p.OccurredAt.IsZero() {
		p.OccurredAt = nowUTC()
	}

	switch p.Type {
	case models.TradeTypeBuy, models.TradeTypeSell:
		if p.Symbol == "" {
			return apperrors.ErrMissingTradeFields
		}
		if p.AssetType != models.TradeAssetCrypto && p.AssetType != models.TradeAssetEquity {
			return apperrors.ErrMissingTradeFields
		}
		if !p.Quantity.IsPositive() {
			return apperrors.ErrMissingTradeFields
		}
		if p.PricePerUnit <= 0 {
			return apperrors.ErrMissingTradeFields
		}
		if p.Amount < 0 {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "trade amount must not be negative")
		}
		if p.Fees < 0 {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "trade fees must not be negative")
		}
	case models.TradeTypeWithdraw:
		if p.Amount > 0 {
			return apperrors.ErrPositiveWithdrawal
		}
		clearTradeFields(p)
	case models.TradeTypeDeposit, models.TradeTypeDividend, models.TradeTypeInterest, models.TradeTypeAdjustment:
		clearTradeFields(p)
	case models.TradeTypeFee:
		if p.Amount < 0 {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "fee amount must not be negative")
		}
		clearTradeFields(p)
	default:
		return apperrors.ErrInvalidTradeType
	}
	return nil
}

func clearTradeFields(p *TradeParams) {
	p.Symbol = ""
	p.AssetType = ""
	p.Quantity = decimal.Zero
	p.PricePerUnit = 0
	p.Fees = 0
}

// mirrorType maps a signed cash effect onto the generic transaction types.
func mirrorType(effect int64) models.TransactionType {
	if effect >= 0 {
		return models.TransactionTypeIncome
	}
	return models.TransactionTypeExpense
}

func mirrorDescription(trade *models.InvestmentTrade) string {
	switch trade.Type {
	case models.TradeTypeBuy:
		return fmt.Sprintf("Buy %s %s", trade.Quantity, trade.Symbol)
	case models.TradeTypeSell:
		return fmt.Sprintf("Sell %s %s", trade.Quantity, trade.Symbol)
	case models.TradeTypeDeposit:
		return "Deposit"
	case models.TradeTypeWithdraw:
		return "Withdrawal"
	case models.TradeTypeDividend:
		return "Dividend"
	case models.TradeTypeInterest:
		return "Interest"
	case models.TradeTypeFee:
		return "Fee"
	default:
		return "Adjustment"
	}
}

func symbolRequests(positions []valuation.Position) []prices.SymbolRequest {
	requests := make([]prices.SymbolRequest, 0, len(positions))
	for _, p := range positions {
		requests = append(requests, prices.SymbolRequest{Symbol: p.Symbol, AssetType: p.AssetType})
	}
	return requests
}
