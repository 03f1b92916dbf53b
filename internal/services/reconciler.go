package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "moneta/internal/errors"
	"moneta/internal/models"
	"moneta/internal/prices"
	"moneta/internal/valuation"
)

// RecordValuation stores a user-supplied valuation for the given day and
// reconciles the ledger against it.
func (s *investmentService) RecordValuation(userID, accountID string, asOf time.Time, valueCents int64) (*models.InvestmentValuation, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}
	if valueCents < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "valuation must not be negative")
	}
	if asOf.IsZero() {
		asOf = nowUTC()
	}

	var val *models.InvestmentValuation
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		val, txErr = s.reconcile(tx, account, asOf, valueCents)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

// RecomputeValuation computes the account's market value from live prices
// and records it as today's valuation, reconciling the ledger in the same
// step.
func (s *investmentService) RecomputeValuation(ctx context.Context, userID, accountID string, asOf time.Time) (*models.InvestmentValuation, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}
	trades, err := s.accountTrades(account.ID)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = nowUTC()
	}

	balance := s.computeBalance(ctx, account, trades)
	valueCents := valuation.Cents(balance.TotalValue)

	var val *models.InvestmentValuation
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		val, txErr = s.reconcile(tx, account, asOf, valueCents)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

// RefreshUserAccounts revalues all of one user's investment accounts from
// live prices.
func (s *investmentService) RefreshUserAccounts(ctx context.Context, userID string) (*RefreshResult, error) {
	var accounts []models.InvestmentAccount
	if err := s.db.Preload("Account").Where("user_id = ?", userID).
		Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.refreshAccounts(ctx, accounts)
}

// RefreshAllAccounts revalues every investment account in the system. Run
// by the refresh daemon on an interval.
func (s *investmentService) RefreshAllAccounts(ctx context.Context) (*RefreshResult, error) {
	var accounts []models.InvestmentAccount
	if err := s.db.Preload("Account").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.refreshAccounts(ctx, accounts)
}

// refreshAccounts revalues a batch of accounts against a single price
// fetch covering the union of their open positions. Each account is
// reconciled in its own transaction so one failure cannot poison the rest.
func (s *investmentService) refreshAccounts(ctx context.Context, accounts []models.InvestmentAccount) (*RefreshResult, error) {
	result := &RefreshResult{
		Results: []AccountRefreshResult{},
		Errors:  []string{},
	}

	tradesByAccount := make(map[string][]models.InvestmentTrade, len(accounts))
	seen := make(map[prices.SymbolRequest]struct{})
	var requests []prices.SymbolRequest

	for i := range accounts {
		account := &accounts[i]
		trades, err := s.accountTrades(account.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("account %s: %v", account.ID, err))
			continue
		}
		tradesByAccount[account.ID] = trades

		ledger := valuation.ReplayTrades(account.Account.OpeningBalance, trades)
		for _, req := range symbolRequests(ledger.Positions) {
			if _, ok := seen[req]; ok {
				continue
			}
			seen[req] = struct{}{}
			requests = append(requests, req)
		}
	}

	quotes, warnings := s.prices.GetPrices(ctx, requests)
	for _, w := range warnings {
		result.Warnings = append(result.Warnings, w.String())
	}

	asOf := nowUTC()
	for i := range accounts {
		account := &accounts[i]
		trades, ok := tradesByAccount[account.ID]
		if !ok {
			result.Processed++
			continue
		}
		result.Processed++

		balance := valuation.ComputeAccountBalance(account.Account.OpeningBalance, trades, quotes)
		valueCents := valuation.Cents(balance.TotalValue)

		err := s.db.Transaction(func(tx *gorm.DB) error {
			_, txErr := s.reconcile(tx, account, asOf, valueCents)
			return txErr
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("account %s: %v", account.ID, err))
			continue
		}

		result.Updated++
		result.Results = append(result.Results, AccountRefreshResult{
			InvestmentAccountID: account.ID,
			Value:               valueCents,
		})
	}

	return result, nil
}

// reconcile records (or updates) the account's valuation for the asOf day
// and brings the ledger into agreement with it through a single synthetic
// adjustment transaction. Must run inside tx.
//
// The plain balance is the opening balance plus every ledger transaction
// dated on or before the asOf day, including any adjustment from a prior
// reconcile at the same date. The adjustment is therefore corrected by the
// remaining difference, which makes the whole operation idempotent: a
// second run at the same value finds a zero difference and leaves one
// adjustment (or none) behind.
func (s *investmentService) reconcile(tx *gorm.DB, account *models.InvestmentAccount, asOf time.Time, valueCents int64) (*models.InvestmentValuation, error) {
	asOfDate := dateOnly(asOf)
	cutoff := asOfDate.Add(24 * time.Hour)

	var generic models.Account
	if err := tx.Where("id = ?", account.AccountID).First(&generic).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var txSum int64
	if err := tx.Model(&models.Transaction{}).
		Where("account_id = ? AND date < ?", account.AccountID, cutoff).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&txSum).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	plain := generic.OpeningBalance + txSum
	diff := valueCents - plain

	val, err := s.upsertValuation(tx, account.ID, asOfDate, valueCents)
	if err != nil {
		return nil, err
	}

	ref := models.ValuationReferencePrefix + val.ID
	var adjustment models.Transaction
	adjErr := tx.Where("reference = ?", ref).First(&adjustment).Error

	switch {
	case adjErr == nil:
		newAmount := adjustment.Amount + diff
		if newAmount == 0 {
			if txErr := tx.Delete(&adjustment).Error; txErr != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
			return val, nil
		}
		updates := map[string]interface{}{
			"amount": newAmount,
			"date":   asOfDate,
		}
		if txErr := tx.Model(&adjustment).Updates(updates).Error; txErr != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return val, nil
	case errors.Is(adjErr, gorm.ErrRecordNotFound):
		if diff == 0 {
			return val, nil
		}
		adjustment = models.Transaction{
			UserID:      account.UserID,
			AccountID:   account.AccountID,
			Type:        models.TransactionTypeAdjustment,
			Amount:      diff,
			Description: "Valuation Adjustment",
			Date:        asOfDate,
			Reference:   ref,
		}
		if txErr := tx.Create(&adjustment).Error; txErr != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return val, nil
	default:
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, adjErr)
	}
}

// upsertValuation writes the valuation row for (account, date), updating
// the value in place when one already exists for that day.
func (s *investmentService) upsertValuation(tx *gorm.DB, investmentAccountID string, asOfDate time.Time, valueCents int64) (*models.InvestmentValuation, error) {
	var val models.InvestmentValuation
	err := tx.Where("investment_account_id = ? AND date = ?", investmentAccountID, asOfDate).
		First(&val).Error
	switch {
	case err == nil:
		if txErr := tx.Model(&val).Update("value", valueCents).Error; txErr != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		val.Value = valueCents
		return &val, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		val = models.InvestmentValuation{
			InvestmentAccountID: investmentAccountID,
			Date:                asOfDate,
			Value:               valueCents,
		}
		if txErr := tx.Create(&val).Error; txErr != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return &val, nil
	default:
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// dateOnly truncates a timestamp to UTC midnight. Valuations are daily.
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
