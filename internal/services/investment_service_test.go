package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"moneta/internal/models"
	"moneta/internal/pagination"
	"moneta/internal/prices"
	"moneta/internal/testutil"
	"moneta/internal/valuation"
)

// stubPrices satisfies PriceService with canned quotes.
type stubPrices struct {
	quotes   valuation.Quotes
	warnings []prices.Warning
	calls    int
	seen     []prices.SymbolRequest
}

func (s *stubPrices) GetPrices(_ context.Context, requests []prices.SymbolRequest) (valuation.Quotes, []prices.Warning) {
	s.calls++
	s.seen = requests
	return s.quotes, s.warnings
}

func equityQuotes(pairs map[string]float64) valuation.Quotes {
	return valuation.Quotes{Equity: pairs, Crypto: map[string]float64{}}
}

func newTestInvestmentService(db *gorm.DB, stub *stubPrices) InvestmentServicer {
	if stub == nil {
		stub = &stubPrices{}
	}
	return NewInvestmentService(db, stub)
}

func countByReference(t *testing.T, db *gorm.DB, ref string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.Transaction{}).Where("reference = ?", ref).Count(&n).Error; err != nil {
		t.Fatalf("failed to count transactions: %v", err)
	}
	return n
}

func TestCreateInvestmentAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestInvestmentService(db, nil)

	t.Run("creates_underlying_account", func(t *testing.T) {
		user := testutil.CreateTestUser(t, db)

		account, err := svc.CreateAccount(user.ID, InvestmentAccountParams{
			Name:           "Brokerage",
			Kind:           models.InvestmentAccountBrokerage,
			OpeningBalance: 0,
		})
		testutil.AssertNoError(t, err)

		var generic models.Account
		testutil.AssertNoError(t, db.Where("id = ?", account.AccountID).First(&generic).Error)
		if generic.Type != models.AccountTypeInvestment {
			t.Errorf("expected investment account type, got %s", generic.Type)
		}
		if generic.Currency != "USD" {
			t.Errorf("expected USD default currency, got %s", generic.Currency)
		}

		var valuations int64
		db.Model(&models.InvestmentValuation{}).Where("investment_account_id = ?", account.ID).Count(&valuations)
		if valuations != 0 {
			t.Errorf("expected no valuation for zero opening balance, got %d", valuations)
		}
	})

	t.Run("opening_balance_records_initial_valuation", func(t *testing.T) {
		user := testutil.CreateTestUser(t, db)

		account, err := svc.CreateAccount(user.ID, InvestmentAccountParams{
			Name:           "Funded Brokerage",
			OpeningBalance: 500000,
		})
		testutil.AssertNoError(t, err)

		var val models.InvestmentValuation
		testutil.AssertNoError(t, db.Where("investment_account_id = ?", account.ID).First(&val).Error)
		if val.Value != 500000 {
			t.Errorf("expected initial valuation 500000, got %d", val.Value)
		}

		// The plain balance already equals the valuation, so no
		// adjustment transaction should exist.
		var adjustments int64
		db.Model(&models.Transaction{}).Where("account_id = ?", account.AccountID).Count(&adjustments)
		if adjustments != 0 {
			t.Errorf("expected no adjustment transaction, got %d", adjustments)
		}
	})

	t.Run("rejects_missing_name", func(t *testing.T) {
		user := testutil.CreateTestUser(t, db)
		_, err := svc.CreateAccount(user.ID, InvestmentAccountParams{})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("rejects_unknown_kind", func(t *testing.T) {
		user := testutil.CreateTestUser(t, db)
		_, err := svc.CreateAccount(user.ID, InvestmentAccountParams{Name: "X", Kind: "vault"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestTradeMirrorLockstep(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestInvestmentService(db, nil)

	user := testutil.CreateTestUser(t, db)
	account := testutil.CreateTestInvestmentAccount(t, db, user.ID, 1000000)

	t.Run("create_writes_mirror", func(t *testing.T) {
		trade, err := svc.CreateTrade(user.ID, account.ID, TradeParams{
			Type:         models.TradeTypeBuy,
			Symbol:       "AAPL",
			AssetType:    models.TradeAssetEquity,
			Quantity:     decimal.NewFromInt(10),
			PricePerUnit: 40000,
			Amount:       400000,
			Fees:         500,
		})
		testutil.AssertNoError(t, err)

		ref := models.TradeReferencePrefix + trade.ID
		var mirror models.Transaction
		testutil.AssertNoError(t, db.Where("reference = ?", ref).First(&mirror).Error)
		if mirror.Amount != -400500 {
			t.Errorf("expected mirror amount -400500, got %d", mirror.Amount)
		}
		if mirror.Type != models.TransactionTypeExpense {
			t.Errorf("expected expense mirror, got %s", mirror.Type)
		}
		if mirror.AccountID != account.AccountID {
			t.Errorf("mirror attached to wrong account %s", mirror.AccountID)
		}
	})

	t.Run("update_rewrites_mirror_in_place", func(t *testing.T) {
		trade, err := svc.CreateTrade(user.ID, account.ID, TradeParams{
			Type:   models.TradeTypeDeposit,
			Amount: 50000,
		})
		testutil.AssertNoError(t, err)

		_, err = svc.UpdateTrade(user.ID, trade.ID, TradeParams{
			Type:   models.TradeTypeDeposit,
			Amount: 75000,
		})
		testutil.AssertNoError(t, err)

		ref := models.TradeReferencePrefix + trade.ID
		if n := countByReference(t, db, ref); n != 1 {
			t.Fatalf("expected exactly one mirror, got %d", n)
		}
		var mirror models.Transaction
		testutil.AssertNoError(t, db.Where("reference = ?", ref).First(&mirror).Error)
		if mirror.Amount != 75000 {
			t.Errorf("expected updated mirror amount 75000, got %d", mirror.Amount)
		}
	})

	t.Run("delete_removes_both", func(t *testing.T) {
		trade, err := svc.CreateTrade(user.ID, account.ID, TradeParams{
			Type:   models.TradeTypeDividend,
			Amount: 12000,
		})
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, svc.DeleteTrade(user.ID, trade.ID))

		var trades int64
		db.Model(&models.InvestmentTrade{}).Where("id = ?", trade.ID).Count(&trades)
		if trades != 0 {
			t.Errorf("expected trade deleted, found %d", trades)
		}
		if n := countByReference(t, db, models.TradeReferencePrefix+trade.ID); n != 0 {
			t.Errorf("expected mirror deleted, found %d", n)
		}
	})

	t.Run("other_users_cannot_touch_trades", func(t *testing.T) {
		trade, err := svc.CreateTrade(user.ID, account.ID, TradeParams{
			Type:   models.TradeTypeDeposit,
			Amount: 100,
		})
		testutil.AssertNoError(t, err)

		stranger := testutil.CreateTestUser(t, db)
		err = svc.DeleteTrade(stranger.ID, trade.ID)
		testutil.AssertAppError(t, err, "TRADE_NOT_FOUND")
	})
}

func TestValidateTradeParams(t *testing.T) {
	tests := []struct {
		name     string
		params   TradeParams
		wantCode string
	}{
		{
			name:     "buy_without_symbol",
			params:   TradeParams{Type: models.TradeTypeBuy, AssetType: models.TradeAssetEquity, Quantity: decimal.NewFromInt(1), PricePerUnit: 100, Amount: 100},
			wantCode: "MISSING_TRADE_FIELDS",
		},
		{
			name:     "sell_without_quantity",
			params:   TradeParams{Type: models.TradeTypeSell, Symbol: "AAPL", AssetType: models.TradeAssetEquity, PricePerUnit: 100, Amount: 100},
			wantCode: "MISSING_TRADE_FIELDS",
		},
		{
			name:     "buy_with_unknown_asset_type",
			params:   TradeParams{Type: models.TradeTypeBuy, Symbol: "AAPL", AssetType: "bond", Quantity: decimal.NewFromInt(1), PricePerUnit: 100, Amount: 100},
			wantCode: "MISSING_TRADE_FIELDS",
		},
		{
			name:     "positive_withdrawal",
			params:   TradeParams{Type: models.TradeTypeWithdraw, Amount: 5000},
			wantCode: "POSITIVE_WITHDRAWAL",
		},
		{
			name:     "unknown_type",
			params:   TradeParams{Type: "transfer", Amount: 100},
			wantCode: "INVALID_TRADE_TYPE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTradeParams(&tt.params)
			testutil.AssertAppError(t, err, tt.wantCode)
		})
	}

	t.Run("cash_trade_fields_are_cleared", func(t *testing.T) {
		params := TradeParams{
			Type:         models.TradeTypeDeposit,
			Symbol:       "AAPL",
			AssetType:    models.TradeAssetEquity,
			Quantity:     decimal.NewFromInt(3),
			PricePerUnit: 100,
			Amount:       5000,
			Fees:         10,
		}
		testutil.AssertNoError(t, validateTradeParams(&params))
		if params.Symbol != "" || !params.Quantity.IsZero() || params.PricePerUnit != 0 || params.Fees != 0 {
			t.Errorf("expected position fields cleared, got %+v", params)
		}
		if params.OccurredAt.IsZero() {
			t.Error("expected OccurredAt defaulted")
		}
	})
}

func TestGetAccountBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	stub := &stubPrices{quotes: equityQuotes(map[string]float64{"AAPL": 450})}
	svc := newTestInvestmentService(db, stub)

	user := testutil.CreateTestUser(t, db)
	account, err := svc.CreateAccount(user.ID, InvestmentAccountParams{
		Name:           "Brokerage",
		OpeningBalance: 5000000,
	})
	testutil.AssertNoError(t, err)

	_, err = svc.CreateTrade(user.ID, account.ID, TradeParams{
		Type:         models.TradeTypeBuy,
		Symbol:       "AAPL",
		AssetType:    models.TradeAssetEquity,
		Quantity:     decimal.NewFromInt(100),
		PricePerUnit: 40000,
		Amount:       4000000,
		Fees:         1000,
	})
	testutil.AssertNoError(t, err)

	balance, err := svc.GetAccountBalance(context.Background(), user.ID, account.ID)
	testutil.AssertNoError(t, err)

	if balance.CashBalance != 9990.0 {
		t.Errorf("expected cash balance 9990.00, got %.2f", balance.CashBalance)
	}
	if balance.HoldingsValue != 45000.0 {
		t.Errorf("expected holdings value 45000.00, got %.2f", balance.HoldingsValue)
	}
	if balance.TotalValue != 54990.0 {
		t.Errorf("expected total value 54990.00, got %.2f", balance.TotalValue)
	}
	if len(balance.Holdings) != 1 || balance.Holdings[0].Symbol != "AAPL" {
		t.Fatalf("expected single AAPL holding, got %+v", balance.Holdings)
	}
	if len(stub.seen) != 1 || stub.seen[0].Symbol != "AAPL" {
		t.Errorf("expected one AAPL price request, got %+v", stub.seen)
	}
}

func TestRecordValuationReconciles(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestInvestmentService(db, nil)

	user := testutil.CreateTestUser(t, db)
	account, err := svc.CreateAccount(user.ID, InvestmentAccountParams{
		Name:           "Wallet",
		Kind:           models.InvestmentAccountWallet,
		OpeningBalance: 100000,
	})
	testutil.AssertNoError(t, err)

	asOf := time.Now().UTC()

	t.Run("creates_adjustment_for_difference", func(t *testing.T) {
		val, err := svc.RecordValuation(user.ID, account.ID, asOf, 120000)
		testutil.AssertNoError(t, err)

		ref := models.ValuationReferencePrefix + val.ID
		var adj models.Transaction
		testutil.AssertNoError(t, db.Where("reference = ?", ref).First(&adj).Error)
		if adj.Amount != 20000 {
			t.Errorf("expected adjustment +20000, got %d", adj.Amount)
		}
		if adj.Type != models.TransactionTypeAdjustment {
			t.Errorf("expected adjustment type, got %s", adj.Type)
		}
	})

	t.Run("idempotent_at_same_value", func(t *testing.T) {
		val, err := svc.RecordValuation(user.ID, account.ID, asOf, 120000)
		testutil.AssertNoError(t, err)

		ref := models.ValuationReferencePrefix + val.ID
		if n := countByReference(t, db, ref); n != 1 {
			t.Fatalf("expected exactly one adjustment, got %d", n)
		}
		var adj models.Transaction
		testutil.AssertNoError(t, db.Where("reference = ?", ref).First(&adj).Error)
		if adj.Amount != 20000 {
			t.Errorf("expected adjustment unchanged at +20000, got %d", adj.Amount)
		}

		var valuations int64
		db.Model(&models.InvestmentValuation{}).Where("investment_account_id = ?", account.ID).Count(&valuations)
		if valuations != 1 {
			t.Errorf("expected one valuation row for the day, got %d", valuations)
		}
	})

	t.Run("matching_value_removes_adjustment", func(t *testing.T) {
		// Revalue at the plain balance; the existing adjustment nets to
		// zero and must be deleted.
		val, err := svc.RecordValuation(user.ID, account.ID, asOf, 100000)
		testutil.AssertNoError(t, err)

		ref := models.ValuationReferencePrefix + val.ID
		if n := countByReference(t, db, ref); n != 0 {
			t.Errorf("expected adjustment removed, found %d", n)
		}

		var stored models.InvestmentValuation
		testutil.AssertNoError(t, db.Where("id = ?", val.ID).First(&stored).Error)
		if stored.Value != 100000 {
			t.Errorf("expected stored value 100000, got %d", stored.Value)
		}
	})

	t.Run("rejects_negative_value", func(t *testing.T) {
		_, err := svc.RecordValuation(user.ID, account.ID, asOf, -1)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestRefreshUserAccounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	stub := &stubPrices{quotes: equityQuotes(map[string]float64{"AAPL": 500})}
	svc := newTestInvestmentService(db, stub)

	user := testutil.CreateTestUser(t, db)

	funded, err := svc.CreateAccount(user.ID, InvestmentAccountParams{
		Name:           "Brokerage",
		OpeningBalance: 1000000,
	})
	testutil.AssertNoError(t, err)
	_, err = svc.CreateTrade(user.ID, funded.ID, TradeParams{
		Type:         models.TradeTypeBuy,
		Symbol:       "AAPL",
		AssetType:    models.TradeAssetEquity,
		Quantity:     decimal.NewFromInt(10),
		PricePerUnit: 40000,
		Amount:       400000,
	})
	testutil.AssertNoError(t, err)

	cashOnly, err := svc.CreateAccount(user.ID, InvestmentAccountParams{
		Name:           "Cash Wallet",
		Kind:           models.InvestmentAccountWallet,
		OpeningBalance: 250000,
	})
	testutil.AssertNoError(t, err)

	result, err := svc.RefreshUserAccounts(context.Background(), user.ID)
	testutil.AssertNoError(t, err)

	if result.Processed != 2 || result.Updated != 2 {
		t.Fatalf("expected 2 processed and updated, got %d/%d", result.Processed, result.Updated)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}
	if stub.calls != 1 {
		t.Errorf("expected a single batched price fetch, got %d", stub.calls)
	}

	values := make(map[string]int64, len(result.Results))
	for _, r := range result.Results {
		values[r.InvestmentAccountID] = r.Value
	}
	// Cash 10,000 - 4,000 buy = $6,000; holdings 10 * $500 = $5,000.
	if values[funded.ID] != 1100000 {
		t.Errorf("expected funded account value 1100000, got %d", values[funded.ID])
	}
	if values[cashOnly.ID] != 250000 {
		t.Errorf("expected cash-only account value 250000, got %d", values[cashOnly.ID])
	}

	var valuations int64
	db.Model(&models.InvestmentValuation{}).
		Where("investment_account_id IN ?", []string{funded.ID, cashOnly.ID}).
		Count(&valuations)
	if valuations != 2 {
		t.Errorf("expected a valuation per account, got %d", valuations)
	}
}

func TestRefreshIsolatesFailingAccounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestInvestmentService(db, nil)

	user := testutil.CreateTestUser(t, db)

	healthy, err := svc.CreateAccount(user.ID, InvestmentAccountParams{
		Name:           "Healthy Wallet",
		Kind:           models.InvestmentAccountWallet,
		OpeningBalance: 250000,
	})
	testutil.AssertNoError(t, err)

	broken, err := svc.CreateAccount(user.ID, InvestmentAccountParams{
		Name: "Broken Wallet",
		Kind: models.InvestmentAccountWallet,
	})
	testutil.AssertNoError(t, err)

	// Orphan the broken account by removing its underlying ledger
	// account. Its reconcile fails mid-batch; the healthy account must
	// still be revalued.
	testutil.AssertNoError(t, db.Unscoped().Where("id = ?", broken.AccountID).
		Delete(&models.Account{}).Error)

	result, err := svc.RefreshUserAccounts(context.Background(), user.ID)
	testutil.AssertNoError(t, err)

	if result.Processed != 2 {
		t.Errorf("expected both accounts processed, got %d", result.Processed)
	}
	if result.Updated != 1 {
		t.Errorf("expected only the healthy account updated, got %d", result.Updated)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], broken.ID) {
		t.Fatalf("expected one error naming the broken account, got %v", result.Errors)
	}
	if len(result.Results) != 1 || result.Results[0].InvestmentAccountID != healthy.ID {
		t.Fatalf("expected a result for the healthy account only, got %+v", result.Results)
	}

	var val models.InvestmentValuation
	testutil.AssertNoError(t, db.Where("investment_account_id = ?", healthy.ID).First(&val).Error)
	if val.Value != 250000 {
		t.Errorf("expected healthy account valued at 250000, got %d", val.Value)
	}

	var brokenValuations int64
	db.Model(&models.InvestmentValuation{}).Where("investment_account_id = ?", broken.ID).Count(&brokenValuations)
	if brokenValuations != 0 {
		t.Errorf("expected no valuation for the broken account, got %d", brokenValuations)
	}
}

func TestGetLedgerView(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	stub := &stubPrices{quotes: equityQuotes(nil)}
	svc := newTestInvestmentService(db, stub)

	user := testutil.CreateTestUser(t, db)
	account, err := svc.CreateAccount(user.ID, InvestmentAccountParams{
		Name:           "Brokerage",
		OpeningBalance: 300000,
	})
	testutil.AssertNoError(t, err)

	_, err = svc.CreateTrade(user.ID, account.ID, TradeParams{
		Type:   models.TradeTypeDeposit,
		Amount: 100000,
	})
	testutil.AssertNoError(t, err)

	view, err := svc.GetLedgerView(context.Background(), user.ID, account.ID)
	testutil.AssertNoError(t, err)

	if view.Account.ID != account.ID {
		t.Errorf("expected account %s, got %s", account.ID, view.Account.ID)
	}
	if view.Balance.CashBalance != 4000.0 {
		t.Errorf("expected cash balance 4000.00, got %.2f", view.Balance.CashBalance)
	}
	if len(view.RecentTrades) != 1 {
		t.Errorf("expected one recent trade, got %d", len(view.RecentTrades))
	}
	if view.LatestValuation == nil || view.LatestValuation.Value != 300000 {
		t.Errorf("expected latest valuation 300000, got %+v", view.LatestValuation)
	}
}

func TestDeleteInvestmentAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestInvestmentService(db, nil)

	user := testutil.CreateTestUser(t, db)
	account, err := svc.CreateAccount(user.ID, InvestmentAccountParams{
		Name:           "Doomed",
		OpeningBalance: 50000,
	})
	testutil.AssertNoError(t, err)

	_, err = svc.CreateTrade(user.ID, account.ID, TradeParams{
		Type:   models.TradeTypeDeposit,
		Amount: 10000,
	})
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, svc.DeleteAccount(user.ID, account.ID))

	_, err = svc.GetAccountByID(user.ID, account.ID)
	testutil.AssertAppError(t, err, "INVESTMENT_ACCOUNT_NOT_FOUND")

	var trades, transactions, valuations int64
	db.Model(&models.InvestmentTrade{}).Where("investment_account_id = ?", account.ID).Count(&trades)
	db.Model(&models.Transaction{}).Where("account_id = ?", account.AccountID).Count(&transactions)
	db.Model(&models.InvestmentValuation{}).Where("investment_account_id = ?", account.ID).Count(&valuations)
	if trades != 0 || transactions != 0 || valuations != 0 {
		t.Errorf("expected cascade delete, leftover trades=%d transactions=%d valuations=%d", trades, transactions, valuations)
	}
}

func TestGetAccountTradesPagination(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestInvestmentService(db, nil)

	user := testutil.CreateTestUser(t, db)
	account := testutil.CreateTestInvestmentAccount(t, db, user.ID, 0)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateTrade(user.ID, account.ID, TradeParams{
			Type:       models.TradeTypeDeposit,
			Amount:     int64(1000 * (i + 1)),
			OccurredAt: time.Now().UTC().Add(time.Duration(i) * time.Hour),
		})
		testutil.AssertNoError(t, err)
	}

	page, err := svc.GetAccountTrades(user.ID, account.ID, pagination.PageRequest{Page: 1, PageSize: 2})
	testutil.AssertNoError(t, err)

	if page.TotalItems != 3 {
		t.Errorf("expected 3 total trades, got %d", page.TotalItems)
	}
	if len(page.Data) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page.Data))
	}
	if page.Data[0].Amount != 3000 {
		t.Errorf("expected most recent trade first, got amount %d", page.Data[0].Amount)
	}
}
