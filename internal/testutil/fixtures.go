package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"moneta/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCashAccount creates a cash account with the given opening balance
// (in cents).
func CreateTestCashAccount(t *testing.T, db *gorm.DB, userID string, openingBalance int64) *models.Account {
	t.Helper()

	account := &models.Account{
		UserID:         userID,
		Name:           fmt.Sprintf("Test Account %d", nextID()),
		Type:           models.AccountTypeCash,
		OpeningBalance: openingBalance,
		Currency:       "USD",
		IsActive:       true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test cash account: %v", err)
	}
	return account
}

// CreateTestInvestmentAccount creates an investment account with its
// underlying generic account and the given opening balance (in cents).
func CreateTestInvestmentAccount(t *testing.T, db *gorm.DB, userID string, openingBalance int64) *models.InvestmentAccount {
	t.Helper()

	generic := &models.Account{
		UserID:         userID,
		Name:           fmt.Sprintf("Test Brokerage %d", nextID()),
		Type:           models.AccountTypeInvestment,
		OpeningBalance: openingBalance,
		Currency:       "USD",
		IsActive:       true,
	}
	if err := db.Create(generic).Error; err != nil {
		t.Fatalf("failed to create underlying account: %v", err)
	}

	account := &models.InvestmentAccount{
		UserID:    userID,
		AccountID: generic.ID,
		Kind:      models.InvestmentAccountBrokerage,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test investment account: %v", err)
	}
	account.Account = *generic
	return account
}

// CreateTestTrade creates a buy trade for the given symbol.
func CreateTestTrade(t *testing.T, db *gorm.DB, accountID, symbol string, quantity int64, amount int64) *models.InvestmentTrade {
	t.Helper()

	trade := &models.InvestmentTrade{
		InvestmentAccountID: accountID,
		Type:                models.TradeTypeBuy,
		Symbol:              symbol,
		AssetType:           models.TradeAssetEquity,
		Quantity:            decimal.NewFromInt(quantity),
		PricePerUnit:        amount / quantity,
		Amount:              amount,
		OccurredAt:          time.Now().UTC(),
	}
	if err := db.Create(trade).Error; err != nil {
		t.Fatalf("failed to create test trade: %v", err)
	}
	return trade
}

// CreateTestTransaction creates a transaction of the given type and amount
// (in cents, signed).
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, accountID string, txType models.TransactionType, amount int64) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:    userID,
		AccountID: accountID,
		Type:      txType,
		Amount:    amount,
		Date:      time.Now().UTC(),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}
