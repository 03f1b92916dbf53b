package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "moneta/internal/errors"
	"moneta/internal/models"
	"moneta/internal/pagination"
	"moneta/internal/services"
)

// InvestmentHandler handles investment account, trade, and valuation requests.
type InvestmentHandler struct {
	investmentService services.InvestmentServicer
}

// NewInvestmentHandler creates a new InvestmentHandler.
func NewInvestmentHandler(investmentService services.InvestmentServicer) *InvestmentHandler {
	return &InvestmentHandler{investmentService: investmentService}
}

// CreateInvestmentAccountRequest represents the payload for creating an
// investment account.
type CreateInvestmentAccountRequest struct {
	Name           string `json:"name" binding:"required,min=1,max=200"`
	Description    string `json:"description" binding:"max=500"`
	Currency       string `json:"currency" binding:"omitempty,iso4217"`
	AssetClass     string `json:"asset_class" binding:"max=50"`
	Kind           string `json:"kind" binding:"omitempty,account_kind"`
	OpeningBalance int64  `json:"opening_balance" binding:"gte=0"`
}

// TradeRequest represents the payload for creating or editing a trade.
// Amount and fees are in minor units; withdrawal amounts must be zero or
// negative.
type TradeRequest struct {
	Type         string          `json:"type" binding:"required,trade_type"`
	Symbol       string          `json:"symbol" binding:"max=20"`
	AssetType    string          `json:"asset_type" binding:"omitempty,asset_type"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit int64           `json:"price_per_unit" binding:"gte=0"`
	Amount       int64           `json:"amount"`
	Fees         int64           `json:"fees" binding:"gte=0"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Notes        string          `json:"notes" binding:"max=500"`
}

func (r TradeRequest) toParams() services.TradeParams {
	return services.TradeParams{
		Type:         models.TradeType(r.Type),
		Symbol:       r.Symbol,
		AssetType:    models.TradeAssetType(r.AssetType),
		Quantity:     r.Quantity,
		PricePerUnit: r.PricePerUnit,
		Amount:       r.Amount,
		Fees:         r.Fees,
		OccurredAt:   r.OccurredAt,
		Notes:        r.Notes,
	}
}

// RecordValuationRequest represents the payload for a manual valuation entry.
type RecordValuationRequest struct {
	Value int64     `json:"value" binding:"gte=0"`
	AsOf  time.Time `json:"as_of"`
}

// CreateAccount handles creating an investment account.
// @Summary     Create investment account
// @Description Create an investment account with its underlying ledger account
// @Tags        investments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateInvestmentAccountRequest true "Account details"
// @Success     201 {object} models.InvestmentAccount "Account created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /investment-accounts [post]
func (h *InvestmentHandler) CreateAccount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateInvestmentAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	account, err := h.investmentService.CreateAccount(userID, services.InvestmentAccountParams{
		Name:           req.Name,
		Description:    req.Description,
		Currency:       req.Currency,
		AssetClass:     req.AssetClass,
		Kind:           models.InvestmentAccountKind(req.Kind),
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"investment_account": account})
}

// GetAccounts handles listing the user's investment accounts.
// @Summary     Get investment accounts
// @Description Get a paginated list of the user's investment accounts
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.InvestmentAccount] "Paginated accounts"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /investment-accounts [get]
func (h *InvestmentHandler) GetAccounts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	accounts, err := h.investmentService.GetUserInvestmentAccounts(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, accounts)
}

// GetAccount handles fetching a single investment account.
// @Summary     Get investment account
// @Description Get one of the user's investment accounts by ID
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Investment account ID"
// @Success     200 {object} models.InvestmentAccount "Account"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /investment-accounts/{id} [get]
func (h *InvestmentHandler) GetAccount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.investmentService.GetAccountByID(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"investment_account": account})
}

// DeleteAccount handles deleting an investment account and everything under it.
// @Summary     Delete investment account
// @Description Delete an investment account, its trades, valuations, and ledger rows
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Investment account ID"
// @Success     204 "Account deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /investment-accounts/{id} [delete]
func (h *InvestmentHandler) DeleteAccount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.investmentService.DeleteAccount(userID, c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetBalance handles computing an account's current balance from live prices.
// @Summary     Get computed balance
// @Description Replay the account's trade log and price open positions
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Investment account ID"
// @Success     200 {object} services.AccountBalanceResult "Computed balance"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /investment-accounts/{id}/balance [get]
func (h *InvestmentHandler) GetBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	balance, err := h.investmentService.GetAccountBalance(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// GetLedger handles the account ledger view.
// @Summary     Get account ledger view
// @Description Get the computed balance, latest valuation, and recent trades
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Investment account ID"
// @Success     200 {object} services.LedgerView "Ledger view"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /investment-accounts/{id}/ledger [get]
func (h *InvestmentHandler) GetLedger(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	view, err := h.investmentService.GetLedgerView(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// CreateTrade handles appending a trade to an account's log.
// @Summary     Create trade
// @Description Append a trade and write its mirrored ledger transaction
// @Tags        trades
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string       true "Investment account ID"
// @Param       request body TradeRequest true "Trade details"
// @Success     201 {object} models.InvestmentTrade "Trade created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /investment-accounts/{id}/trades [post]
func (h *InvestmentHandler) CreateTrade(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	trade, err := h.investmentService.CreateTrade(userID, c.Param("id"), req.toParams())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"trade": trade})
}

// GetTrades handles listing an account's trades.
// @Summary     Get trades
// @Description Get a paginated list of an account's trades, most recent first
// @Tags        trades
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Investment account ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.InvestmentTrade] "Paginated trades"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /investment-accounts/{id}/trades [get]
func (h *InvestmentHandler) GetTrades(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	trades, err := h.investmentService.GetAccountTrades(userID, c.Param("id"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, trades)
}

// UpdateTrade handles editing a trade.
// @Summary     Update trade
// @Description Edit a trade and rewrite its mirrored ledger transaction
// @Tags        trades
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       tradeID path string       true "Trade ID"
// @Param       request body TradeRequest true "Trade details"
// @Success     200 {object} models.InvestmentTrade "Trade updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Trade not found"
// @Router      /investment-trades/{tradeID} [put]
func (h *InvestmentHandler) UpdateTrade(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	trade, err := h.investmentService.UpdateTrade(userID, c.Param("tradeID"), req.toParams())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trade": trade})
}

// DeleteTrade handles deleting a trade.
// @Summary     Delete trade
// @Description Delete a trade together with its mirrored ledger transaction
// @Tags        trades
// @Produce     json
// @Security    BearerAuth
// @Param       tradeID path string true "Trade ID"
// @Success     204 "Trade deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Trade not found"
// @Router      /investment-trades/{tradeID} [delete]
func (h *InvestmentHandler) DeleteTrade(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.investmentService.DeleteTrade(userID, c.Param("tradeID")); err != nil {
		respondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RecordValuation handles a manual valuation entry.
// @Summary     Record valuation
// @Description Record a valuation for a day and reconcile the ledger against it
// @Tags        valuations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                 true "Investment account ID"
// @Param       request body RecordValuationRequest true "Valuation details"
// @Success     200 {object} models.InvestmentValuation "Valuation recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /investment-accounts/{id}/valuations [post]
func (h *InvestmentHandler) RecordValuation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RecordValuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	val, err := h.investmentService.RecordValuation(userID, c.Param("id"), req.AsOf, req.Value)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valuation": val})
}

// Recompute handles recomputing an account's valuation from live prices.
// @Summary     Recompute valuation
// @Description Compute the account's market value from live prices and record it as today's valuation
// @Tags        valuations
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Investment account ID"
// @Success     200 {object} models.InvestmentValuation "Valuation recorded"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /investment-accounts/{id}/recompute [post]
func (h *InvestmentHandler) Recompute(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	val, err := h.investmentService.RecomputeValuation(c.Request.Context(), userID, c.Param("id"), time.Time{})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valuation": val})
}

// Refresh handles revaluing all of the user's investment accounts.
// @Summary     Refresh investment accounts
// @Description Revalue all of the user's investment accounts from live prices
// @Tags        valuations
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.RefreshResult "Refresh summary"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /investments/refresh [post]
func (h *InvestmentHandler) Refresh(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.investmentService.RefreshUserAccounts(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
