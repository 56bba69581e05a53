package v1

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/drawroom/drawroom-api/internal/api/handler/v1/response"
	"github.com/drawroom/drawroom-api/internal/domain"
)

type WalletService interface {
	GetBalances(ctx context.Context, userID uint) ([]domain.Wallet, error)
	GetHistory(ctx context.Context, userID uint, mode domain.WalletMode, limit int) ([]domain.Transaction, error)
}

type WalletHandler struct {
	svc  WalletService
	uSvc UserService
}

func NewWalletHandler(svc WalletService, uSvc UserService) *WalletHandler {
	return &WalletHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

// HandleGetWallets godoc
// @Summary      Get the authenticated user's balances
// @Tags         wallets
// @Produce      json
// @Success      200  {array}   domain.Wallet
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /wallets [get]
// @Security BearerAuth
func (h *WalletHandler) HandleGetWallets(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	wallets, err := h.svc.GetBalances(ctx.Request.Context(), user.ID)
	if err != nil {
		err = fmt.Errorf("v1.HandleGetWallets -> h.svc.GetBalances -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, wallets)
}

// HandleGetTransactions godoc
// @Summary      Get the authenticated user's transaction history, newest first
// @Tags         wallets
// @Produce      json
// @Param        mode     path       string true "wallet mode" Enums(DEMO, REAL)
// @Param        limit    query      int false "max rows" default(50)
// @Success      200      {array}    domain.Transaction
// @Failure      400      {object}   response.Err
// @Failure      401      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /wallets/{mode}/transactions [get]
// @Security BearerAuth
func (h *WalletHandler) HandleGetTransactions(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	mode, err := domain.ParseWalletMode(ctx.Param("mode"))
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))

	transactions, err := h.svc.GetHistory(ctx.Request.Context(), user.ID, mode, limit)
	if err != nil {
		err = fmt.Errorf("v1.HandleGetTransactions -> h.svc.GetHistory -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, transactions)
}
