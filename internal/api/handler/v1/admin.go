package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/drawroom/drawroom-api/internal/api/handler/v1/request"
	"github.com/drawroom/drawroom-api/internal/api/handler/v1/response"
	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/service"
)

type AdminTemplateService interface {
	CreateTemplate(ctx context.Context, template domain.DrawTemplate) (domain.DrawTemplate, error)
	ListTemplates(ctx context.Context) ([]domain.DrawTemplate, error)
	UpdateFlags(ctx context.Context, id uint, enabled, requiresDeposit, autoFill bool) (domain.DrawTemplate, error)
	EnsureOpenDraws(ctx context.Context) error
}

type AdminDrawService interface {
	ForceFinalize(ctx context.Context, drawID string) (domain.Draw, error)
	Expire(ctx context.Context, drawID string) (domain.Draw, error)
}

type AdminWalletService interface {
	Credit(ctx context.Context, userID uint, mode domain.WalletMode, amount int64, txType domain.TransactionType, referenceID, description string) (int64, error)
}

type AdminHandler struct {
	templates AdminTemplateService
	draws     AdminDrawService
	wallets   AdminWalletService
	uSvc      UserService
}

func NewAdminHandler(templates AdminTemplateService, draws AdminDrawService, wallets AdminWalletService, uSvc UserService) *AdminHandler {
	return &AdminHandler{
		templates: templates,
		draws:     draws,
		wallets:   wallets,
		uSvc:      uSvc,
	}
}

func (h *AdminHandler) requireAdmin(ctx *gin.Context) (domain.User, bool) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return domain.User{}, false
	}
	if !user.IsAdmin() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an admin", user.ID)))
		return domain.User{}, false
	}

	return user, true
}

// HandleCreateTemplate godoc
// @Summary      Create a draw template
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request  body       request.CreateTemplateRequest true "request body"
// @Success      201      {object}   domain.DrawTemplate
// @Failure      400      {object}   response.Err
// @Failure      403      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /admin/templates [post]
// @Security BearerAuth
func (h *AdminHandler) HandleCreateTemplate(ctx *gin.Context) {
	if _, ok := h.requireAdmin(ctx); !ok {
		return
	}

	var req request.CreateTemplateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	template, err := h.templates.CreateTemplate(ctx.Request.Context(), domain.DrawTemplate{
		Label:        req.Label,
		Slots:        req.Slots,
		EntryDollars: req.EntryDollars,
		EntryCredits: req.EntryCredits,
		FeePercent:   req.FeePercent,
		Enabled:      req.Enabled,
		AutoFill:     req.AutoFill,
	})
	if err != nil {
		err = fmt.Errorf("v1.HandleCreateTemplate -> h.templates.CreateTemplate -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusCreated, template)
}

// HandleListTemplates godoc
// @Summary      List every template, enabled or not
// @Tags         admin
// @Produce      json
// @Success      200  {array}   domain.DrawTemplate
// @Failure      403  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /admin/templates [get]
// @Security BearerAuth
func (h *AdminHandler) HandleListTemplates(ctx *gin.Context) {
	if _, ok := h.requireAdmin(ctx); !ok {
		return
	}

	templates, err := h.templates.ListTemplates(ctx.Request.Context())
	if err != nil {
		err = fmt.Errorf("v1.HandleListTemplates -> h.templates.ListTemplates -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, templates)
}

// HandleUpdateTemplateFlags godoc
// @Summary      Toggle a template's flags
// @Description  Slots, price and fee are immutable; only flags can change.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        templateID  path       int true "template ID"
// @Param        request     body       request.UpdateTemplateFlagsRequest true "request body"
// @Success      200         {object}   domain.DrawTemplate
// @Failure      400         {object}   response.Err
// @Failure      403         {object}   response.Err
// @Failure      404         {object}   response.Err
// @Failure      500         {object}   response.Err
// @Router       /admin/templates/{templateID}/flags [put]
// @Security BearerAuth
func (h *AdminHandler) HandleUpdateTemplateFlags(ctx *gin.Context) {
	if _, ok := h.requireAdmin(ctx); !ok {
		return
	}

	templateID, err := strconv.ParseUint(ctx.Param("templateID"), 10, 64)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var req request.UpdateTemplateFlagsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	template, err := h.templates.UpdateFlags(ctx.Request.Context(), uint(templateID), req.Enabled, req.RequiresDeposit, req.AutoFill)
	if err != nil {
		if errors.Is(err, service.ErrTemplateNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("template", "ID", templateID))
			return
		}

		err = fmt.Errorf("v1.HandleUpdateTemplateFlags -> h.templates.UpdateFlags -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, template)
}

// HandleEnsureOpenDraws godoc
// @Summary      Ensure an open draw exists for every enabled template and mode
// @Tags         admin
// @Produce      json
// @Success      204
// @Failure      403  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /admin/templates/ensure-draws [post]
// @Security BearerAuth
func (h *AdminHandler) HandleEnsureOpenDraws(ctx *gin.Context) {
	if _, ok := h.requireAdmin(ctx); !ok {
		return
	}

	if err := h.templates.EnsureOpenDraws(ctx.Request.Context()); err != nil {
		err = fmt.Errorf("v1.HandleEnsureOpenDraws -> h.templates.EnsureOpenDraws -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleForceFinalize godoc
// @Summary      Force-finalize a stuck draw
// @Tags         admin
// @Produce      json
// @Param        drawID   path       string true "draw ID"
// @Success      200      {object}   response.Draw
// @Failure      403      {object}   response.Err
// @Failure      404      {object}   response.Err
// @Failure      409      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /admin/draws/{drawID}/force-finalize [post]
// @Security BearerAuth
func (h *AdminHandler) HandleForceFinalize(ctx *gin.Context) {
	if _, ok := h.requireAdmin(ctx); !ok {
		return
	}

	drawID := ctx.Param("drawID")
	draw, err := h.draws.ForceFinalize(ctx.Request.Context(), drawID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDrawNotFound):
			response.RenderErr(ctx, response.ErrNotFound("draw", "ID", drawID))
		case errors.Is(err, service.ErrAlreadyFinalized), errors.Is(err, service.ErrDrawNotReady):
			response.RenderErr(ctx, response.ErrConflict(err))
		default:
			err = fmt.Errorf("v1.HandleForceFinalize -> h.draws.ForceFinalize -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, response.NewDraw(draw))
}

// HandleExpireDraw godoc
// @Summary      Expire an open draw, refunding its participants
// @Tags         admin
// @Produce      json
// @Param        drawID   path       string true "draw ID"
// @Success      200      {object}   response.Draw
// @Failure      403      {object}   response.Err
// @Failure      404      {object}   response.Err
// @Failure      409      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /admin/draws/{drawID}/expire [post]
// @Security BearerAuth
func (h *AdminHandler) HandleExpireDraw(ctx *gin.Context) {
	if _, ok := h.requireAdmin(ctx); !ok {
		return
	}

	drawID := ctx.Param("drawID")
	draw, err := h.draws.Expire(ctx.Request.Context(), drawID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDrawNotFound):
			response.RenderErr(ctx, response.ErrNotFound("draw", "ID", drawID))
		default:
			response.RenderErr(ctx, response.ErrConflict(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, response.NewDraw(draw))
}

// HandleAdminCredit godoc
// @Summary      Credit a user's wallet
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        userID   path       int true "user ID"
// @Param        request  body       request.AdminCreditRequest true "request body"
// @Success      200      {object}   domain.Wallet
// @Failure      400      {object}   response.Err
// @Failure      403      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /admin/users/{userID}/credit [post]
// @Security BearerAuth
func (h *AdminHandler) HandleAdminCredit(ctx *gin.Context) {
	admin, ok := h.requireAdmin(ctx)
	if !ok {
		return
	}

	userID, err := strconv.ParseUint(ctx.Param("userID"), 10, 64)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var req request.AdminCreditRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	mode, err := domain.ParseWalletMode(req.Mode)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Admin credit by user %d", admin.ID)
	}

	balance, err := h.wallets.Credit(ctx.Request.Context(), uint(userID), mode, req.Amount, domain.TransactionDeposit, "", description)
	if err != nil {
		err = fmt.Errorf("v1.HandleAdminCredit -> h.wallets.Credit -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, domain.Wallet{
		UserID:  uint(userID),
		Mode:    mode,
		Balance: balance,
	})
}
