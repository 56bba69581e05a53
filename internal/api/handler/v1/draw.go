package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drawroom/drawroom-api/internal/api/handler/v1/request"
	"github.com/drawroom/drawroom-api/internal/api/handler/v1/response"
	"github.com/drawroom/drawroom-api/internal/domain"
	"github.com/drawroom/drawroom-api/internal/service"
)

type DrawService interface {
	GetDraw(ctx context.Context, drawID string) (domain.Draw, error)
	ListByStatus(ctx context.Context, status domain.DrawStatus, limit int) ([]domain.Draw, error)
	Join(ctx context.Context, drawID string, user domain.User) (domain.Draw, error)
	VerifyDraw(ctx context.Context, drawID string) (bool, error)
}

type LobbyService interface {
	ListTemplates(ctx context.Context) ([]domain.DrawTemplate, error)
	EnsureOpenDraw(ctx context.Context, templateID uint, mode domain.WalletMode) (domain.Draw, error)
}

type DrawHandler struct {
	svc   DrawService
	lobby LobbyService
	uSvc  UserService
}

func NewDrawHandler(svc DrawService, lobby LobbyService, uSvc UserService) *DrawHandler {
	return &DrawHandler{
		svc:   svc,
		lobby: lobby,
		uSvc:  uSvc,
	}
}

// HandleGetDraw godoc
// @Summary      Get a draw by ID
// @Description  Seeds are redacted until the draw completes.
// @Tags         draws
// @Produce      json
// @Param        drawID   path       string true "draw ID"
// @Success      200      {object}   response.Draw
// @Failure      404      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /draws/{drawID} [get]
func (h *DrawHandler) HandleGetDraw(ctx *gin.Context) {
	drawID := ctx.Param("drawID")

	draw, err := h.svc.GetDraw(ctx.Request.Context(), drawID)
	if err != nil {
		if errors.Is(err, service.ErrDrawNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("draw", "ID", drawID))
			return
		}

		err = fmt.Errorf("v1.HandleGetDraw -> h.svc.GetDraw -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.NewDraw(draw))
}

// HandleListDraws godoc
// @Summary      List draws by status
// @Tags         draws
// @Produce      json
// @Param        status   query      string false "draw status" default(OPEN)
// @Success      200      {array}    response.Draw
// @Failure      400      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /draws [get]
func (h *DrawHandler) HandleListDraws(ctx *gin.Context) {
	status := domain.DrawStatus(ctx.DefaultQuery("status", string(domain.DrawOpen)))
	switch status {
	case domain.DrawOpen, domain.DrawFull, domain.DrawCountdown,
		domain.DrawRunning, domain.DrawCompleted, domain.DrawExpired:
	default:
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("unknown status %q", status)))
		return
	}

	draws, err := h.svc.ListByStatus(ctx.Request.Context(), status, 50)
	if err != nil {
		err = fmt.Errorf("v1.HandleListDraws -> h.svc.ListByStatus -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.NewDraws(draws))
}

// HandleGetLobby godoc
// @Summary      List templates with their open draw for a wallet mode
// @Tags         draws
// @Produce      json
// @Param        mode     query      string false "wallet mode" default(DEMO)
// @Success      200      {array}    response.Draw
// @Failure      400      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /lobby [get]
func (h *DrawHandler) HandleGetLobby(ctx *gin.Context) {
	mode, err := domain.ParseWalletMode(ctx.DefaultQuery("mode", string(domain.ModeDemo)))
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	templates, err := h.lobby.ListTemplates(ctx.Request.Context())
	if err != nil {
		err = fmt.Errorf("v1.HandleGetLobby -> h.lobby.ListTemplates -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	draws := make([]response.Draw, 0, len(templates))
	for _, template := range templates {
		if !template.Enabled {
			continue
		}
		draw, err := h.lobby.EnsureOpenDraw(ctx.Request.Context(), template.ID, mode)
		if err != nil {
			err = fmt.Errorf("v1.HandleGetLobby -> h.lobby.EnsureOpenDraw -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
			return
		}
		draws = append(draws, response.NewDraw(draw))
	}

	ctx.JSON(http.StatusOK, draws)
}

// HandleJoinDraw godoc
// @Summary      Join an open draw
// @Description  Debits the entry price and reserves a slot atomically.
// @Tags         draws
// @Accept       json
// @Produce      json
// @Param        drawID   path       string true "draw ID"
// @Param        request  body       request.JoinDrawRequest true "request body"
// @Success      200      {object}   response.Draw
// @Failure      400      {object}   response.Err
// @Failure      402      {object}   response.Err
// @Failure      404      {object}   response.Err
// @Failure      409      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /draws/{drawID}/join [post]
// @Security BearerAuth
func (h *DrawHandler) HandleJoinDraw(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.JoinDrawRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	drawID := ctx.Param("drawID")
	current, err := h.svc.GetDraw(ctx.Request.Context(), drawID)
	if err != nil {
		if errors.Is(err, service.ErrDrawNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("draw", "ID", drawID))
			return
		}
		err = fmt.Errorf("v1.HandleJoinDraw -> h.svc.GetDraw -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}
	if string(current.Mode) != req.Mode {
		response.RenderErr(ctx, response.ErrBadRequest(
			fmt.Errorf("draw is a %s room, request says %s", current.Mode, req.Mode)))
		return
	}

	draw, err := h.svc.Join(ctx.Request.Context(), drawID, user)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDrawNotFound):
			response.RenderErr(ctx, response.ErrNotFound("draw", "ID", drawID))
		case errors.Is(err, service.ErrInsufficientFunds):
			response.RenderErr(ctx, response.ErrPaymentRequired(err))
		case errors.Is(err, service.ErrDrawNotOpen),
			errors.Is(err, service.ErrDrawFull),
			errors.Is(err, service.ErrAlreadyJoined):
			response.RenderErr(ctx, response.ErrConflict(err))
		default:
			err = fmt.Errorf("v1.HandleJoinDraw -> h.svc.Join -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, response.NewDraw(draw))
}

// HandleVerifyDraw godoc
// @Summary      Verify a completed draw's commit-reveal outcome
// @Tags         draws
// @Produce      json
// @Param        drawID   path       string true "draw ID"
// @Success      200      {object}   response.VerifyResponse
// @Failure      404      {object}   response.Err
// @Failure      409      {object}   response.Err
// @Failure      500      {object}   response.Err
// @Router       /draws/{drawID}/verify [get]
func (h *DrawHandler) HandleVerifyDraw(ctx *gin.Context) {
	drawID := ctx.Param("drawID")

	valid, err := h.svc.VerifyDraw(ctx.Request.Context(), drawID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDrawNotFound):
			response.RenderErr(ctx, response.ErrNotFound("draw", "ID", drawID))
		case errors.Is(err, service.ErrDrawNotReady):
			response.RenderErr(ctx, response.ErrConflict(errors.New("draw is not completed yet")))
		default:
			err = fmt.Errorf("v1.HandleVerifyDraw -> h.svc.VerifyDraw -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, response.VerifyResponse{
		DrawID: drawID,
		Valid:  valid,
	})
}
