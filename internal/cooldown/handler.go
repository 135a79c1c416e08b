package cooldown

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sutbot/sutbot/internal/api"
)

type Handler struct {
	limiter  *Limiter
	validate *validator.Validate
}

func NewHandler(limiter *Limiter) *Handler {
	return &Handler{
		limiter:  limiter,
		validate: validator.New(),
	}
}

type checkRequest struct {
	ChatID int64  `json:"chat_id" validate:"required"`
	Action string `json:"action" validate:"required"`
}

type checkResponse struct {
	Allowed          bool    `json:"allowed"`
	RemainingSeconds float64 `json:"remaining_seconds,omitempty"`
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	decision, err := h.limiter.CheckAndArm(r.Context(), req.ChatID, req.Action)
	if err != nil {
		slog.Error("checking cooldown", "chat_id", req.ChatID, "action", req.Action, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, checkResponse{
		Allowed:          decision.Allowed,
		RemainingSeconds: decision.Remaining.Seconds(),
	})
}
