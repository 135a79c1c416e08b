package subscription

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sutbot/sutbot/internal/api"
	"github.com/sutbot/sutbot/internal/entitlement"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	record, err := h.svc.Grant(r.Context(), &req)
	if err != nil {
		if !errors.Is(err, entitlement.ErrInvalidRequest) {
			slog.Error("granting subscription", "user_id", req.UserID, "error", err)
		}
		entitlement.HandleServiceError(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, record)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		api.HandleError(w, api.NewBadRequestError("invalid user ID"))
		return
	}

	status, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		slog.Error("reading subscription status", "user_id", userID, "error", err)
		entitlement.HandleServiceError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, status)
}
