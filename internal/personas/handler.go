package personas

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	persona, decision, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrNameTaken) {
			api.HandleError(w, api.NewConflictError("persona name already taken"))
			return
		}
		if !errors.Is(err, entitlement.ErrInvalidRequest) && !errors.Is(err, entitlement.ErrConflict) {
			slog.Error("creating persona", "user_id", req.UserID, "error", err)
		}
		entitlement.HandleServiceError(w, err)
		return
	}
	if persona == nil {
		// Slot denial: report the decision so the bot can render the right
		// upgrade prompt.
		api.JSON(w, http.StatusForbidden, decision)
		return
	}

	api.JSON(w, http.StatusCreated, persona)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		api.HandleError(w, api.NewBadRequestError("invalid user_id"))
		return
	}

	list, err := h.svc.List(r.Context(), userID)
	if err != nil {
		slog.Error("listing personas", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, list)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	personaID, err := uuid.Parse(chi.URLParam(r, "personaID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid persona ID"))
		return
	}

	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		api.HandleError(w, api.NewBadRequestError("invalid user_id"))
		return
	}

	if err := h.svc.Delete(r.Context(), userID, personaID); err != nil {
		if !errors.Is(err, entitlement.ErrInvalidRequest) {
			slog.Error("deleting persona", "user_id", userID, "persona_id", personaID, "error", err)
		}
		entitlement.HandleServiceError(w, err)
		return
	}

	api.JSONMessage(w, http.StatusOK, "persona deleted")
}
