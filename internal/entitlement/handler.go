package entitlement

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/sutbot/sutbot/internal/api"
	"github.com/sutbot/sutbot/internal/metrics"
)

// HandleServiceError maps the entitlement sentinel errors onto HTTP codes.
// Store outages read as 503 so callers can tell refusal from failure.
func HandleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		api.HandleError(w, api.ErrStoreUnavailable)
	case errors.Is(err, ErrInvalidRequest):
		api.HandleError(w, api.NewBadRequestError(err.Error()))
	case errors.Is(err, ErrConflict):
		api.HandleError(w, api.NewConflictError(err.Error()))
	default:
		api.HandleError(w, api.ErrInternalServer)
	}
}

type Handler struct {
	usage    *UsageLimiter
	personas *PersonalityLimiter
	slots    *SlotManager
	bonus    *GroupBonusResolver
	validate *validator.Validate
}

func NewHandler(usage *UsageLimiter, personas *PersonalityLimiter, slots *SlotManager, bonus *GroupBonusResolver) *Handler {
	return &Handler{
		usage:    usage,
		personas: personas,
		slots:    slots,
		bonus:    bonus,
		validate: validator.New(),
	}
}

type checkUsageRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Action string `json:"action" validate:"required"`
}

func (h *Handler) CheckUsage(w http.ResponseWriter, r *http.Request) {
	var req checkUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	decision, err := h.usage.CheckAndConsume(r.Context(), req.UserID, Action(req.Action))
	if err != nil {
		if !errors.Is(err, ErrInvalidRequest) {
			slog.Error("checking usage", "user_id", req.UserID, "action", req.Action, "error", err)
		}
		HandleServiceError(w, err)
		return
	}

	metrics.UsageChecksTotal.WithLabelValues(req.Action, outcome(decision.Allowed)).Inc()
	api.JSON(w, http.StatusOK, decision)
}

type usageStatusResponse struct {
	UserID int64      `json:"user_id"`
	Tier   Tier       `json:"tier"`
	Usage  DailyUsage `json:"usage"`
	Caps   any        `json:"caps"`
}

func (h *Handler) UsageStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	usage, caps, tier, err := h.usage.Status(r.Context(), userID)
	if err != nil {
		slog.Error("reading usage status", "user_id", userID, "error", err)
		HandleServiceError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, usageStatusResponse{
		UserID: userID,
		Tier:   tier,
		Usage:  usage,
		Caps:   caps,
	})
}

type resetUsageRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

func (h *Handler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	var req resetUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if err := h.usage.Reset(r.Context(), req.UserID); err != nil {
		slog.Error("resetting usage", "user_id", req.UserID, "error", err)
		HandleServiceError(w, err)
		return
	}

	api.JSONMessage(w, http.StatusOK, "usage reset")
}

type usePersonaRequest struct {
	UserID  int64  `json:"user_id" validate:"required,gt=0"`
	Persona string `json:"persona" validate:"required"`
	Action  string `json:"action" validate:"required"`
}

func (h *Handler) UsePersona(w http.ResponseWriter, r *http.Request) {
	var req usePersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	decision, err := h.personas.Check(r.Context(), req.UserID, req.Persona, PersonaAction(req.Action))
	if err != nil {
		if !errors.Is(err, ErrInvalidRequest) {
			slog.Error("checking persona use", "user_id", req.UserID, "persona", req.Persona, "error", err)
		}
		HandleServiceError(w, err)
		return
	}

	metrics.PersonaChecksTotal.WithLabelValues(req.Action, outcome(decision.Allowed)).Inc()
	api.JSON(w, http.StatusOK, decision)
}

type slotsResponse struct {
	UserID int64 `json:"user_id"`
	CreateDecision
}

func (h *Handler) PersonaSlots(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	decision, err := h.slots.CanCreate(r.Context(), userID)
	if err != nil {
		slog.Error("reading persona slots", "user_id", userID, "error", err)
		HandleServiceError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, slotsResponse{UserID: userID, CreateDecision: decision})
}

type membershipEventRequest struct {
	UserID   int64 `json:"user_id" validate:"required,gt=0"`
	IsMember *bool `json:"is_member" validate:"required"`
}

// MembershipEvent applies a join/leave pushed by the bot's chat_member
// update handler.
func (h *Handler) MembershipEvent(w http.ResponseWriter, r *http.Request) {
	var req membershipEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	result, err := h.slots.ReconcileOnMembershipChange(r.Context(), req.UserID, *req.IsMember)
	if err != nil {
		slog.Error("applying membership event", "user_id", req.UserID, "error", err)
		HandleServiceError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, result)
}

type refreshMembershipRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

type refreshMembershipResponse struct {
	UserID   int64 `json:"user_id"`
	IsMember bool  `json:"is_member"`
	ReconcileResult
}

// RefreshMembership forces a live membership check, then reconciles the
// user's bonus personas against the fresh answer.
func (h *Handler) RefreshMembership(w http.ResponseWriter, r *http.Request) {
	var req refreshMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	isMember, err := h.bonus.Eligible(r.Context(), req.UserID, true)
	if err != nil {
		slog.Error("refreshing membership", "user_id", req.UserID, "error", err)
		HandleServiceError(w, err)
		return
	}

	result, err := h.slots.ReconcileOnMembershipChange(r.Context(), req.UserID, isMember)
	if err != nil {
		slog.Error("reconciling after refresh", "user_id", req.UserID, "error", err)
		HandleServiceError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, refreshMembershipResponse{
		UserID:          req.UserID,
		IsMember:        isMember,
		ReconcileResult: result,
	})
}

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func queryUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		api.HandleError(w, api.NewBadRequestError("invalid user_id"))
		return 0, false
	}
	return userID, true
}
