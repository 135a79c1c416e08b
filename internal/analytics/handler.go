package analytics

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sutbot/sutbot/internal/api"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := DefaultListParams()

	if uid := r.URL.Query().Get("user_id"); uid != "" {
		id, err := strconv.ParseInt(uid, 10, 64)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("invalid user_id"))
			return
		}
		params.UserID = id
	}
	if et := r.URL.Query().Get("event_type"); et != "" {
		params.EventType = et
	}
	if p := r.URL.Query().Get("page"); p != "" {
		if page, err := strconv.Atoi(p); err == nil && page > 0 {
			params.Page = page
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if pageSize, err := strconv.Atoi(ps); err == nil && pageSize > 0 && pageSize <= 100 {
			params.PageSize = pageSize
		}
	}

	eventsList, totalCount, err := h.repo.List(r.Context(), params)
	if err != nil {
		slog.Error("listing analytics events", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, eventsList, totalCount, params.Page, params.PageSize)
}
