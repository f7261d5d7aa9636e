package dashboard

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/slipdesk/slipdesk/internal/platform/httpx"
	"github.com/slipdesk/slipdesk/internal/shared"
)

// Handler serves the dashboard report endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers dashboard routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(shared.RequireRole(shared.RoleAdmin, shared.RoleSales))
		r.Get("/", h.report)
	})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	year, _ := strconv.Atoi(query.Get("year"))
	month, _ := strconv.Atoi(query.Get("month"))

	report, err := h.service.GetReport(r.Context(), Filter{
		Year:      year,
		Month:     month,
		StartDate: query.Get("startDate"),
		EndDate:   query.Get("endDate"),
	})
	if err != nil {
		h.logger.Error("dashboard report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
