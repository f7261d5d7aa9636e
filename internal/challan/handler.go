package challan

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slipdesk/slipdesk/internal/platform/httpx"
	"github.com/slipdesk/slipdesk/internal/shared"
)

// Handler manages challan endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the authenticated challan routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(shared.RequireRole(shared.RoleAdmin, shared.RoleSales, shared.RoleOperator))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})

	r.Group(func(r chi.Router) {
		r.Use(shared.RequireRole(shared.RoleAdmin, shared.RoleSales))
		r.Post("/", h.create)
		r.Get("/clients", h.searchClients)
	})

	r.Group(func(r chi.Router) {
		r.Use(shared.RequireRole(shared.RoleAdmin, shared.RoleOperator))
		r.Get("/comments", h.listComments)
		r.Post("/{id}/updates", h.update)
	})

	r.Group(func(r chi.Router) {
		r.Use(shared.RequireRole(shared.RoleAdmin))
		r.Get("/unverified", h.listUnverified)
		r.Post("/{id}/verify", h.verify)
		r.Post("/{id}/invoice", h.invoice)
		r.Post("/{id}/cancel", h.cancel)
	})
}

// MountPublicRoutes registers the unauthenticated slip view reached from the
// printed slip link.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/slips/{id}", h.get)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ident := shared.IdentityFromContext(r.Context())
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	ch, err := h.service.Create(r.Context(), *ident, in)
	if err != nil {
		h.logger.Error("create challan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ch)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid challan id")
		return
	}
	ch, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ch)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	items, pagination, err := h.service.List(r.Context(), ListQuery{
		Search: r.URL.Query().Get("search"),
		Status: statusFilter(r.URL.Query().Get("status")),
		Page:   page,
	})
	if err != nil {
		h.logger.Error("list challans", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"challans":   items,
		"pagination": pagination,
	})
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	options, err := h.service.ListComments(r.Context())
	if err != nil {
		h.logger.Error("list operator comments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, options)
}

func (h *Handler) listUnverified(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListUnverified(r.Context(), UnverifiedQuery{
		Search: r.URL.Query().Get("search"),
		Status: statusFilter(r.URL.Query().Get("status")),
	})
	if err != nil {
		h.logger.Error("list unverified challans", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) searchClients(w http.ResponseWriter, r *http.Request) {
	matches, err := h.service.SearchClients(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("search clients", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, matches)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, func(ident shared.Identity, id uuid.UUID) (*Challan, error) {
		var in UpdateInput
		if err := httpx.DecodeJSON(r, &in); err != nil {
			return nil, httpx.ErrValidation
		}
		return h.service.Update(r.Context(), ident, id, in)
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, func(ident shared.Identity, id uuid.UUID) (*Challan, error) {
		var in VerifyRequest
		if err := httpx.DecodeJSON(r, &in); err != nil {
			return nil, httpx.ErrValidation
		}
		return h.service.VerifyAmount(r.Context(), ident, id, in)
	})
}

func (h *Handler) invoice(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, func(ident shared.Identity, id uuid.UUID) (*Challan, error) {
		var in InvoiceRequest
		if err := httpx.DecodeJSON(r, &in); err != nil {
			return nil, httpx.ErrValidation
		}
		return h.service.MakeInvoice(r.Context(), ident, id, in)
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, func(ident shared.Identity, id uuid.UUID) (*Challan, error) {
		var in struct {
			Note string `json:"note"`
		}
		if err := httpx.DecodeJSON(r, &in); err != nil {
			return nil, httpx.ErrValidation
		}
		return h.service.Cancel(r.Context(), ident, id, in.Note)
	})
}

func (h *Handler) mutation(w http.ResponseWriter, r *http.Request, fn func(shared.Identity, uuid.UUID) (*Challan, error)) {
	ident := shared.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid challan id")
		return
	}
	ch, err := fn(*ident, id)
	if err != nil {
		h.logger.Error("challan mutation", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ch)
}

// statusFilter treats the UI's "All" pseudo status as no filter.
func statusFilter(raw string) Status {
	if raw == "" || raw == "All" {
		return ""
	}
	return Status(raw)
}
