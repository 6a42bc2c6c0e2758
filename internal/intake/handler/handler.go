// Package handler exposes the visit request queue over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kutumb/internal/intake"
	"kutumb/internal/platform/middleware"
	"kutumb/internal/visit"
	"kutumb/pkg/domain"
	dErrors "kutumb/pkg/domain-errors"
	"kutumb/pkg/platform/httputil"
	"kutumb/pkg/requestcontext"
)

// Service is the slice of the intake service the handlers need.
type Service interface {
	CreateRequest(ctx context.Context, p intake.CreateParams) (intake.VisitRequest, error)
	UpdateStatus(ctx context.Context, id domain.VisitRequestID, status intake.RequestStatus) (intake.VisitRequest, error)
	ScheduleFromRequest(ctx context.Context, id domain.VisitRequestID, p intake.ScheduleVisitParams) (visit.Visit, error)
	Get(ctx context.Context, id domain.VisitRequestID) (intake.VisitRequest, error)
	List(ctx context.Context, filter intake.ListFilter) ([]intake.VisitRequest, error)
	Stats(ctx context.Context) (intake.Stats, error)
}

// Handler wires visit request endpoints to the intake service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts visit request endpoints on the router. The router is
// expected to already carry the authentication middleware. Queue management
// is additionally gated to scheduling roles at the transport; citizens may
// only file and read requests.
func (h *Handler) Register(r chi.Router) {
	manage := middleware.RequireRole(domain.RoleStaff, domain.RoleOfficer, domain.RoleAdmin)
	r.Route("/visit-requests", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/stats", h.handleStats)
		r.Route("/{requestID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.With(manage).Patch("/", h.handleUpdateStatus)
			r.With(manage).Post("/schedule", h.handleSchedule)
		})
	})
}

// createRequest is the body of POST /visit-requests. Exactly one of
// citizenRef and registrationRef must be set.
type createRequest struct {
	CitizenRef        string    `json:"citizenRef"`
	RegistrationRef   string    `json:"registrationRef"`
	PreferredDate     time.Time `json:"preferredDate"`
	PreferredTimeSlot string    `json:"preferredTimeSlot"`
	VisitType         string    `json:"visitType"`
	Notes             string    `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type scheduleRequest struct {
	OfficerID   string    `json:"officerId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	VisitType   string    `json:"visitType"`
	Notes       string    `json:"notes"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	params := intake.CreateParams{
		PreferredDate:     req.PreferredDate,
		PreferredTimeSlot: req.PreferredTimeSlot,
		VisitType:         domain.VisitType(req.VisitType),
		Notes:             req.Notes,
	}
	if req.CitizenRef != "" {
		id, err := domain.ParseCitizenID(req.CitizenRef)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		params.CitizenRef = &id
	}
	if req.RegistrationRef != "" {
		id, err := domain.ParseRegistrationID(req.RegistrationRef)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		params.RegistrationRef = &id
	}

	created, err := h.service.CreateRequest(ctx, params)
	if err != nil {
		h.writeError(ctx, w, "create visit request", err)
		return
	}

	h.logger.InfoContext(ctx, "visit request created",
		"request_id", requestcontext.RequestID(ctx),
		"visit_request_id", created.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter intake.ListFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := intake.ParseRequestStatus(s)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = &status
	}
	if s := r.URL.Query().Get("citizenRef"); s != "" {
		id, err := domain.ParseCitizenID(s)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.CitizenRef = &id
	}

	requests, err := h.service.List(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, "list visit requests", err)
		return
	}
	if requests == nil {
		requests = []intake.VisitRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.writeError(ctx, w, "visit request stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := requestIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeError(ctx, w, "get visit request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := requestIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req updateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := intake.ParseRequestStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := h.service.UpdateStatus(ctx, id, status)
	if err != nil {
		h.writeError(ctx, w, "update visit request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := requestIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req scheduleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	officerID, err := domain.ParseOfficerID(req.OfficerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.service.ScheduleFromRequest(ctx, id, intake.ScheduleVisitParams{
		OfficerID:   officerID,
		ScheduledAt: req.ScheduledAt,
		VisitType:   domain.VisitType(req.VisitType),
		Notes:       req.Notes,
	})
	if err != nil {
		// A reconciliation failure still created the visit; surface both the
		// error and enough logging for an operator to retry the update.
		h.writeError(ctx, w, "schedule from visit request", err)
		return
	}

	h.logger.InfoContext(ctx, "visit scheduled from request",
		"request_id", requestcontext.RequestID(ctx),
		"visit_request_id", id.String(),
		"visit_id", v.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"visitId":     v.ID,
		"requestId":   id,
		"scheduledAt": v.ScheduledAt,
		"status":      v.Status,
	})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.CodeOf(err) == dErrors.CodeReconciliation {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, op+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func requestIDFromPath(r *http.Request) (domain.VisitRequestID, error) {
	return domain.ParseVisitRequestID(chi.URLParam(r, "requestID"))
}
