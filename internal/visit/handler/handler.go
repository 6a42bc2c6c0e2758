// Package handler exposes the visit lifecycle over HTTP. Authorization is
// enforced by the services; the handlers only decode, delegate, and encode.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kutumb/internal/gate"
	"kutumb/internal/geo"
	"kutumb/internal/visit"
	"kutumb/pkg/domain"
	dErrors "kutumb/pkg/domain-errors"
	"kutumb/pkg/platform/httputil"
	"kutumb/pkg/requestcontext"
)

// Service is the slice of the visit service the handlers need.
type Service interface {
	Schedule(ctx context.Context, p visit.ScheduleParams) (visit.Visit, error)
	CheckIn(ctx context.Context, id domain.VisitID, source gate.LocationSource) (visit.GeofenceCheck, error)
	StartVisit(ctx context.Context, id domain.VisitID, source gate.LocationSource) (visit.Visit, error)
	Complete(ctx context.Context, id domain.VisitID, notes string, riskScore *int) (visit.Visit, error)
	Approve(ctx context.Context, id domain.VisitID, notes string) (visit.Visit, error)
	Reopen(ctx context.Context, id domain.VisitID, reason string) (visit.Visit, error)
	Cancel(ctx context.Context, id domain.VisitID, p visit.CancelParams, source gate.LocationSource) (visit.Visit, error)
	Get(ctx context.Context, id domain.VisitID) (visit.Visit, error)
	List(ctx context.Context, filter visit.ListFilter) ([]visit.Visit, error)
	Stats(ctx context.Context) (visit.Stats, error)
	Calendar(ctx context.Context, from, to time.Time) (map[string][]visit.Visit, error)
}

// Handler wires visit endpoints to the visit service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts visit endpoints on the router. The router is expected to
// already carry the authentication middleware.
func (h *Handler) Register(r chi.Router) {
	r.Route("/visits", func(r chi.Router) {
		r.Post("/", h.handleSchedule)
		r.Get("/", h.handleList)
		r.Get("/stats", h.handleStats)
		r.Get("/calendar", h.handleCalendar)
		r.Route("/{visitID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/checkin", h.handleCheckIn)
			r.Post("/start", h.handleStart)
			r.Post("/complete", h.handleComplete)
			r.Post("/approve", h.handleApprove)
			r.Post("/reopen", h.handleReopen)
			r.Post("/cancel", h.handleCancel)
		})
	})
}

// staticSource replays the position the officer's device posted. The gate
// still applies its own timeout and threshold.
type staticSource struct {
	pos geo.Position
}

func (s staticSource) CurrentPosition(context.Context) (geo.Position, error) {
	return s.pos, nil
}

func sourceFrom(pos *geo.Position) gate.LocationSource {
	if pos == nil {
		return nil
	}
	return staticSource{pos: *pos}
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req scheduleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	citizenID, err := domain.ParseCitizenID(req.CitizenID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	officerID, err := domain.ParseOfficerID(req.OfficerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.service.Schedule(ctx, visit.ScheduleParams{
		CitizenID:   citizenID,
		OfficerID:   officerID,
		ScheduledAt: req.ScheduledAt,
		VisitType:   domain.VisitType(req.VisitType),
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeError(ctx, w, "schedule visit", err)
		return
	}

	h.logger.InfoContext(ctx, "visit scheduled",
		"request_id", requestcontext.RequestID(ctx),
		"visit_id", v.ID.String(),
		"officer_id", officerID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, fromVisit(v))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := listFilterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	visits, err := h.service.List(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, "list visits", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"visits": fromVisits(visits)})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.writeError(ctx, w, "visit stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, err := parseDay(r.URL.Query().Get("from"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseDay(r.URL.Query().Get("to"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	days, err := h.service.Calendar(ctx, from, to)
	if err != nil {
		h.writeError(ctx, w, "visit calendar", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"days": fromCalendar(days)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := visitIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	v, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeError(ctx, w, "get visit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVisit(v))
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := visitIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req positionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	check, err := h.service.CheckIn(ctx, id, sourceFrom(req.Position))
	if err != nil {
		h.writeError(ctx, w, "geofence check", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, check)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := visitIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req positionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.service.StartVisit(ctx, id, sourceFrom(req.Position))
	if err != nil {
		h.writeError(ctx, w, "start visit", err)
		return
	}

	h.logger.InfoContext(ctx, "visit started",
		"request_id", requestcontext.RequestID(ctx),
		"visit_id", v.ID.String(),
		"location_unverified", v.LocationUnverified,
	)
	httputil.WriteJSON(w, http.StatusOK, fromVisit(v))
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := visitIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req completeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.service.Complete(ctx, id, req.Notes, req.RiskScore)
	if err != nil {
		h.writeError(ctx, w, "complete visit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVisit(v))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := visitIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req approveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.service.Approve(ctx, id, req.Notes)
	if err != nil {
		h.writeError(ctx, w, "approve visit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVisit(v))
}

func (h *Handler) handleReopen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := visitIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req reopenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.service.Reopen(ctx, id, req.Reason)
	if err != nil {
		h.writeError(ctx, w, "reopen visit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVisit(v))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := visitIDFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req cancelRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.service.Cancel(ctx, id, visit.CancelParams{
		Reason:         visit.CancellationReason(req.Reason),
		Notes:          req.Notes,
		RescheduleDate: req.RescheduleDate,
	}, sourceFrom(req.Position))
	if err != nil {
		h.writeError(ctx, w, "cancel visit", err)
		return
	}

	h.logger.InfoContext(ctx, "visit cancelled",
		"request_id", requestcontext.RequestID(ctx),
		"visit_id", v.ID.String(),
		"reason", req.Reason,
	)
	httputil.WriteJSON(w, http.StatusOK, fromVisit(v))
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

func visitIDFromPath(r *http.Request) (domain.VisitID, error) {
	return domain.ParseVisitID(chi.URLParam(r, "visitID"))
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "from and to dates are required")
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func listFilterFromQuery(r *http.Request) (visit.ListFilter, error) {
	var filter visit.ListFilter
	q := r.URL.Query()

	if s := q.Get("status"); s != "" {
		status := visit.Status(s)
		filter.Status = &status
	}
	if s := q.Get("officerId"); s != "" {
		id, err := domain.ParseOfficerID(s)
		if err != nil {
			return visit.ListFilter{}, err
		}
		filter.OfficerID = &id
	}
	if s := q.Get("citizenId"); s != "" {
		id, err := domain.ParseCitizenID(s)
		if err != nil {
			return visit.ListFilter{}, err
		}
		filter.CitizenID = &id
	}
	if s := q.Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return visit.ListFilter{}, dErrors.Newf(dErrors.CodeValidation, "invalid from time %q", s)
		}
		filter.From = &t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return visit.ListFilter{}, dErrors.Newf(dErrors.CodeValidation, "invalid to time %q", s)
		}
		filter.To = &t
	}
	return filter, nil
}
