package handler

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"kutumb/internal/visit"
	"kutumb/internal/visit/handler/mocks"
	"kutumb/pkg/domain"
	dErrors "kutumb/pkg/domain-errors"
	"kutumb/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/visit-mocks.go -package=mocks Service

func newTestRouter(t *testing.T) (chi.Router, *mocks.MockService) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	svc := mocks.NewMockService(ctrl)

	r := chi.NewRouter()
	New(svc, slog.New(slog.DiscardHandler)).Register(r)
	return r, svc
}

func sampleVisit(status visit.Status) visit.Visit {
	now := time.Now().UTC()
	return visit.Visit{
		ID:          domain.NewVisitID(),
		CitizenID:   domain.NewCitizenID(),
		OfficerID:   domain.NewOfficerID(),
		ScheduledAt: now.Add(time.Hour),
		VisitType:   domain.VisitTypeRoutine,
		Status:      status,
		Timeline: []visit.TimelineEntry{{
			Type:        visit.EntryScheduled,
			Timestamp:   now,
			PerformedBy: domain.NewActorID(),
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestHandleSchedule(t *testing.T) {
	t.Run("creates a visit", func(t *testing.T) {
		router, svc := newTestRouter(t)
		v := sampleVisit(visit.StatusScheduled)
		svc.EXPECT().Schedule(gomock.Any(), gomock.Any()).Return(v, nil)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visits", map[string]any{
			"citizenId":   v.CitizenID.String(),
			"officerId":   v.OfficerID.String(),
			"scheduledAt": v.ScheduledAt.Format(time.RFC3339),
			"visitType":   "Routine",
		})
		req = testutil.WithActor(req, domain.NewActorID().String(), domain.RoleStaff)

		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.Equal(t, v.ID.String(), (*resp)["id"])
		assert.Equal(t, "scheduled", (*resp)["status"])
	})

	t.Run("rejects a malformed citizen id", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visits", map[string]any{
			"citizenId": "not-a-uuid",
			"officerId": domain.NewOfficerID().String(),
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	t.Run("maps forbidden errors to 403", func(t *testing.T) {
		router, svc := newTestRouter(t)
		svc.EXPECT().Schedule(gomock.Any(), gomock.Any()).
			Return(visit.Visit{}, dErrors.New(dErrors.CodeForbidden, "role cannot schedule visits"))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visits", map[string]any{
			"citizenId":   domain.NewCitizenID().String(),
			"officerId":   domain.NewOfficerID().String(),
			"scheduledAt": time.Now().Add(time.Hour).Format(time.RFC3339),
			"visitType":   "Routine",
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})
}

func TestHandleGet(t *testing.T) {
	t.Run("returns the visit with its timeline", func(t *testing.T) {
		router, svc := newTestRouter(t)
		v := sampleVisit(visit.StatusScheduled)
		svc.EXPECT().Get(gomock.Any(), v.ID).Return(v, nil)

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/visits/"+v.ID.String()))
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[map[string]any](t, rr)
		timeline, ok := (*resp)["timeline"].([]any)
		require.True(t, ok)
		assert.Len(t, timeline, 1)
	})

	t.Run("unknown visit is 404", func(t *testing.T) {
		router, svc := newTestRouter(t)
		id := domain.NewVisitID()
		svc.EXPECT().Get(gomock.Any(), id).
			Return(visit.Visit{}, dErrors.New(dErrors.CodeNotFound, "visit not found"))

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/visits/"+id.String()))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	t.Run("malformed id is 400", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/visits/garbage"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestHandleCheckIn(t *testing.T) {
	t.Run("returns the evaluation without mutating", func(t *testing.T) {
		router, svc := newTestRouter(t)
		id := domain.NewVisitID()
		svc.EXPECT().CheckIn(gomock.Any(), id, gomock.Any()).
			Return(visit.GeofenceCheck{CanStart: true, CanCancel: true}, nil)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visits/"+id.String()+"/checkin", map[string]any{
			"position": map[string]float64{"latitude": 28.6139, "longitude": 77.2090},
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "can_start", true)
	})
}

func TestHandleStart(t *testing.T) {
	t.Run("starts an in-range visit", func(t *testing.T) {
		router, svc := newTestRouter(t)
		v := sampleVisit(visit.StatusInProgress)
		svc.EXPECT().StartVisit(gomock.Any(), v.ID, gomock.Any()).Return(v, nil)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visits/"+v.ID.String()+"/start", map[string]any{
			"position": map[string]float64{"latitude": 28.6139, "longitude": 77.2090},
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "in_progress")
	})

	t.Run("out of range maps to 409", func(t *testing.T) {
		router, svc := newTestRouter(t)
		id := domain.NewVisitID()
		svc.EXPECT().StartVisit(gomock.Any(), id, gomock.Any()).
			Return(visit.Visit{}, dErrors.New(dErrors.CodePrecondition, "officer is not at the citizen's location"))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visits/"+id.String()+"/start", map[string]any{
			"position": map[string]float64{"latitude": 28.7, "longitude": 77.3},
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, string(dErrors.CodePrecondition))
	})

	t.Run("location failure maps to 503", func(t *testing.T) {
		router, svc := newTestRouter(t)
		id := domain.NewVisitID()
		svc.EXPECT().StartVisit(gomock.Any(), id, gomock.Any()).
			Return(visit.Visit{}, dErrors.New(dErrors.CodeLocation, "location sample failed"))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visits/"+id.String()+"/start", map[string]any{})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusServiceUnavailable, string(dErrors.CodeLocation))
	})
}

func TestHandleComplete(t *testing.T) {
	t.Run("passes the risk score through", func(t *testing.T) {
		router, svc := newTestRouter(t)
		v := sampleVisit(visit.StatusCompleted)
		score := 35
		svc.EXPECT().Complete(gomock.Any(), v.ID, "all members present", &score).Return(v, nil)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visits/"+v.ID.String()+"/complete", map[string]any{
			"notes":     "all members present",
			"riskScore": score,
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
	})
}

func TestHandleCancel(t *testing.T) {
	t.Run("cancels with a taxonomy reason", func(t *testing.T) {
		router, svc := newTestRouter(t)
		v := sampleVisit(visit.StatusCancelled)
		svc.EXPECT().Cancel(gomock.Any(), v.ID, gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, _ domain.VisitID, p visit.CancelParams, _ any) (visit.Visit, error) {
				assert.Equal(t, visit.ReasonShifted, p.Reason)
				assert.Equal(t, "moved away", p.Notes)
				return v, nil
			})

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visits/"+v.ID.String()+"/cancel", map[string]any{
			"reason": "Shifted",
			"notes":  "moved away",
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "cancelled")
	})

	t.Run("validation failures map to 400", func(t *testing.T) {
		router, svc := newTestRouter(t)
		id := domain.NewVisitID()
		svc.EXPECT().Cancel(gomock.Any(), id, gomock.Any(), gomock.Any()).
			Return(visit.Visit{}, dErrors.New(dErrors.CodeValidation, "cancellation notes are required"))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visits/"+id.String()+"/cancel", map[string]any{
			"reason": "Shifted",
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func TestHandleList(t *testing.T) {
	t.Run("parses filters from the query", func(t *testing.T) {
		router, svc := newTestRouter(t)
		officer := domain.NewOfficerID()
		svc.EXPECT().List(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, filter visit.ListFilter) ([]visit.Visit, error) {
				require.NotNil(t, filter.Status)
				assert.Equal(t, visit.StatusScheduled, *filter.Status)
				require.NotNil(t, filter.OfficerID)
				assert.Equal(t, officer, *filter.OfficerID)
				return []visit.Visit{sampleVisit(visit.StatusScheduled)}, nil
			})

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet,
			"/visits?status=scheduled&officerId="+officer.String()))
		testutil.AssertStatusOK(t, rr)
	})

	t.Run("rejects a malformed from time", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/visits?from=yesterday"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func TestHandleStats(t *testing.T) {
	router, svc := newTestRouter(t)
	svc.EXPECT().Stats(gomock.Any()).Return(visit.Stats{Total: 4, Scheduled: 2, Overdue: 1}, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/visits/stats"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "total", float64(4))
	testutil.AssertJSONContains(t, rr, "overdue", float64(1))
}

func TestHandleCalendar(t *testing.T) {
	t.Run("requires both dates", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/visits/calendar?from=2026-03-01"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	t.Run("groups visits by day", func(t *testing.T) {
		router, svc := newTestRouter(t)
		v := sampleVisit(visit.StatusScheduled)
		svc.EXPECT().Calendar(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(map[string][]visit.Visit{"2026-03-02": {v}}, nil)

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet,
			"/visits/calendar?from=2026-03-01&to=2026-03-07"))
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[map[string]map[string][]map[string]any](t, rr)
		require.Len(t, (*resp)["days"]["2026-03-02"], 1)
	})
}
