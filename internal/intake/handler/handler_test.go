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

	"kutumb/internal/intake"
	"kutumb/internal/intake/handler/mocks"
	"kutumb/internal/visit"
	"kutumb/pkg/domain"
	dErrors "kutumb/pkg/domain-errors"
	"kutumb/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/intake-mocks.go -package=mocks Service

func newTestRouter(t *testing.T) (chi.Router, *mocks.MockService) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	svc := mocks.NewMockService(ctrl)

	r := chi.NewRouter()
	New(svc, slog.New(slog.DiscardHandler)).Register(r)
	return r, svc
}

func sampleRequest(status intake.RequestStatus) intake.VisitRequest {
	now := time.Now().UTC()
	citizen := domain.NewCitizenID()
	return intake.VisitRequest{
		ID:                domain.NewVisitRequestID(),
		CitizenRef:        &citizen,
		PreferredDate:     now.Add(48 * time.Hour),
		PreferredTimeSlot: intake.SlotMorning,
		VisitType:         domain.VisitTypeRoutine,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestHandleCreate(t *testing.T) {
	t.Run("files a citizen-anchored request", func(t *testing.T) {
		router, svc := newTestRouter(t)
		r := sampleRequest(intake.StatusPending)
		svc.EXPECT().CreateRequest(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, p intake.CreateParams) (intake.VisitRequest, error) {
				require.NotNil(t, p.CitizenRef)
				assert.Equal(t, *r.CitizenRef, *p.CitizenRef)
				assert.Nil(t, p.RegistrationRef)
				return r, nil
			})

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visit-requests", map[string]any{
			"citizenRef":        r.CitizenRef.String(),
			"preferredDate":     r.PreferredDate.Format(time.RFC3339),
			"preferredTimeSlot": "Morning",
			"visitType":         "Routine",
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		testutil.AssertJSONContains(t, rr, "status", "Pending")
	})

	t.Run("rejects a malformed registration ref", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visit-requests", map[string]any{
			"registrationRef": "nope",
			"preferredDate":   time.Now().Add(24 * time.Hour).Format(time.RFC3339),
			"visitType":       "Routine",
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	t.Run("surfaces the exactly-one-ref validation", func(t *testing.T) {
		router, svc := newTestRouter(t)
		svc.EXPECT().CreateRequest(gomock.Any(), gomock.Any()).
			Return(intake.VisitRequest{}, dErrors.New(dErrors.CodeValidation,
				"exactly one of citizenRef and registrationRef is required"))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visit-requests", map[string]any{
			"preferredDate": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
			"visitType":     "Routine",
		})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func TestHandleUpdateStatus(t *testing.T) {
	t.Run("moves a request along the queue", func(t *testing.T) {
		router, svc := newTestRouter(t)
		r := sampleRequest(intake.StatusCancelled)
		svc.EXPECT().UpdateStatus(gomock.Any(), r.ID, intake.StatusCancelled).Return(r, nil)

		req := testutil.NewJSONRequest(t, http.MethodPatch, "/visit-requests/"+r.ID.String(),
			map[string]any{"status": "Cancelled"})
		req = testutil.WithActor(req, domain.NewActorID().String(), domain.RoleStaff)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "Cancelled")
	})

	t.Run("rejects an unknown status before calling the service", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := testutil.NewJSONRequest(t, http.MethodPatch,
			"/visit-requests/"+domain.NewVisitRequestID().String(),
			map[string]any{"status": "Done"})
		req = testutil.WithActor(req, domain.NewActorID().String(), domain.RoleStaff)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	t.Run("citizen role cannot manage the queue", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := testutil.NewJSONRequest(t, http.MethodPatch,
			"/visit-requests/"+domain.NewVisitRequestID().String(),
			map[string]any{"status": "Cancelled"})
		req = testutil.WithActor(req, domain.NewActorID().String(), domain.RoleCitizen)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	t.Run("maps guarded transitions to 409", func(t *testing.T) {
		router, svc := newTestRouter(t)
		id := domain.NewVisitRequestID()
		svc.EXPECT().UpdateStatus(gomock.Any(), id, intake.StatusCompleted).
			Return(intake.VisitRequest{}, dErrors.New(dErrors.CodePrecondition,
				"request cannot move from Pending to Completed"))

		req := testutil.NewJSONRequest(t, http.MethodPatch, "/visit-requests/"+id.String(),
			map[string]any{"status": "Completed"})
		req = testutil.WithActor(req, domain.NewActorID().String(), domain.RoleStaff)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, string(dErrors.CodePrecondition))
	})
}

func TestHandleSchedule(t *testing.T) {
	t.Run("creates a visit from the request", func(t *testing.T) {
		router, svc := newTestRouter(t)
		id := domain.NewVisitRequestID()
		officer := domain.NewOfficerID()
		scheduledAt := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
		v := visit.Visit{ID: domain.NewVisitID(), ScheduledAt: scheduledAt, Status: visit.StatusScheduled}

		svc.EXPECT().ScheduleFromRequest(gomock.Any(), id, gomock.Any()).
			DoAndReturn(func(_ any, _ domain.VisitRequestID, p intake.ScheduleVisitParams) (visit.Visit, error) {
				assert.Equal(t, officer, p.OfficerID)
				return v, nil
			})

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visit-requests/"+id.String()+"/schedule",
			map[string]any{
				"officerId":   officer.String(),
				"scheduledAt": scheduledAt.Format(time.RFC3339),
			})
		req = testutil.WithActor(req, domain.NewActorID().String(), domain.RoleStaff)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		testutil.AssertJSONContains(t, rr, "visitId", v.ID.String())
	})

	t.Run("reconciliation failures map to 500 with the distinct code", func(t *testing.T) {
		router, svc := newTestRouter(t)
		id := domain.NewVisitRequestID()
		svc.EXPECT().ScheduleFromRequest(gomock.Any(), id, gomock.Any()).
			Return(visit.Visit{}, dErrors.New(dErrors.CodeReconciliation,
				"visit was created but the request could not be marked scheduled; retry the request update").
				With("visit_id", domain.NewVisitID().String()))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/visit-requests/"+id.String()+"/schedule",
			map[string]any{
				"officerId":   domain.NewOfficerID().String(),
				"scheduledAt": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
			})
		req = testutil.WithActor(req, domain.NewActorID().String(), domain.RoleStaff)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, string(dErrors.CodeReconciliation))
	})
}

func TestHandleListAndStats(t *testing.T) {
	t.Run("list parses the status filter", func(t *testing.T) {
		router, svc := newTestRouter(t)
		svc.EXPECT().List(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, filter intake.ListFilter) ([]intake.VisitRequest, error) {
				require.NotNil(t, filter.Status)
				assert.Equal(t, intake.StatusPending, *filter.Status)
				return []intake.VisitRequest{sampleRequest(intake.StatusPending)}, nil
			})

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/visit-requests?status=Pending"))
		testutil.AssertStatusOK(t, rr)
	})

	t.Run("list rejects an unknown status", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/visit-requests?status=Open"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	t.Run("stats returns the unfiltered aggregate", func(t *testing.T) {
		router, svc := newTestRouter(t)
		svc.EXPECT().Stats(gomock.Any()).
			Return(intake.Stats{Total: 5, Pending: 2, Scheduled: 2, Cancelled: 1}, nil)

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/visit-requests/stats"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "total", float64(5))
	})
}
