package handler

import (
	"time"

	"kutumb/internal/geo"
	"kutumb/internal/visit"
	"kutumb/pkg/domain"
)

// scheduleRequest is the body of POST /visits.
type scheduleRequest struct {
	CitizenID   string    `json:"citizenId"`
	OfficerID   string    `json:"officerId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	VisitType   string    `json:"visitType"`
	Notes       string    `json:"notes"`
}

// positionRequest carries the officer's device position sampled client-side.
type positionRequest struct {
	Position *geo.Position `json:"position"`
}

type completeRequest struct {
	Notes     string `json:"notes"`
	RiskScore *int   `json:"riskScore"`
}

type approveRequest struct {
	Notes string `json:"notes"`
}

type reopenRequest struct {
	Reason string `json:"reason"`
}

type cancelRequest struct {
	Reason         string        `json:"reason"`
	Notes          string        `json:"notes"`
	RescheduleDate *time.Time    `json:"rescheduleDate"`
	Position       *geo.Position `json:"position"`
}

// visitResponse is the single visit shape returned by every endpoint.
type visitResponse struct {
	ID                 domain.VisitID             `json:"id"`
	CitizenID          domain.CitizenID           `json:"citizenId"`
	OfficerID          domain.OfficerID           `json:"officerId"`
	RequestRef         *domain.VisitRequestID     `json:"requestRef,omitempty"`
	ScheduledAt        time.Time                  `json:"scheduledAt"`
	VisitType          domain.VisitType           `json:"visitType"`
	Status             visit.Status               `json:"status"`
	Notes              string                     `json:"notes,omitempty"`
	CheckinAt          *time.Time                 `json:"checkinAt,omitempty"`
	CompletedAt        *time.Time                 `json:"completedAt,omitempty"`
	ApprovedAt         *time.Time                 `json:"approvedAt,omitempty"`
	ApprovalNotes      string                     `json:"approvalNotes,omitempty"`
	Cancellation       *visit.CancellationRecord  `json:"cancellation,omitempty"`
	RiskScore          *int                       `json:"riskScore,omitempty"`
	LocationUnverified bool                       `json:"locationUnverified"`
	Timeline           []visit.TimelineEntry      `json:"timeline"`
	CreatedAt          time.Time                  `json:"createdAt"`
	UpdatedAt          time.Time                  `json:"updatedAt"`
}

func fromVisit(v visit.Visit) visitResponse {
	timeline := v.Timeline
	if timeline == nil {
		timeline = []visit.TimelineEntry{}
	}
	return visitResponse{
		ID:                 v.ID,
		CitizenID:          v.CitizenID,
		OfficerID:          v.OfficerID,
		RequestRef:         v.RequestRef,
		ScheduledAt:        v.ScheduledAt,
		VisitType:          v.VisitType,
		Status:             v.Status,
		Notes:              v.Notes,
		CheckinAt:          v.CheckinAt,
		CompletedAt:        v.CompletedAt,
		ApprovedAt:         v.ApprovedAt,
		ApprovalNotes:      v.ApprovalNotes,
		Cancellation:       v.Cancellation,
		RiskScore:          v.RiskScore,
		LocationUnverified: v.LocationUnverified,
		Timeline:           timeline,
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
	}
}

func fromVisits(vs []visit.Visit) []visitResponse {
	out := make([]visitResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, fromVisit(v))
	}
	return out
}

func fromCalendar(days map[string][]visit.Visit) map[string][]visitResponse {
	out := make(map[string][]visitResponse, len(days))
	for day, vs := range days {
		out[day] = fromVisits(vs)
	}
	return out
}
