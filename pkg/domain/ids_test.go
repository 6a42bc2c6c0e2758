package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kutumb/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseVisitID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseVisitID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseVisitID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseVisitID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, VisitID(valid), id)
	})
}

func TestParseID_RejectsHostileInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"SQL injection attempt", "'; DROP TABLE visits;--"},
		{"path traversal", "../../../etc/passwd"},
		{"null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000"},
		{"oversized input", strings.Repeat("a", 1000)},
		{"whitespace only", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOfficerID(tt.input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

// TestAllIDTypes_ConsistentBehavior ensures every ID type shares the same
// underlying validation.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	valid := uuid.New().String()
	invalid := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errCitizen := ParseCitizenID(valid)
		_, errRegistration := ParseRegistrationID(valid)
		_, errOfficer := ParseOfficerID(valid)
		_, errVisit := ParseVisitID(valid)
		_, errRequest := ParseVisitRequestID(valid)
		_, errActor := ParseActorID(valid)
		for _, err := range []error{errCitizen, errRegistration, errOfficer, errVisit, errRequest, errActor} {
			require.NoError(t, err)
		}
	})

	t.Run("all reject invalid input", func(t *testing.T) {
		for _, input := range invalid {
			_, errCitizen := ParseCitizenID(input)
			_, errVisit := ParseVisitID(input)
			_, errActor := ParseActorID(input)
			for _, err := range []error{errCitizen, errVisit, errActor} {
				require.Error(t, err, "input %q", input)
			}
		}
	})
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"citizen", "officer", "supervisor", "staff", "admin"} {
		r, err := ParseRole(valid)
		require.NoError(t, err)
		assert.True(t, r.IsValid())
	}

	_, err := ParseRole("superuser")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	assert.True(t, RoleSupervisor.CanSupervise())
	assert.False(t, RoleOfficer.CanSupervise())
	assert.True(t, RoleStaff.CanSchedule())
	assert.False(t, RoleCitizen.CanSchedule())
	assert.True(t, RoleAdmin.CanCancelAdministratively())
	assert.False(t, RoleOfficer.CanCancelAdministratively())
}

func TestParseVisitType(t *testing.T) {
	for _, valid := range []string{"Routine", "Follow-up", "Emergency"} {
		v, err := ParseVisitType(valid)
		require.NoError(t, err)
		assert.True(t, v.IsValid())
	}
	_, err := ParseVisitType("Casual")
	require.Error(t, err)
}

func TestParseTimeSlot_EmptyDefaultsToAny(t *testing.T) {
	ts, err := ParseTimeSlot("")
	require.NoError(t, err)
	assert.Equal(t, TimeSlotAny, ts)

	_, err = ParseTimeSlot("Midnight")
	require.Error(t, err)
}
