package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "campusreg/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseEventID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseTeamID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseRegistrationID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, RegistrationID(validUUID), id)
	})
}

func TestParseID_HostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE registrations;--", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUserID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGuestUserID(t *testing.T) {
	t.Run("same email maps to same id regardless of case and padding", func(t *testing.T) {
		a := GuestUserID("Ada@Example.edu")
		b := GuestUserID("  ada@example.edu ")
		assert.Equal(t, a, b)
		assert.False(t, a.IsNil())
	})

	t.Run("different emails map to different ids", func(t *testing.T) {
		assert.NotEqual(t, GuestUserID("ada@example.edu"), GuestUserID("grace@example.edu"))
	})
}

func TestTypedIDs_JSON(t *testing.T) {
	id := EventID(uuid.New())
	raw, err := json.Marshal(map[string]EventID{"event_id": id})
	require.NoError(t, err)
	assert.Contains(t, string(raw), id.String())

	var decoded struct {
		EventID EventID `json:"event_id"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, id, decoded.EventID)
}

func TestPaymentID_IsNil(t *testing.T) {
	assert.True(t, PaymentID("").IsNil())
	assert.True(t, PaymentID("  ").IsNil())
	assert.False(t, PaymentID("pi_123").IsNil())
}
