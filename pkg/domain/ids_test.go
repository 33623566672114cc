package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "custodia/pkg/domain-errors"
)

// TestParsePrincipal_Invariants validates the parsing invariant:
// principals must be valid, non-empty, non-nil UUIDs.
func TestParsePrincipal_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePrincipal("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParsePrincipal("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParsePrincipal(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID and round-trips", func(t *testing.T) {
		want := uuid.New()
		principal, err := ParsePrincipal(want.String())
		require.NoError(t, err)
		assert.Equal(t, want.String(), principal.String())
		assert.False(t, principal.IsNil())
	})

	t.Run("accepts uppercase UUID", func(t *testing.T) {
		want := uuid.New()
		principal, err := ParsePrincipal(strings.ToUpper(want.String()))
		require.NoError(t, err)
		assert.Equal(t, want.String(), principal.String())
	})
}

func TestPrincipal_NilHandling(t *testing.T) {
	assert.True(t, NilPrincipal.IsNil())
	assert.False(t, NewPrincipal().IsNil())
}

func TestPrincipal_JSON(t *testing.T) {
	t.Run("marshals as UUID string", func(t *testing.T) {
		p := NewPrincipal()
		raw, err := json.Marshal(p)
		require.NoError(t, err)
		assert.Equal(t, `"`+p.String()+`"`, string(raw))
	})

	t.Run("unmarshal accepts the nil UUID", func(t *testing.T) {
		// Payload validation, not parsing, decides whether a null principal is
		// acceptable for a given field.
		var p Principal
		require.NoError(t, json.Unmarshal([]byte(`"`+uuid.Nil.String()+`"`), &p))
		assert.True(t, p.IsNil())
	})

	t.Run("unmarshal rejects malformed input", func(t *testing.T) {
		var p Principal
		require.Error(t, json.Unmarshal([]byte(`"nope"`), &p))
	})

	t.Run("works as a JSON map key", func(t *testing.T) {
		p := NewPrincipal()
		raw, err := json.Marshal(map[Principal]bool{p: true})
		require.NoError(t, err)

		var decoded map[Principal]bool
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.True(t, decoded[p])
	})
}
