package flagsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluationContext_Equal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		a, b  EvaluationContext
		equal bool
	}{
		{
			name:  "zero values",
			equal: true,
		},
		{
			name:  "nil and empty properties",
			a:     EvaluationContext{UserID: "u1"},
			b:     EvaluationContext{UserID: "u1", Properties: map[string]string{}},
			equal: true,
		},
		{
			name:  "same properties built in a different order",
			a:     EvaluationContext{Properties: map[string]string{"plan": "pro", "region": "eu"}},
			b:     EvaluationContext{Properties: map[string]string{"region": "eu", "plan": "pro"}},
			equal: true,
		},
		{
			name: "different user",
			a:    EvaluationContext{UserID: "u1"},
			b:    EvaluationContext{UserID: "u2"},
		},
		{
			name: "different property value",
			a:    EvaluationContext{Properties: map[string]string{"plan": "pro"}},
			b:    EvaluationContext{Properties: map[string]string{"plan": "free"}},
		},
		{
			name: "value moved between fields",
			a:    EvaluationContext{UserID: "x"},
			b:    EvaluationContext{SessionID: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
			assert.Equal(t, tt.equal, Fingerprint(tt.a) == Fingerprint(tt.b))
		})
	}
}

func TestEvaluationContext_CloneSharesNothing(t *testing.T) {
	t.Parallel()

	original := EvaluationContext{UserID: "u1", Properties: map[string]string{"plan": "pro"}}
	clone := original.Clone()
	clone.Properties["plan"] = "free"

	assert.Equal(t, "pro", original.Properties["plan"])
	assert.False(t, original.Equal(clone))
}

func TestEvaluationContext_IsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, EvaluationContext{}.IsZero())
	assert.True(t, EvaluationContext{Properties: map[string]string{}}.IsZero())
	assert.False(t, EvaluationContext{CurrentTime: "2026-01-01T00:00:00Z"}.IsZero())
}

func TestContextFingerprint_String(t *testing.T) {
	t.Parallel()

	fingerprint := Fingerprint(EvaluationContext{UserID: "u1"})

	require.Len(t, fingerprint.String(), 64)
	assert.NotEqual(t, Fingerprint(EvaluationContext{}).String(), fingerprint.String())
}
