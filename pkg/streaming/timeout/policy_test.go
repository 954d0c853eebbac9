package timeout

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Presets(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		first  time.Duration
		inter  time.Duration
		total  time.Duration
	}{
		{"default", Default(), 30 * time.Second, 15 * time.Second, 5 * time.Minute},
		{"local_provider", LocalProvider(), 10 * time.Second, 5 * time.Second, 3 * time.Minute},
		{"cloud_provider", CloudProvider(), 60 * time.Second, 30 * time.Second, 10 * time.Minute},
		{"cold_start", ColdStart(), 45 * time.Second, 20 * time.Second, 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.first, tt.policy.FirstChunk)
			assert.Equal(t, tt.inter, tt.policy.InterChunk)
			assert.Equal(t, tt.total, tt.policy.TotalStream)
			assert.NoError(t, tt.policy.Validate())

			byName, ok := Preset(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.policy, byName)
		})
	}

	_, ok := Preset("no-such-preset")
	assert.False(t, ok)
}

func TestPolicy_ValidationNamesField(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		field  string
	}{
		{"zero first", Policy{0, time.Second, time.Minute}, "first_chunk"},
		{"negative inter", Policy{time.Second, -time.Second, time.Minute}, "inter_chunk"},
		{"zero total", Policy{time.Second, time.Second, 0}, "total_stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			var invalid *InvalidPolicyError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestPolicy_New(t *testing.T) {
	policy, err := New(time.Second, 2*time.Second, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Second, policy.FirstChunk)

	_, err = New(time.Second, 0, time.Minute)
	var invalid *InvalidPolicyError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "inter_chunk", invalid.Field)
}

func TestPolicy_CopyWithOverride(t *testing.T) {
	base := Default()

	derived, err := base.WithInterChunk(42 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 42*time.Second, derived.InterChunk)
	assert.Equal(t, base.FirstChunk, derived.FirstChunk)
	// The original is untouched.
	assert.Equal(t, 15*time.Second, base.InterChunk)

	// Overrides re-validate.
	_, err = base.WithFirstChunk(0)
	var invalid *InvalidPolicyError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "first_chunk", invalid.Field)

	_, err = base.WithTotalStream(-time.Minute)
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "total_stream", invalid.Field)
}

func TestLoadPresets(t *testing.T) {
	doc := `
presets:
  glm:
    first_chunk: 45s
    inter_chunk: 20s
    total_stream: 5m
  local:
    first_chunk: 10s
    inter_chunk: 5s
    total_stream: 3m
`
	presets, err := LoadPresets(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, presets, 2)

	glm := presets["glm"]
	assert.Equal(t, 45*time.Second, glm.FirstChunk)
	assert.Equal(t, 20*time.Second, glm.InterChunk)
	assert.Equal(t, 5*time.Minute, glm.TotalStream)
}

func TestLoadPresets_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"missing field",
			"presets:\n  p:\n    first_chunk: 10s\n    inter_chunk: 5s\n",
			"total_stream",
		},
		{
			"unparseable duration",
			"presets:\n  p:\n    first_chunk: soon\n    inter_chunk: 5s\n    total_stream: 3m\n",
			"first_chunk",
		},
		{
			"non-positive duration",
			"presets:\n  p:\n    first_chunk: 0s\n    inter_chunk: 5s\n    total_stream: 3m\n",
			"first_chunk",
		},
		{
			"not yaml",
			"presets: [not a map",
			"parsing timeout presets",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPresets(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
