package featureflagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoolFeatureFlagValue(t *testing.T) {
	t.Run("should return its own bool value", func(t *testing.T) {
		ba1 := BoolFeatureFlagValue(true)
		assert.True(t, ba1.IsEnabled())
		ba2 := BoolFeatureFlagValue(false)
		assert.False(t, ba2.IsEnabled())
	})

	t.Run("should encode as the stored literals", func(t *testing.T) {
		assert.Equal(t, "true", BoolFeatureFlagValue(true).String())
		assert.Equal(t, "false", BoolFeatureFlagValue(false).String())
	})
}

func TestParseValue(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected bool
	}{
		{"true", true},
		{"false", false},
		{"True", false},
		{"TRUE", false},
		{"1", false},
		{" true", false},
		{"true ", false},
		{"", false},
		{`"true"`, false},
		{"yes", false},
	} {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseValue(tc.in).IsEnabled())
		})
	}
}
