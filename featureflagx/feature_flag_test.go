package featureflagx

import (
	"testing"

	"github.com/rentapp/x/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	t.Run("should return its name", func(t *testing.T) {
		assert.Equal(t, "rentapp_staff_enrollment_enabled", StaffEnrollment.String())
	})

	t.Run("should list the known flags", func(t *testing.T) {
		assert.Equal(t, []FeatureFlag{StaffEnrollment}, Known())
		assert.True(t, StaffEnrollment.IsKnown())
		assert.False(t, FeatureFlag("other").IsKnown())
	})

	t.Run("should not leak the known flags", func(t *testing.T) {
		ffs := Known()
		ffs[0] = "mutated"
		assert.Equal(t, []FeatureFlag{StaffEnrollment}, Known())
	})
}

func TestParseFeatureFlag(t *testing.T) {
	ff, err := ParseFeatureFlag("rentapp_staff_enrollment_enabled")
	require.NoError(t, err)
	assert.Equal(t, StaffEnrollment, ff)

	_, err = ParseFeatureFlag("RENTAPP_STAFF_ENROLLMENT_ENABLED")
	assert.True(t, errorx.IsNotFoundError(err))

	_, err = ParseFeatureFlag("")
	assert.True(t, errorx.IsNotFoundError(err))
}
