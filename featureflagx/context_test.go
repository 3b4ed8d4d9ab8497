package featureflagx

import (
	"context"
	"testing"

	inmemorykv "github.com/rentapp/x/kvx/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlagContext(t *testing.T) {
	Flags := []FeatureFlag{
		FeatureFlag("feature1"),
		FeatureFlag("feature2"),
		FeatureFlag("feature3"),
	}
	t.Run("should add the feature flag to the context and be able to retrieve it", func(t *testing.T) {
		ctx := context.Background()
		ff, err := New(
			map[string]bool{
				"feature1": false,
				"feature2": true,
				"feature3": false,
			},
			Flags,
		)
		require.NoError(t, err)
		uctx := NewContext(ctx, ff)
		ffctx, ok := FromContext(uctx)
		assert.NotEqual(t, ctx, uctx)
		assert.True(t, ok)
		assert.Equal(t, ff, ffctx)
		assert.True(t, IsEnabledInContext(uctx, FeatureFlag("feature2")))
		assert.False(t, IsEnabledInContext(uctx, FeatureFlag("feature1")))
	})

	t.Run("should return false on empty value in feature flag", func(t *testing.T) {
		ctx := context.Background()
		_, ok := FromContext(ctx)
		assert.False(t, ok)
		assert.False(t, IsEnabledInContext(ctx, StaffEnrollment))
	})

	t.Run("should ignore a nil snapshot", func(t *testing.T) {
		_, ok := FromContext(NewContext(context.Background(), nil))
		assert.False(t, ok)
	})

	t.Run("should freeze the store state", func(t *testing.T) {
		ctx := context.Background()
		s := NewStore(inmemorykv.New())
		s.Enable(ctx, StaffEnrollment)

		sctx := s.ContextWithSnapshot(ctx)
		s.Disable(ctx, StaffEnrollment)

		assert.True(t, IsEnabledInContext(sctx, StaffEnrollment))
		assert.False(t, s.IsEnabled(ctx, StaffEnrollment))
	})
}
