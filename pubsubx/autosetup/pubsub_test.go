package autosetup

import (
	"context"
	"testing"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/pubsubx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("should set up the in-memory pubsub", func(t *testing.T) {
		ps, err := New(ctx, nil, &pubsubx.Config{Provider: pubsubx.ProviderInMemory, Scope: "test"})
		require.NoError(t, err)
		require.NotNil(t, ps)
		assert.NoError(t, ps.Close())
	})

	t.Run("should return no pubsub for none", func(t *testing.T) {
		ps, err := New(ctx, nil, &pubsubx.Config{Provider: pubsubx.ProviderNone})
		require.NoError(t, err)
		assert.Nil(t, ps)
	})

	t.Run("should reject an unknown provider", func(t *testing.T) {
		_, err := New(ctx, nil, &pubsubx.Config{Provider: "carrier-pigeon"})
		assert.True(t, errorx.IsInvalidArgumentError(err))
		assert.ErrorContains(t, err, "carrier-pigeon")
	})

	t.Run("should require kafka brokers", func(t *testing.T) {
		_, err := New(ctx, nil, &pubsubx.Config{Provider: pubsubx.ProviderKafka})
		assert.True(t, errorx.IsInvalidArgumentError(err))
	})
}
