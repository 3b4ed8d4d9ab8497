package featureflagx

import (
	"context"
)

type contextKey struct{}

// NewContext carries ffs in ctx so that a whole request sees one snapshot.
func NewContext(ctx context.Context, ffs *FeatureFlags) context.Context {
	return context.WithValue(ctx, contextKey{}, ffs)
}

func FromContext(ctx context.Context) (*FeatureFlags, bool) {
	ffs, ok := ctx.Value(contextKey{}).(*FeatureFlags)
	if !ok || ffs == nil {
		return nil, false
	}
	return ffs, true
}

// IsEnabledInContext reads ff from the snapshot of ctx. Without a snapshot
// every flag is disabled.
func IsEnabledInContext(ctx context.Context, ff FeatureFlag) bool {
	ffs, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ffs.IsEnabled(ff)
}

// ContextWithSnapshot returns ctx carrying the current Snapshot of s.
func (s *Store) ContextWithSnapshot(ctx context.Context) context.Context {
	return NewContext(ctx, s.Snapshot(ctx))
}
