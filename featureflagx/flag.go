package featureflagx

import "context"

// Flag binds a Store to one flag.
type Flag struct {
	s  *Store
	ff FeatureFlag
}

func (f *Flag) Name() FeatureFlag {
	return f.ff
}

func (f *Flag) IsEnabled(ctx context.Context) bool {
	return f.s.IsEnabled(ctx, f.ff)
}

func (f *Flag) Enable(ctx context.Context) {
	f.s.Enable(ctx, f.ff)
}

func (f *Flag) Disable(ctx context.Context) {
	f.s.Disable(ctx, f.ff)
}

func (f *Flag) Toggle(ctx context.Context) bool {
	return f.s.Toggle(ctx, f.ff)
}
