package featureflaggrpc

import (
	"context"

	"github.com/rentapp/x/featureflagx"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls a FeatureFlagService. Errors are converted back to errorx.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, ff featureflagx.FeatureFlag, opts ...grpc.CallOption) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, method, wrapperspb.String(ff.String()), out, opts...); err != nil {
		return false, FromStatus(err)
	}
	return out.GetValue(), nil
}

func (c *Client) IsEnabled(ctx context.Context, ff featureflagx.FeatureFlag, opts ...grpc.CallOption) (bool, error) {
	return c.invoke(ctx, IsEnabledMethod, ff, opts...)
}

func (c *Client) Enable(ctx context.Context, ff featureflagx.FeatureFlag, opts ...grpc.CallOption) (bool, error) {
	return c.invoke(ctx, EnableMethod, ff, opts...)
}

func (c *Client) Disable(ctx context.Context, ff featureflagx.FeatureFlag, opts ...grpc.CallOption) (bool, error) {
	return c.invoke(ctx, DisableMethod, ff, opts...)
}

func (c *Client) Toggle(ctx context.Context, ff featureflagx.FeatureFlag, opts ...grpc.CallOption) (bool, error) {
	return c.invoke(ctx, ToggleMethod, ff, opts...)
}
