package sandbox_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kauf3r/agent-trust-layer/sandbox"
	"github.com/kauf3r/agent-trust-layer/schema"
)

func TestRouterAdapter_RunReturnsHandlerValue(t *testing.T) {
	s := sandbox.New(sandbox.Passthrough{}, t.TempDir(), nil)
	adapter := sandbox.NewRouterAdapter(s)

	handler := schema.Handler(func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"echo": args["in"]}, nil
	})

	out, err := adapter.Run(context.Background(), "asi.echo", map[string]any{"in": "hi"}, handler)
	require.NoError(t, err)
	require.Equal(t, "hi", out["echo"])
}

func TestRouterAdapter_RunPropagatesHandlerError(t *testing.T) {
	s := sandbox.New(sandbox.Passthrough{}, t.TempDir(), nil)
	adapter := sandbox.NewRouterAdapter(s)

	handler := schema.Handler(func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return nil, errBoom
	})

	_, err := adapter.Run(context.Background(), "asi.fail", nil, handler)
	require.ErrorIs(t, err, errBoom)
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
