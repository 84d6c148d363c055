package xctx_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xgate/pkg/context/xctx"
)

func TestTraceFields(t *testing.T) {
	tests := []struct {
		name string
		with func(context.Context, string) (context.Context, error)
		get  func(context.Context) string
	}{
		{"TraceID", xctx.WithTraceID, xctx.TraceID},
		{"SpanID", xctx.WithSpanID, xctx.SpanID},
		{"ParentSpanID", xctx.WithParentSpanID, xctx.ParentSpanID},
		{"TraceFlags", xctx.WithTraceFlags, xctx.TraceFlags},
		{"RequestID", xctx.WithRequestID, xctx.RequestID},
		{"CorrelationID", xctx.WithCorrelationID, xctx.CorrelationID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, err := tt.with(context.Background(), "v-1")
			require.NoError(t, err)
			assert.Equal(t, "v-1", tt.get(ctx))
			assert.Empty(t, tt.get(context.Background()))

			//nolint:staticcheck // 测试 nil context
			_, err = tt.with(nil, "v")
			assert.ErrorIs(t, err, xctx.ErrNilContext)
			//nolint:staticcheck // 测试 nil context
			assert.Empty(t, tt.get(nil))
		})
	}
}

func TestRequire(t *testing.T) {
	t.Run("缺失时返回错误", func(t *testing.T) {
		_, err := xctx.RequireTraceID(context.Background())
		assert.ErrorIs(t, err, xctx.ErrMissingTraceID)
		_, err = xctx.RequireSpanID(context.Background())
		assert.ErrorIs(t, err, xctx.ErrMissingSpanID)
		_, err = xctx.RequireCorrelationID(context.Background())
		assert.ErrorIs(t, err, xctx.ErrMissingCorrelationID)
	})

	t.Run("存在时返回值", func(t *testing.T) {
		ctx, err := xctx.WithTrace(context.Background(), xctx.Trace{TraceID: "t", SpanID: "s"})
		require.NoError(t, err)
		v, err := xctx.RequireTraceID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "t", v)
		v, err = xctx.RequireSpanID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "s", v)
	})
}

func TestGenerateIDs(t *testing.T) {
	traceID := xctx.GenerateTraceID()
	spanID := xctx.GenerateSpanID()
	assert.Len(t, traceID, 2*xctx.TraceIDSize)
	assert.Len(t, spanID, 2*xctx.SpanIDSize)
	assert.NotEqual(t, traceID, xctx.GenerateTraceID())
	assert.Regexp(t, "^[0-9a-f]+$", traceID)
}

func TestEnsureTrace(t *testing.T) {
	t.Run("缺失时生成", func(t *testing.T) {
		ctx, err := xctx.EnsureTrace(context.Background())
		require.NoError(t, err)
		assert.True(t, xctx.GetTrace(ctx).IsComplete())
	})

	t.Run("已存在时保留", func(t *testing.T) {
		ctx, _ := xctx.WithTraceID(context.Background(), "keep")
		ctx, err := xctx.EnsureTrace(ctx)
		require.NoError(t, err)
		assert.Equal(t, "keep", xctx.TraceID(ctx))
		assert.NotEmpty(t, xctx.SpanID(ctx))
	})
}

func TestTraceValidate(t *testing.T) {
	assert.ErrorIs(t, xctx.Trace{}.Validate(), xctx.ErrMissingTraceID)
	assert.ErrorIs(t, xctx.Trace{TraceID: "t"}.Validate(), xctx.ErrMissingSpanID)
	assert.NoError(t, xctx.Trace{TraceID: "t", SpanID: "s"}.Validate())
}

func TestTraceAttrs(t *testing.T) {
	assert.Nil(t, xctx.TraceAttrs(context.Background()))

	ctx, err := xctx.WithTrace(context.Background(), xctx.Trace{
		TraceID:      "0af7651916cd43dd8448eb211c80319c",
		SpanID:       "b7ad6b7169203331",
		ParentSpanID: "00f067aa0ba902b7",
	})
	require.NoError(t, err)
	ctx, err = xctx.WithCorrelationID(ctx, "corr")
	require.NoError(t, err)

	attrs := xctx.TraceAttrs(ctx)
	got := make(map[string]string, len(attrs))
	for _, a := range attrs {
		got[a.Key] = a.Value.String()
	}
	assert.Equal(t, map[string]string{
		xctx.KeyTraceID:       "0af7651916cd43dd8448eb211c80319c",
		xctx.KeySpanID:        "b7ad6b7169203331",
		xctx.KeyParentSpanID:  "00f067aa0ba902b7",
		xctx.KeyCorrelationID: "corr",
	}, got)

	buf := make([]slog.Attr, 0, 1)
	buf = xctx.AppendTraceAttrs(buf, nil) //nolint:staticcheck // nil ctx 安全
	assert.Empty(t, buf)
}
