package xtrace_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xgate/pkg/context/xctx"
	"github.com/omeyang/xgate/pkg/observability/xtrace"
)

const (
	testTraceID = "0af7651916cd43dd8448eb211c80319c"
	testSpanID  = "b7ad6b7169203331"
)

func remoteContext(t *testing.T, sampled bool) context.Context {
	t.Helper()
	tid, err := trace.TraceIDFromHex(testTraceID)
	require.NoError(t, err)
	sid, err := trace.SpanIDFromHex(testSpanID)
	require.NoError(t, err)
	var flags trace.TraceFlags
	if sampled {
		flags = trace.FlagsSampled
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: flags})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestB3Inject(t *testing.T) {
	t.Run("无效 span 不写头", func(t *testing.T) {
		h := http.Header{}
		xtrace.B3{}.Inject(context.Background(), propagation.HeaderCarrier(h))
		assert.Empty(t, h)
	})

	t.Run("已采样并带父级", func(t *testing.T) {
		ctx, err := xctx.WithParentSpanID(remoteContext(t, true), "00f067aa0ba902b7")
		require.NoError(t, err)

		h := http.Header{}
		xtrace.B3{}.Inject(ctx, propagation.HeaderCarrier(h))
		assert.Equal(t, testTraceID, h.Get(xtrace.HeaderB3TraceID))
		assert.Equal(t, testSpanID, h.Get(xtrace.HeaderB3SpanID))
		assert.Equal(t, "1", h.Get(xtrace.HeaderB3Sampled))
		assert.Equal(t, "00f067aa0ba902b7", h.Get(xtrace.HeaderB3ParentSpanID))
	})

	t.Run("未采样且无父级", func(t *testing.T) {
		h := http.Header{}
		xtrace.B3{}.Inject(remoteContext(t, false), propagation.HeaderCarrier(h))
		assert.Equal(t, "0", h.Get(xtrace.HeaderB3Sampled))
		assert.Empty(t, h.Get(xtrace.HeaderB3ParentSpanID))
	})

	t.Run("父级与自身相同时忽略", func(t *testing.T) {
		ctx, err := xctx.WithParentSpanID(remoteContext(t, true), testSpanID)
		require.NoError(t, err)
		h := http.Header{}
		xtrace.B3{}.Inject(ctx, propagation.HeaderCarrier(h))
		assert.Empty(t, h.Get(xtrace.HeaderB3ParentSpanID))
	})
}

func TestB3Extract(t *testing.T) {
	tests := []struct {
		name        string
		header      map[string]string
		wantValid   bool
		wantSampled bool
		wantTraceID string
	}{
		{
			name:        "多头 128 位",
			header:      map[string]string{xtrace.HeaderB3TraceID: testTraceID, xtrace.HeaderB3SpanID: testSpanID, xtrace.HeaderB3Sampled: "1"},
			wantValid:   true,
			wantSampled: true,
			wantTraceID: testTraceID,
		},
		{
			name:        "多头 64 位补零",
			header:      map[string]string{xtrace.HeaderB3TraceID: "8448eb211c80319c", xtrace.HeaderB3SpanID: testSpanID},
			wantValid:   true,
			wantSampled: true,
			wantTraceID: "00000000000000008448eb211c80319c",
		},
		{
			name:        "多头未采样",
			header:      map[string]string{xtrace.HeaderB3TraceID: testTraceID, xtrace.HeaderB3SpanID: testSpanID, xtrace.HeaderB3Sampled: "0"},
			wantValid:   true,
			wantSampled: false,
			wantTraceID: testTraceID,
		},
		{
			name:        "debug 标志视为采样",
			header:      map[string]string{xtrace.HeaderB3TraceID: testTraceID, xtrace.HeaderB3SpanID: testSpanID, xtrace.HeaderB3Sampled: "0", xtrace.HeaderB3Flags: "1"},
			wantValid:   true,
			wantSampled: true,
			wantTraceID: testTraceID,
		},
		{
			name:        "大写十六进制",
			header:      map[string]string{xtrace.HeaderB3TraceID: "0AF7651916CD43DD8448EB211C80319C", xtrace.HeaderB3SpanID: "B7AD6B7169203331"},
			wantValid:   true,
			wantSampled: true,
			wantTraceID: testTraceID,
		},
		{
			name:      "非法采样值",
			header:    map[string]string{xtrace.HeaderB3TraceID: testTraceID, xtrace.HeaderB3SpanID: testSpanID, xtrace.HeaderB3Sampled: "maybe"},
			wantValid: false,
		},
		{
			name:      "缺少 span",
			header:    map[string]string{xtrace.HeaderB3TraceID: testTraceID},
			wantValid: false,
		},
		{
			name:        "单头",
			header:      map[string]string{xtrace.HeaderB3Single: testTraceID + "-" + testSpanID + "-1-00f067aa0ba902b7"},
			wantValid:   true,
			wantSampled: true,
			wantTraceID: testTraceID,
		},
		{
			name:        "单头未采样",
			header:      map[string]string{xtrace.HeaderB3Single: testTraceID + "-" + testSpanID + "-0"},
			wantValid:   true,
			wantSampled: false,
			wantTraceID: testTraceID,
		},
		{
			name:      "单头只有采样状态",
			header:    map[string]string{xtrace.HeaderB3Single: "0"},
			wantValid: false,
		},
		{
			name:      "单头非法 ID",
			header:    map[string]string{xtrace.HeaderB3Single: "xyz-" + testSpanID},
			wantValid: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.header {
				h.Set(k, v)
			}
			ctx := xtrace.B3{}.Extract(context.Background(), propagation.HeaderCarrier(h))
			sc := trace.SpanContextFromContext(ctx)
			assert.Equal(t, tt.wantValid, sc.IsValid())
			if !tt.wantValid {
				return
			}
			assert.True(t, sc.IsRemote())
			assert.Equal(t, tt.wantSampled, sc.IsSampled())
			assert.Equal(t, tt.wantTraceID, sc.TraceID().String())
		})
	}
}

func TestB3Fields(t *testing.T) {
	assert.Contains(t, xtrace.B3{}.Fields(), xtrace.HeaderB3ParentSpanID)
}

func TestPropagatorPrefersTraceparent(t *testing.T) {
	h := http.Header{}
	h.Set(xtrace.HeaderTraceparent, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	h.Set(xtrace.HeaderB3TraceID, testTraceID)
	h.Set(xtrace.HeaderB3SpanID, testSpanID)

	ctx := xtrace.Propagator().Extract(context.Background(), propagation.HeaderCarrier(h))
	sc := trace.SpanContextFromContext(ctx)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", sc.TraceID().String())
}
