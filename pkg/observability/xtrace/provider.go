package xtrace

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrInvalidSampleRatio 采样比例不在 [0, 1]
var ErrInvalidSampleRatio = errors.New("xtrace: sample ratio must be within [0, 1]")

// DefaultServiceName 默认服务名
const DefaultServiceName = "xgate"

type providerConfig struct {
	serviceName string
	ratio       float64
	processors  []sdktrace.SpanProcessor
}

// ProviderOption TracerProvider 选项
type ProviderOption func(*providerConfig)

// WithServiceName 设置 service.name 资源属性
func WithServiceName(name string) ProviderOption {
	return func(c *providerConfig) {
		if name != "" {
			c.serviceName = name
		}
	}
}

// WithSampleRatio 设置根 span 的采样比例，有父级时跟随父级决策
func WithSampleRatio(ratio float64) ProviderOption {
	return func(c *providerConfig) {
		c.ratio = ratio
	}
}

// WithSpanProcessor 追加 span 处理器（导出器、测试用 SpanRecorder）
func WithSpanProcessor(sp sdktrace.SpanProcessor) ProviderOption {
	return func(c *providerConfig) {
		if sp != nil {
			c.processors = append(c.processors, sp)
		}
	}
}

// NewTracerProvider 创建 sdk TracerProvider
//
// 调用方负责在退出时调用 Shutdown。
func NewTracerProvider(opts ...ProviderOption) (*sdktrace.TracerProvider, error) {
	cfg := &providerConfig{serviceName: DefaultServiceName, ratio: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.ratio < 0 || cfg.ratio > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidSampleRatio, cfg.ratio)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.ratio))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.serviceName),
		)),
	}
	for _, sp := range cfg.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	return sdktrace.NewTracerProvider(tpOpts...), nil
}

// Propagator 返回网关使用的组合传播器
//
// Extract 按顺序执行、后者覆盖前者，B3 放在 W3C 之前，两者同时存在时以 traceparent 为准。
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		B3{},
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}
