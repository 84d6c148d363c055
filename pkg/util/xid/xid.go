package xid

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/sony/sonyflake/v2"
)

var (
	// ErrNilGenerator 零值或 nil Generator
	ErrNilGenerator = errors.New("xid: nil generator")

	// ErrInvalidConfig 生成器配置无效（包括 sonyflake 初始化失败）
	ErrInvalidConfig = errors.New("xid: invalid config")
)

// Option 生成器选项
type Option func(*options)

type options struct {
	machineID func() (uint16, error)
}

// WithMachineID 自定义机器 ID 来源
func WithMachineID(fn func() (uint16, error)) Option {
	return func(o *options) {
		o.machineID = fn
	}
}

// Generator 基于 Sonyflake 的 ID 生成器，并发安全
type Generator struct {
	next func() (int64, error)
}

// NewGenerator 创建生成器
func NewGenerator(opts ...Option) (*Generator, error) {
	cfg := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	machineID := cfg.machineID
	if machineID == nil {
		machineID = DefaultMachineID
	}

	sf, err := sonyflake.New(sonyflake.Settings{
		MachineID: func() (int, error) {
			id, err := machineID()
			return int(id), err
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Generator{next: sf.NextID}, nil
}

// New 生成数值 ID
func (g *Generator) New() (int64, error) {
	if g == nil || g.next == nil {
		return 0, ErrNilGenerator
	}
	return g.next()
}

// NewString 生成 base36 字符串 ID
func (g *Generator) NewString() (string, error) {
	id, err := g.New()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 36), nil
}

// =============================================================================
// 包级函数
// =============================================================================

var (
	defaultOnce sync.Once
	defaultGen  *Generator
	defaultErr  error
)

func defaultGenerator() (*Generator, error) {
	defaultOnce.Do(func() {
		defaultGen, defaultErr = NewGenerator()
	})
	return defaultGen, defaultErr
}

// NewCorrelationID 生成关联标识，永不失败
//
// 优先使用 Sonyflake；生成器不可用或生成失败时返回 UUIDv4。
func NewCorrelationID() string {
	if g, err := defaultGenerator(); err == nil {
		if s, err := g.NewString(); err == nil {
			return s
		}
	}
	return uuid.NewString()
}
