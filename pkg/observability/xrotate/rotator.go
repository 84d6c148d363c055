package xrotate

import (
	"errors"
	"io"
)

var _ io.WriteCloser = (Rotator)(nil)

// Rotator 日志轮转器，实现必须并发安全
type Rotator interface {
	Write(p []byte) (n int, err error)

	// Close 重复调用返回 ErrClosed
	Close() error

	// Rotate 手动触发轮转
	Rotate() error
}

var (
	// ErrEmptyFilename 文件名为空
	ErrEmptyFilename = errors.New("xrotate: empty filename")

	// ErrClosed 轮转器已关闭
	ErrClosed = errors.New("xrotate: rotator closed")

	// ErrInvalidConfig 轮转参数越界
	ErrInvalidConfig = errors.New("xrotate: invalid config")
)
