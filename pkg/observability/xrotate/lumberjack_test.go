package xrotate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLumberjack(t *testing.T) {
	t.Run("空文件名", func(t *testing.T) {
		_, err := NewLumberjack("")
		assert.ErrorIs(t, err, ErrEmptyFilename)
	})

	t.Run("参数越界", func(t *testing.T) {
		_, err := NewLumberjack(filepath.Join(t.TempDir(), "a.log"), WithMaxSize(0))
		assert.ErrorIs(t, err, ErrInvalidConfig)
		_, err = NewLumberjack(filepath.Join(t.TempDir(), "a.log"), WithMaxBackups(-1))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("写入、轮转与关闭", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "gateway.log")
		r, err := NewLumberjack(path, WithMaxSize(1), WithCompress(false), WithLocalTime(true), WithMaxAge(1))
		require.NoError(t, err)

		_, err = r.Write([]byte("hello\n"))
		require.NoError(t, err)
		require.NoError(t, r.Rotate())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Empty(t, data)

		require.NoError(t, r.Close())
		assert.ErrorIs(t, r.Close(), ErrClosed)
		_, err = r.Write([]byte("x"))
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, r.Rotate(), ErrClosed)
	})
}
