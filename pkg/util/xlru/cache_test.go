package xlru_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xgate/pkg/util/xlru"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  xlru.Config
		want error
	}{
		{"零大小", xlru.Config{}, xlru.ErrInvalidSize},
		{"超过上限", xlru.Config{Size: 1<<24 + 1}, xlru.ErrSizeExceedsMax},
		{"负 TTL", xlru.Config{Size: 1, TTL: -time.Second}, xlru.ErrInvalidTTL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := xlru.New[string, int](tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c, err := xlru.New[string, int](xlru.Config{Size: 8, TTL: time.Minute}, xlru.WithClock(clock.Now))
	require.NoError(t, err)

	c.Set("ttl", 1)
	c.SetUntil("early", 2, clock.Now().Add(10*time.Second))
	c.SetUntil("late", 3, clock.Now().Add(time.Hour))
	assert.False(t, c.SetUntil("past", 4, clock.Now()))
	assert.Equal(t, 3, c.Len())

	clock.Advance(10 * time.Second)
	_, ok := c.Get("early")
	assert.False(t, ok, "截止时间早于 TTL")
	v, ok := c.Get("late")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	clock.Advance(time.Minute)
	_, ok = c.Get("ttl")
	assert.False(t, ok)
	_, ok = c.Get("late")
	assert.False(t, ok, "TTL 早于截止时间")
	assert.Equal(t, 0, c.Len())
}

func TestEvictionAndDelete(t *testing.T) {
	c, err := xlru.New[string, int](xlru.Config{Size: 2})
	require.NoError(t, err)

	assert.False(t, c.Set("a", 1))
	assert.False(t, c.Set("b", 2))
	_, _ = c.Get("a")
	assert.True(t, c.Set("c", 3))

	_, ok := c.Get("b")
	assert.False(t, ok)
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c, err := xlru.New[int, int](xlru.Config{Size: 64, TTL: time.Minute})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Go(func() {
			for j := range 100 {
				c.Set(i*100+j, j)
				_, _ = c.Get(i*100 + j)
			}
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
