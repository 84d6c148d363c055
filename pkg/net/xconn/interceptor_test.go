package xconn_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xgate/pkg/net/xconn"
)

func TestDelegate(t *testing.T) {
	assert.Equal(t, xconn.DelegateNone, xconn.None().Kind())
	assert.Equal(t, xconn.DelegateNone, xconn.Wrap(nil).Kind())
	assert.Equal(t, xconn.DelegateNone, xconn.Delegate{}.Kind())

	d := xconn.Wrap(&recorder{})
	assert.Equal(t, xconn.DelegateHandler, d.Kind())
	h, ok := d.Handler()
	assert.True(t, ok)
	assert.NotNil(t, h)
	assert.Equal(t, "handler", d.Kind().String())
	assert.Equal(t, "none", xconn.DelegateNone.String())
}

func TestInterceptorWithoutHandler(t *testing.T) {
	c := xconn.NewConn(xconn.Inbound, nil, nil)
	snap := c.Capture(withValue("req-a"))
	ic := xconn.New(xconn.None())

	var seen []string
	next := xconn.NextFuncs{
		ReadFunc: func(ctx context.Context, _ any) error {
			seen = append(seen, valueOf(ctx))
			return nil
		},
		WriteFunc: func(ctx context.Context, _ any, done xconn.Completion) error {
			seen = append(seen, valueOf(ctx))
			done(nil)
			return nil
		},
		FlushFunc: func(ctx context.Context) error {
			seen = append(seen, valueOf(ctx))
			return nil
		},
	}

	ctx := context.Background()
	require.NoError(t, ic.OnRead(ctx, c, "msg", next))
	var completed int
	require.NoError(t, ic.OnWrite(ctx, c, "msg", func(error) { completed++ }, next))
	require.NoError(t, ic.OnFlush(ctx, c, next))

	assert.Equal(t, []string{"req-a", "req-a", "req-a"}, seen)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, snap.Active(), "作用域已全部释放")
}

func TestInterceptorWithHandler(t *testing.T) {
	c := xconn.NewConn(xconn.Outbound, nil, nil)
	c.Capture(withValue("req-b"))
	rec := &recorder{}
	ic := xconn.New(xconn.Wrap(rec))
	assert.Equal(t, xconn.DelegateHandler, ic.Delegate().Kind())

	var forwarded int
	next := xconn.NextFuncs{
		ReadFunc: func(context.Context, any) error { forwarded++; return nil },
	}

	ctx := context.Background()
	require.NoError(t, ic.OnRead(ctx, c, 1, next))
	require.NoError(t, ic.OnWrite(ctx, c, 2, nil, next))
	require.NoError(t, ic.OnFlush(ctx, c, next))

	assert.Equal(t, []string{"read", "write", "flush"}, rec.ops())
	for _, e := range rec.snapshot() {
		assert.Equal(t, "req-b", e.value)
	}
	assert.Equal(t, 1, forwarded)
}

func TestInterceptorErrorsPropagate(t *testing.T) {
	errNext := errors.New("backend reset")
	errHandler := errors.New("handler failed")

	tests := []struct {
		name     string
		delegate xconn.Delegate
		want     error
	}{
		{name: "转发错误", delegate: xconn.None(), want: errNext},
		{name: "处理器错误", delegate: xconn.Wrap(&recorder{err: errHandler}), want: errHandler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := xconn.NewConn(xconn.Inbound, nil, nil)
			snap := c.Capture(withValue("v"))
			ic := xconn.New(tt.delegate)
			next := xconn.NextFuncs{
				ReadFunc:  func(context.Context, any) error { return errNext },
				WriteFunc: func(context.Context, any, xconn.Completion) error { return errNext },
				FlushFunc: func(context.Context) error { return errNext },
			}
			ctx := context.Background()
			assert.ErrorIs(t, ic.OnRead(ctx, c, nil, next), tt.want)
			assert.ErrorIs(t, ic.OnWrite(ctx, c, nil, nil, next), tt.want)
			assert.ErrorIs(t, ic.OnFlush(ctx, c, next), tt.want)
			assert.Equal(t, 0, snap.Active())
		})
	}
}

func TestInterceptorReleasesOnPanic(t *testing.T) {
	c := xconn.NewConn(xconn.Inbound, nil, nil)
	snap := c.Capture(withValue("v"))
	ic := xconn.New(xconn.None())

	var inside int
	assert.PanicsWithValue(t, "boom", func() {
		_ = ic.OnRead(context.Background(), c, nil, xconn.NextFuncs{
			ReadFunc: func(context.Context, any) error {
				inside = snap.Active()
				panic("boom")
			},
		})
	})
	assert.Equal(t, 1, inside)
	assert.Equal(t, 0, snap.Active())
}

func TestInterceptorKeepsBaseCancellation(t *testing.T) {
	c := xconn.NewConn(xconn.Inbound, nil, nil)
	c.Capture(withValue("v"))

	base, cancel := context.WithCancel(context.Background())
	cancel()
	err := xconn.New(xconn.None()).OnRead(base, c, nil, xconn.NextFuncs{
		ReadFunc: func(ctx context.Context, _ any) error {
			assert.Equal(t, "v", valueOf(ctx))
			return ctx.Err()
		},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInterceptorIsolation(t *testing.T) {
	ic := xconn.New(xconn.None())

	const conns = 16
	var wg sync.WaitGroup
	errs := make(chan error, conns)
	for i := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			want := fmt.Sprintf("conn-%d", i)
			c := xconn.NewConn(xconn.Inbound, nil, nil)
			defer c.Close()
			c.Capture(withValue(want))
			for range 100 {
				err := ic.OnRead(context.Background(), c, nil, xconn.NextFuncs{
					ReadFunc: func(ctx context.Context, _ any) error {
						if got := valueOf(ctx); got != want {
							return fmt.Errorf("want %s, got %s", want, got)
						}
						return nil
					},
				})
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestConnLifecycle(t *testing.T) {
	var nilConn *xconn.Conn
	assert.Nil(t, nilConn.Snapshot())
	assert.Zero(t, nilConn.ID())
	assert.False(t, nilConn.Closed())
	nilConn.Close()

	// nil Conn 上的回调以 base 为 context
	err := xconn.New(xconn.None()).OnRead(withValue("base"), nilConn, nil, xconn.NextFuncs{
		ReadFunc: func(ctx context.Context, _ any) error {
			assert.Equal(t, "base", valueOf(ctx))
			return nil
		},
	})
	require.NoError(t, err)

	a := xconn.NewConn(xconn.Inbound, nil, nil)
	b := xconn.NewConn(xconn.Outbound, nil, nil)
	assert.Less(t, a.ID(), b.ID())
	assert.Equal(t, "inbound", a.Direction().String())
	assert.Equal(t, "outbound", b.Direction().String())

	a.Capture(withValue("x"))
	require.NotNil(t, a.Snapshot())
	a.Close()
	a.Close()
	assert.True(t, a.Closed())
	assert.Nil(t, a.Snapshot())

	a.Capture(withValue("y"))
	assert.Nil(t, a.Snapshot(), "关闭后不再保存快照")
}
