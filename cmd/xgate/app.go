package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"

	"github.com/omeyang/xgate/internal/gateway"
	"github.com/omeyang/xgate/pkg/config/xconf"
	"github.com/omeyang/xgate/pkg/lifecycle/xrun"
	"github.com/omeyang/xgate/pkg/observability/xlog"
	"github.com/omeyang/xgate/pkg/observability/xmetrics"
	"github.com/omeyang/xgate/pkg/observability/xtrace"
)

// flushTimeout 退出时刷新 TracerProvider/MeterProvider 的上限
const flushTimeout = 5 * time.Second

func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xgate",
		Usage:   "传播追踪上下文的边缘网关",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（yaml/json），为空时只使用内置默认值",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "监听地址，覆盖 server.addr",
			},
			&cli.BoolFlag{
				Name:  "logbook",
				Usage: "开启请求/响应日志，覆盖 logbook.filter.enabled",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 debug/info/warn/error，覆盖 log.level",
			},
		},
		Action: serve,
	}
}

// loadConfig 加载配置并应用命令行覆盖
func loadConfig(cmd *cli.Command, environ map[string]string) (xconf.Config, gateway.Config, error) {
	src, cfg, err := gateway.LoadConfig(cmd.String("config"), environ)
	if err != nil {
		return nil, gateway.Config{}, err
	}
	if cmd.IsSet("addr") {
		cfg.Server.Addr = cmd.String("addr")
	}
	if cmd.IsSet("logbook") {
		cfg.Logbook.Filter.Enabled = cmd.Bool("logbook")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	return src, cfg, nil
}

func buildLogger(cfg gateway.LogConfig) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetLevelString(cfg.Level).
		SetFormat(cfg.Format).
		SetAttrs(slog.String("service", "xgate"))
	if cfg.File != "" {
		b = b.SetRotation(cfg.File)
	}
	return b.Build()
}

func serve(ctx context.Context, cmd *cli.Command) error {
	src, cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	logger, closeLog, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	xlog.SetDefault(logger)

	tp, err := xtrace.NewTracerProvider(
		xtrace.WithServiceName(cfg.Tracing.ServiceName),
		xtrace.WithSampleRatio(cfg.Tracing.SampleRatio),
	)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(xtrace.Propagator())
	mp := xmetrics.NewMeterProvider(cfg.Tracing.ServiceName)
	otel.SetMeterProvider(mp)

	gw, err := gateway.New(cfg,
		gateway.WithLogger(logger),
		gateway.WithTracerProvider(tp),
		gateway.WithMeterProvider(mp),
	)
	if err != nil {
		return errors.Join(err, tp.Shutdown(ctx), mp.Shutdown(ctx))
	}

	if src.Path() != "" {
		w, err := xconf.Watch(src, levelReloader(logger, cfg.Log.Level), xconf.WithDebounce(200*time.Millisecond))
		if err != nil {
			logger.Warn(ctx, "config watch disabled", xlog.Err(err))
		} else {
			defer func() { _ = w.Stop() }()
		}
	}

	srv := gw.Server()
	logger.Info(ctx, "xgate starting",
		slog.String("addr", srv.Addr),
		slog.String("backend", cfg.Gateway.Backend),
		slog.Bool("logbook", gw.LoggingEnabled()),
	)

	err = xrun.RunWithOptions(ctx,
		[]xrun.Option{xrun.WithLogger(logger), xrun.WithName("xgate")},
		xrun.HTTPServer(srv, cfg.Server.ShutdownTimeout),
		xrun.Closer(flushTimeout, func(ctx context.Context) error {
			gw.Close()
			return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
		}),
	)
	if errors.Is(err, xrun.ErrSignal) {
		logger.Info(ctx, "xgate stopped", xlog.Err(err))
		return nil
	}
	return err
}

// levelReloader 配置文件变更后只应用 log.level
func levelReloader(logger xlog.LoggerWithLevel, initial string) xconf.WatchCallback {
	var mu sync.Mutex
	current := initial
	return func(src xconf.Config, err error) {
		mu.Lock()
		defer mu.Unlock()
		ctx := context.Background()
		if err != nil {
			logger.Warn(ctx, "config reload failed", xlog.Err(err))
			return
		}
		cfg, err := gateway.Decode(src)
		if err != nil {
			logger.Warn(ctx, "config reload failed", xlog.Err(err))
			return
		}
		if cfg.Log.Level == current {
			return
		}
		level, err := xlog.ParseLevel(cfg.Log.Level)
		if err != nil {
			logger.Warn(ctx, "invalid log level", slog.String("level", cfg.Log.Level), xlog.Err(err))
			return
		}
		logger.SetLevel(level)
		logger.Info(ctx, "log level changed", slog.String("from", current), slog.String("to", cfg.Log.Level))
		current = cfg.Log.Level
	}
}
