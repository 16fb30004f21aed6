package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omochice/j2me-gateway/internal/config"
	"github.com/omochice/j2me-gateway/internal/logging"
	"github.com/omochice/j2me-gateway/internal/metrics"
	"github.com/omochice/j2me-gateway/internal/normalize"
	"github.com/omochice/j2me-gateway/internal/session"
	"github.com/omochice/j2me-gateway/internal/transport/tcp"
	"github.com/omochice/j2me-gateway/internal/typing"
	"github.com/omochice/j2me-gateway/internal/upstream"
)

const metricsShutdownTimeout = 5 * time.Second

func newRootCmd() *cobra.Command {
	var (
		configPath    string
		listen        string
		metricsListen string
		logLevel      string
	)

	cmd := &cobra.Command{
		Use:           "j2me-gateway",
		Short:         "Line protocol gateway between J2ME clients and the Discord gateway",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, os.Getenv)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Listen = config.ListenAddr(listen)
			}
			if flags.Changed("metrics-listen") {
				cfg.MetricsListen = config.ListenAddr(metricsListen)
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "invalid configuration")
			}

			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}

	cmd.AddCommand(newProbeCmd())

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&listen, "listen", "", "client listen address or port (default :8081, env PORT)")
	flags.StringVar(&metricsListen, "metrics-listen", "", "metrics listen address, empty disables (env METRICS_ADDR)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	return cmd
}

// run serves clients until ctx is done or the listener fails.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	m := metrics.New()

	dispatcher, err := typing.NewDispatcher(cfg.APIBase, cfg.TypingTimeout, cfg.Identity, logger.Named("typing"), m)
	if err != nil {
		return err
	}

	srv := tcp.New(cfg.Listen, session.NewHub(), session.Options{
		Dialer:     upstream.NewDialer(cfg.DialTimeout, cfg.Identity.UserAgent),
		Typing:     dispatcher,
		Normalizer: normalize.New(nil),
		Mask: session.Mask{
			OS:      cfg.Identity.OS,
			Browser: cfg.Identity.Browser,
		},
		TypingTimeout:        cfg.TypingTimeout,
		DetachOnUpstreamLoss: cfg.UpstreamLoss == config.Detach,
		Logger:               logger.Named("session"),
		Metrics:              m,
	})
	if err := srv.Listen(); err != nil {
		return err
	}

	var metricsServer *http.Server
	if cfg.MetricsListen != "" {
		ln, err := net.Listen("tcp", cfg.MetricsListen)
		if err != nil {
			srv.Stop()
			return errors.Wrap(err, "failed to start metrics server")
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		logger.Info("metrics server started", zap.String("addr", ln.Addr().String()))
		go func() {
			if err := metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	select {
	case err = <-errCh:
		logger.Error("server stopped unexpectedly", zap.Error(err))
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	srv.Stop()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if serr := metricsServer.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("metrics server shutdown", zap.Error(serr))
		}
	}
	return err
}
