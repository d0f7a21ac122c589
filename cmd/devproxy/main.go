package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/fabian4/devproxy/internal/config"
	fwd "github.com/fabian4/devproxy/internal/forward"
	"github.com/fabian4/devproxy/internal/handler"
	"github.com/fabian4/devproxy/internal/logging"
	"github.com/fabian4/devproxy/internal/metrics"
	"github.com/fabian4/devproxy/internal/model"
	"github.com/fabian4/devproxy/internal/proxy"
	"github.com/fabian4/devproxy/internal/ratelimit"
	"github.com/fabian4/devproxy/internal/router"
	"github.com/fabian4/devproxy/internal/server"
	"github.com/fabian4/devproxy/internal/version"
)

func main() {
	fs := pflag.NewFlagSet("devproxy", pflag.ExitOnError)
	config.RegisterFlags(fs)
	printConfig := fs.Bool("print-config", false, "print settings, rules and project data as YAML and exit")
	showVersion := fs.BoolP("version", "v", false, "print version and exit")
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println(version.Value)
		return
	}

	s, err := config.LoadSettings(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devproxy: %v\n", err)
		os.Exit(2)
	}
	logger := logging.New(os.Stderr, s.LogFormat, s.Debug)

	specs, err := config.RuleSpecs(s, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("load rules")
	}
	project, err := config.NewProject(s)
	if err != nil {
		logger.Fatal().Err(err).Msg("project")
	}
	if *printConfig {
		if err := config.WriteYAML(os.Stdout, config.Dump{Settings: s, Rules: specs, Project: project}); err != nil {
			logger.Fatal().Err(err).Msg("print config")
		}
		return
	}

	rules, err := config.Compile(specs, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("compile rules")
	}
	for _, r := range rules {
		logger.Debug().
			Str("rule", r.Name).
			Str("match", r.Matcher.Pattern()).
			Str("target", r.Target.String()).
			Bool("ws", r.WebSocket).
			Msg("proxy rule")
	}

	m := metrics.NewRegistry()
	transports := fwd.NewDefaultRegistry()
	defer transports.CloseIdle()

	fallback, err := server.NewDefaultHandler(server.Options{
		PublicPath:  s.PublicPath,
		OutDir:      project.Build.OutDir,
		FallbackURL: s.FallbackURL,
		Metrics:     m,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("default handler")
	}

	gw := handler.NewGateway(router.New(rules), proxy.NewForwarder(transports, s.UpstreamTimeout, logger, m), fallback)
	gw.Limiter = ratelimit.NewLimiter()
	gw.Metrics = m
	if s.AccessLog {
		access := logging.Access(os.Stdout)
		gw.AccessLog = &access
	}

	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           gw,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("version", version.Value).
			Str("addr", s.Addr()).
			Str("base", server.NormalizeBasePath(s.PublicPath)).
			Int("rules", len(rules)).
			Msg("devproxy listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if s.Watch {
		w := config.NewWatcher(s.RulesFile, func(rules []model.Rule, err error) {
			if err != nil {
				logger.Error().Err(err).Str("file", s.RulesFile).Msg("rules reload failed; keeping current table")
				return
			}
			gw.UpdateTable(router.New(rules))
			logger.Info().Str("file", s.RulesFile).Int("rules", len(rules)).Msg("rules reloaded")
		}, logger)
		g.Go(func() error { return w.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("devproxy stopped")
		os.Exit(1)
	}
	logger.Info().Msg("devproxy stopped")
}
