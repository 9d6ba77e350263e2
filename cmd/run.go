package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxreply/internal/assistant"
	"github.com/teemow/inboxreply/internal/config"
	"github.com/teemow/inboxreply/internal/drafting"
	"github.com/teemow/inboxreply/internal/gmail"
	"github.com/teemow/inboxreply/internal/instrumentation"
	"github.com/teemow/inboxreply/internal/ledger"
	"github.com/teemow/inboxreply/internal/logging"
	"github.com/teemow/inboxreply/internal/server"
)

func newRunCmd() *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Answer action-required email until stopped",
		Long: `Check the inbox, draft and send replies to action-required messages, wait,
and repeat.

Every message is handled at most once per process (or ever, with
--ledger sqlite). Bulk mail is skipped by sender; a message needs a reply
when its sender or snippet contains one of the action markers.

Type "exit" and press Enter, send SIGINT/SIGTERM, or call the
assistant_stop tool on the control endpoint to stop. The cycle in progress
always finishes first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ApplyEnv(cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runAssistant(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cfg.RegisterFlags(cmd.Flags())
	return cmd
}

func runAssistant(ctx context.Context, cfg config.Config, stdin io.Reader, out io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.DefaultLogger()
	in := bufio.NewReader(stdin)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	instrConfig.Assistant = instrumentation.AssistantInfo{
		Model:         cfg.Model,
		LedgerBackend: cfg.LedgerBackend,
		Interval:      cfg.Interval,
		DryRun:        cfg.DryRun,
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if shutdownErr := provider.Shutdown(context.Background()); shutdownErr != nil {
			err = errors.Join(err, fmt.Errorf("instrumentation shutdown: %w", shutdownErr))
		}
	}()
	metrics := provider.Metrics()

	led, closeLedger, err := openLedger(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeLedger(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("ledger close: %w", closeErr))
		}
	}()

	auth, tokenPath, err := newAuthenticator(cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		return err
	}
	if !auth.HasToken() {
		if !isTerminal(stdin) {
			return fmt.Errorf("no Google token at %s; run `inboxreply auth` first", tokenPath)
		}
		if err := authorize(ctx, auth, in, out, tokenPath); err != nil {
			return err
		}
	}
	httpClient, err := auth.HTTPClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create Google HTTP client: %w", err)
	}

	client, err := gmail.NewClientWithHTTP(ctx, httpClient, gmail.Options{
		Query:      cfg.Query,
		MaxResults: cfg.MaxResults,
		Metrics:    metrics,
		Logger:     componentLogger("gmail"),
	})
	if err != nil {
		return err
	}
	var mailbox assistant.Mailbox = client
	if cfg.DryRun {
		mailbox = gmail.NewDryRun(client, logger)
		logger.Warn("dry run: replies are drafted and logged, not sent")
	}

	drafter, err := drafting.NewOllamaDrafter(drafting.Options{
		Host:    cfg.OllamaHost,
		Model:   cfg.Model,
		Metrics: metrics,
		Logger:  componentLogger("drafting"),
	})
	if err != nil {
		return err
	}

	audit := instrumentation.NewAuditLogger(slog.Default(), instrConfig.AuditLogging)
	scheduler, err := newScheduler(cfg, mailbox, drafter, led, metrics, audit, componentLogger("assistant"))
	if err != nil {
		return err
	}

	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	stop := assistant.NewStop(sigCtx)
	defer stop.Release()

	go assistant.ListenForExit(in, stop, logger)

	health := server.NewHealthChecker(stop.Requested)
	servers, err := startServers(cfg, provider, scheduler, stop, health, logger)
	if err != nil {
		return err
	}
	defer func() {
		health.SetReady(false)
		if shutdownErr := servers.shutdown(); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
	}()

	logger.Info("assistant started",
		logging.UserHash(cfg.Address),
		"model", drafter.Model(),
		"interval", cfg.Interval,
		"ledger", cfg.LedgerBackend,
		"dry_run", cfg.DryRun,
	)
	fmt.Fprintln(out, `Assistant running. Type "exit" to stop after the current cycle.`)

	if err := scheduler.Run(stop.Context()); err != nil {
		return err
	}
	if src := stop.Source(); src != "" {
		logger.Info("assistant stopped", "source", src)
	} else {
		logger.Info("assistant stopped", logging.Err(context.Cause(stop.Context())))
	}
	return nil
}

// newScheduler wires the assistant stages around mailbox and drafter.
func newScheduler(
	cfg config.Config,
	mailbox assistant.Mailbox,
	drafter assistant.Drafter,
	led ledger.Ledger,
	metrics *instrumentation.Metrics,
	audit *instrumentation.AuditLogger,
	logger logging.Logger,
) (*assistant.Scheduler, error) {
	ingester := assistant.NewIngester(mailbox, led, cfg.Address, metrics, logger)
	coordinator := assistant.NewCoordinator(drafter, mailbox, assistant.CoordinatorOptions{
		Prompt:  assistant.NewPrompt(assistant.DefaultPersona, cfg.Address),
		Subject: cfg.ReplySubject,
		DryRun:  cfg.DryRun,
		Metrics: metrics,
		Audit:   audit,
		Logger:  logger,
	})
	return assistant.NewScheduler(assistant.Options{
		Ingester:    ingester,
		Rules:       assistant.NewRules(cfg.BulkMarkers, cfg.ActionMarkers),
		Coordinator: coordinator,
		Ledger:      led,
		Interval:    cfg.Interval,
		Metrics:     metrics,
		Logger:      logger,
	})
}

// openLedger returns the configured ledger and its close function.
func openLedger(cfg config.Config, logger logging.Logger) (ledger.Ledger, func() error, error) {
	switch cfg.LedgerBackend {
	case config.LedgerSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.LedgerPath), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		l, err := ledger.OpenSQLite(cfg.LedgerPath, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite ledger", "path", cfg.LedgerPath, "seen", l.Len())
		return l, l.Close, nil
	default:
		return ledger.NewMemory(), func() error { return nil }, nil
	}
}

func componentLogger(name string) logging.Logger {
	return logging.NewSlogAdapter(logging.WithComponent(slog.Default(), name))
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

type httpServer interface {
	Listen() (net.Listener, error)
	Serve(net.Listener) error
	Shutdown(context.Context) error
}

type runningServers struct {
	servers []httpServer
	serving sync.WaitGroup
	errs    chan error
	drained chan struct{}
}

// startServers binds the metrics and control listeners before the loop
// starts, so address conflicts fail the command immediately.
func startServers(cfg config.Config, provider *instrumentation.Provider, scheduler *assistant.Scheduler,
	stop *assistant.Stop, health *server.HealthChecker, logger logging.Logger,
) (*runningServers, error) {
	rs := newRunningServers(logger)

	if cfg.MetricsEnabled && provider.Enabled() && provider.PrometheusEnabled() {
		ms, err := server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			_ = rs.shutdown()
			return nil, fmt.Errorf("failed to create metrics server: %w", err)
		}
		if err := rs.start(ms); err != nil {
			_ = rs.shutdown()
			return nil, fmt.Errorf("metrics server failed to start: %w", err)
		}
	}

	if cfg.ControlAddr != "" {
		cs, err := server.NewControlServer(server.ControlServerConfig{
			Addr:    cfg.ControlAddr,
			Version: version,
			Status:  scheduler,
			Stop:    stop,
			Health:  health,
			Logger:  logger,
		})
		if err != nil {
			_ = rs.shutdown()
			return nil, fmt.Errorf("failed to create control server: %w", err)
		}
		if err := rs.start(cs); err != nil {
			_ = rs.shutdown()
			return nil, fmt.Errorf("control server failed to start: %w", err)
		}
	}

	return rs, nil
}

func newRunningServers(logger logging.Logger) *runningServers {
	rs := &runningServers{
		errs:    make(chan error),
		drained: make(chan struct{}),
	}
	go func() {
		defer close(rs.drained)
		for err := range rs.errs {
			logger.Error("server stopped unexpectedly", logging.Err(err))
		}
	}()
	return rs
}

func (rs *runningServers) start(s httpServer) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	rs.servers = append(rs.servers, s)
	rs.serving.Add(1)
	go func() {
		defer rs.serving.Done()
		if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rs.errs <- err
		}
	}()
	return nil
}

// shutdown stops every server and returns once their Serve calls and the
// error logger have finished.
func (rs *runningServers) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()

	var errs []error
	for _, s := range rs.servers {
		if err := s.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rs.serving.Wait()
	close(rs.errs)
	<-rs.drained
	return errors.Join(errs...)
}
