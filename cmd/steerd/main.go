// Steerd is the cooperative client-steering coordinator daemon: one
// per-BSS FSM, driven by association/probe events from hostapd and an
// inter-AP flood protocol carried over raw Ethernet frames on a bridge
// interface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/cococorp/steerd/internal/config"
	"github.com/cococorp/steerd/internal/dbusnotify"
	"github.com/cococorp/steerd/internal/debugapi"
	"github.com/cococorp/steerd/internal/hostapdctl"
	"github.com/cococorp/steerd/internal/l2"
	steeringmetrics "github.com/cococorp/steerd/internal/metrics"
	"github.com/cococorp/steerd/internal/steering"
	appversion "github.com/cococorp/steerd/internal/version"
)

// shutdownTimeout is the maximum time to wait for HTTP servers to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	hostapdRunDir := flag.String("hostapd-run-dir", "/var/run/hostapd",
		"directory containing hostapd's per-interface ctrl_iface sockets")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("steerd starting",
		slog.String("version", appversion.Version),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("debug_addr", cfg.Debug.Addr),
		slog.Int("bsses", len(cfg.BSSes)))

	promReg := prometheus.NewRegistry()
	collector := steeringmetrics.NewCollector(promReg)

	notifier, closeNotifier := newNotifier(logger)
	defer closeNotifier()

	coordReg := steering.NewCoordinatorRegistry()

	if err := runDaemon(cfg, *hostapdRunDir, coordReg, collector, promReg, notifier, logger, *configPath, logLevel); err != nil {
		logger.Error("steerd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("steerd stopped")
	return 0
}

// bssRuntime is everything started for one configured BSS that must be
// torn down together on shutdown.
type bssRuntime struct {
	handle   steering.BSSHandle
	coord    *steering.Coordinator
	listener *l2.Listener
	stack    *hostapdctl.Client
	events   *hostapdctl.EventListener
}

func runDaemon(
	cfg *config.Config,
	hostapdRunDir string,
	coordReg *steering.CoordinatorRegistry,
	collector *steeringmetrics.Collector,
	promReg *prometheus.Registry,
	notifier steering.StateChangeNotifier,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	runtimes, err := startBSSes(gCtx, cfg.BSSes, hostapdRunDir, coordReg, collector, notifier, logger)
	if err != nil {
		return fmt.Errorf("start bsses: %w", err)
	}

	for _, rt := range runtimes {
		rt := rt
		g.Go(func() error {
			return receiveLoop(gCtx, rt, logger)
		})
		g.Go(func() error {
			return timerLoop(gCtx, rt)
		})
		g.Go(func() error {
			return eventLoop(rt, logger)
		})
	}

	metricsSrv := newMetricsServer(cfg.Metrics, promReg)
	debugSrv := newDebugServer(cfg.Debug, coordReg)

	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("metrics server listening", slog.String("addr", cfg.Metrics.Addr))
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})
	g.Go(func() error {
		logger.Info("debug server listening", slog.String("addr", cfg.Debug.Addr))
		return listenAndServe(gCtx, &lc, debugSrv, cfg.Debug.Addr)
	})

	g.Go(func() error { return runWatchdog(gCtx, logger) })

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(gCtx, sigHUP, configPath, logLevel, logger)
		return nil
	})

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		stopBSSes(runtimes, coordReg, logger)
		return gracefulShutdown(gCtx, logger, metricsSrv, debugSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run daemon: %w", err)
	}
	return nil
}

// startBSSes constructs one Coordinator, raw L2 socket, and hostapd
// control client per configured BSS, skipping any BSS whose mode resolves
// to off — it gets no raw socket, no hostapd dial, and no Coordinator, the
// same no-op init the protocol itself uses for a disabled BSS. On any
// failure, everything already started is torn down before returning the
// error.
func startBSSes(
	ctx context.Context,
	bsses []config.BSSConfig,
	hostapdRunDir string,
	coordReg *steering.CoordinatorRegistry,
	collector *steeringmetrics.Collector,
	notifier steering.StateChangeNotifier,
	logger *slog.Logger,
) ([]*bssRuntime, error) {
	runtimes := make([]*bssRuntime, 0, len(bsses))

	for _, bss := range bsses {
		mode, _ := config.ParseMode(bss.Mode)
		if mode == steering.ModeOff {
			logger.Info("bss steering disabled, skipping init", slog.String("bss", bss.Handle))
			continue
		}

		rt, err := startBSS(ctx, bss, hostapdRunDir, collector, notifier, logger)
		if err != nil {
			for _, started := range runtimes {
				stopOne(started, logger)
			}
			return nil, fmt.Errorf("bss %q: %w", bss.Handle, err)
		}
		coordReg.Register(rt.coord)
		runtimes = append(runtimes, rt)
	}

	return runtimes, nil
}

func startBSS(
	ctx context.Context,
	bss config.BSSConfig,
	hostapdRunDir string,
	collector *steeringmetrics.Collector,
	notifier steering.StateChangeNotifier,
	logger *slog.Logger,
) (*bssRuntime, error) {
	bssLog := logger.With(slog.String("bss", bss.Handle))

	conn, err := l2.NewRawConn(bss.Bridge)
	if err != nil {
		return nil, fmt.Errorf("open raw socket on %s: %w", bss.Bridge, err)
	}

	stack, err := hostapdctl.Dial(hostapdRunDir, bss.Iface)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("dial hostapd ctrl_iface for %s: %w", bss.Iface, err)
	}

	mode, _ := config.ParseMode(bss.Mode)
	sender := l2.NewSender(conn)
	opts := []steering.CoordinatorOption{
		steering.WithLogger(bssLog),
		steering.WithMetrics(collector),
	}
	if notifier != nil {
		opts = append(opts, steering.WithNotifier(notifier))
	}
	coord := steering.NewCoordinator(
		steering.BSSHandle(bss.Handle),
		bss.BSSIDMAC(),
		mode,
		bss.PeerMACs(),
		sender,
		stack,
		opts...,
	)

	// AP-STA-CONNECTED carries no RSSI; hostapd only reports signal
	// strength on RX-PROBE-REQUEST. Passing a magnitude of MaxScore
	// saturates LocalScore to the "no signal yet" sentinel rather than
	// the misleadingly perfect zero; the next probe from this STA
	// refines it.
	handler := hostapdctl.EventHandler{
		OnStationConnected: func(addr steering.MAC, supportsBTM bool) {
			coord.OnAssociation(ctx, addr, -int(steering.MaxScore), supportsBTM)
		},
		OnStationDisconnected: func(addr steering.MAC) {
			coord.OnDisassociation(ctx, addr)
		},
		OnProbeRequest: func(addr, destBSSID steering.MAC, rssi int) {
			coord.OnProbeRequest(ctx, addr, destBSSID, rssi)
		},
	}

	events, err := hostapdctl.DialEvents(hostapdRunDir, bss.Iface, handler, bssLog)
	if err != nil {
		_ = conn.Close()
		_ = stack.Close()
		return nil, fmt.Errorf("attach hostapd events for %s: %w", bss.Iface, err)
	}

	bssLog.Info("bss started",
		slog.String("bridge", bss.Bridge),
		slog.String("iface", bss.Iface),
		slog.String("mode", mode.String()),
		slog.Int("peers", len(bss.Peers)))

	return &bssRuntime{
		handle:   coord.Handle,
		coord:    coord,
		listener: l2.NewListener(conn),
		stack:    stack,
		events:   events,
	}, nil
}

func stopBSSes(runtimes []*bssRuntime, coordReg *steering.CoordinatorRegistry, logger *slog.Logger) {
	for _, rt := range runtimes {
		coordReg.Unregister(rt.handle)
		stopOne(rt, logger)
	}
}

func stopOne(rt *bssRuntime, logger *slog.Logger) {
	rt.coord.Deinit()
	if err := rt.listener.Close(); err != nil {
		logger.Warn("failed to close bss listener", slog.String("bss", string(rt.handle)), slog.String("error", err.Error()))
	}
	if err := rt.stack.Close(); err != nil {
		logger.Warn("failed to close hostapd control client", slog.String("bss", string(rt.handle)), slog.String("error", err.Error()))
	}
	if err := rt.events.Close(); err != nil {
		logger.Warn("failed to close hostapd event listener", slog.String("bss", string(rt.handle)), slog.String("error", err.Error()))
	}
}

// eventLoop runs one BSS's hostapd event stream until its socket is
// closed by stopOne as part of shutdown.
func eventLoop(rt *bssRuntime, logger *slog.Logger) error {
	if err := rt.events.Run(); err != nil {
		logger.Warn("bss event stream ended", slog.String("bss", string(rt.handle)), slog.String("error", err.Error()))
	}
	return nil
}

// receiveLoop reads frames off one BSS's raw socket until ctx is
// cancelled, decoding and dispatching each to its Coordinator.
func receiveLoop(ctx context.Context, rt *bssRuntime, logger *slog.Logger) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		buf, _, err := rt.listener.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, l2.ErrSocketClosed) {
				return nil
			}
			logger.Warn("bss receive error", slog.String("bss", string(rt.handle)), slog.String("error", err.Error()))
			continue
		}

		frame, err := steering.Decode(buf)
		rt.listener.Release(buf)
		if err != nil {
			rt.coord.OnDecodeError(decodeErrorReason(err))
			continue
		}

		rt.coord.OnReceive(ctx, frame)
	}
}

// decodeErrorReason reduces a Decode error to a short, low-cardinality
// metrics label.
func decodeErrorReason(err error) string {
	switch {
	case errors.Is(err, steering.ErrBadMagic):
		return "bad_magic"
	case errors.Is(err, steering.ErrBadVersion):
		return "bad_version"
	case errors.Is(err, steering.ErrShortHeader), errors.Is(err, steering.ErrShortPacket):
		return "short_frame"
	default:
		return "malformed_tlv"
	}
}

// timerLoop drains one BSS's timer events until ctx is cancelled.
func timerLoop(ctx context.Context, rt *bssRuntime) error {
	events := rt.coord.Timers.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			rt.coord.OnTimerEvent(ctx, ev)
		}
	}
}

// newNotifier connects to D-Bus for state-change signals. A dial failure
// is non-fatal: the daemon runs with no notifier rather than refusing to
// start over an optional integration.
func newNotifier(logger *slog.Logger) (steering.StateChangeNotifier, func()) {
	emitter, err := dbusnotify.New(dbusnotify.WithSystemBus())
	if err != nil {
		logger.Warn("d-bus unavailable, state-change signals disabled", slog.String("error", err.Error()))
		return nil, func() {}
	}
	return emitter, func() {
		if err := emitter.Close(); err != nil {
			logger.Warn("failed to close d-bus connection", slog.String("error", err.Error()))
		}
	}
}

// -------------------------------------------------------------------------
// HTTP servers
// -------------------------------------------------------------------------

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newDebugServer(cfg config.DebugConfig, coordReg *steering.CoordinatorRegistry) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           debugapi.NewHandler(coordReg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// -------------------------------------------------------------------------
// Systemd integration
// -------------------------------------------------------------------------

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_interval", interval),
		slog.Duration("keepalive_interval", tickInterval))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// -------------------------------------------------------------------------
// SIGHUP reload — log level only; BSS topology changes require a restart
// since tearing down a live Coordinator's raw socket and receive goroutine
// mid-flight is not something a config reload can safely do.
// -------------------------------------------------------------------------

func handleSIGHUP(ctx context.Context, sigHUP <-chan os.Signal, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading log level")
			reloadLogLevel(configPath, logLevel, logger)
		}
	}
}

func reloadLogLevel(configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings", slog.String("error", err.Error()))
		return
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()))
}

// -------------------------------------------------------------------------
// Graceful shutdown
// -------------------------------------------------------------------------

func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Config / logging setup
// -------------------------------------------------------------------------

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return nil, errConfigRequired
}

var errConfigRequired = errors.New("steerd: -config is required (at least one bss must be declared)")

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
