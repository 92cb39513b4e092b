package daemon

import (
	"context"
	"net"
	"net/url"

	"github.com/gavago/roomchat/internal/api"
	"github.com/gavago/roomchat/internal/bus"
	"github.com/gavago/roomchat/internal/config"
	"github.com/gavago/roomchat/internal/device"
	"github.com/gavago/roomchat/internal/gallery"
	"github.com/gavago/roomchat/internal/lock"
	"github.com/gavago/roomchat/internal/logging"
	"github.com/gavago/roomchat/internal/netwatch"
	"github.com/gavago/roomchat/internal/notify"
	"github.com/gavago/roomchat/internal/push"
	"github.com/gavago/roomchat/internal/replay"
	"github.com/gavago/roomchat/internal/session"
	"github.com/gavago/roomchat/internal/status"
	"github.com/gavago/roomchat/internal/store"
	"github.com/gavago/roomchat/internal/stream"
	"github.com/gavago/roomchat/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	Pseudo string
	Cfg    *config.Config
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			providePendingStore,
			providePhotoStore,
			provideSettingsStore,
			provideAPIClient,
			provideTransport,
			provideMonitor,
			provideNotifier,
			provideEngine,
			provideReplayDriver,
			provideFeatures,
			provideCapturer,
			providePushHandler,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.Pseudo), p.Pseudo)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.Pseudo); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("pseudo", p.Pseudo))
	l, err := lock.Acquire(session.Dir(p.Pseudo))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.Pseudo)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func providePendingStore(db *store.DB, logger *zap.Logger) *store.PendingStore {
	return store.NewPendingStore(db, logger)
}

func providePhotoStore(db *store.DB, logger *zap.Logger) *store.PhotoStore {
	return store.NewPhotoStore(db, logger)
}

func provideSettingsStore(db *store.DB, logger *zap.Logger) *store.SettingsStore {
	return store.NewSettingsStore(db, logger)
}

func provideAPIClient(p Params, logger *zap.Logger) *api.Client {
	return api.NewClient(p.Cfg.APIBase, logger)
}

func provideTransport(p Params, b *bus.Bus, logger *zap.Logger) *transport.Client {
	return transport.NewClient(p.Cfg.ServerURL, p.Pseudo, b, logger)
}

func provideMonitor(p Params, b *bus.Bus, logger *zap.Logger) *netwatch.Monitor {
	return netwatch.NewMonitor(netwatch.TCPProbe(probeAddr(p.Cfg.ServerURL)), b, logger)
}

func provideNotifier(settings *store.SettingsStore, logger *zap.Logger) *notify.Notifier {
	// Headless host: notifications land in the log and permission is a
	// given. A desktop build swaps the poster.
	return notify.New(settings, &logPoster{logger: logger}, func() bool { return true }, logger)
}

func provideEngine(p Params, pending *store.PendingStore, b *bus.Bus, t *transport.Client, n *notify.Notifier, m *netwatch.Monitor, logger *zap.Logger) *stream.Engine {
	return stream.NewEngine(p.Pseudo, pending, b, t, n, m, logger)
}

func provideReplayDriver(e *stream.Engine, pending *store.PendingStore, t *transport.Client, m *netwatch.Monitor, b *bus.Bus, logger *zap.Logger) *replay.Driver {
	return replay.NewDriver(e, pending, t, m, b, logger)
}

func provideFeatures(e *stream.Engine, logger *zap.Logger) *device.Features {
	var battery device.BatteryProvider
	if b, ok := device.DetectSysfsBattery(); ok {
		battery = b
	}
	// No geolocation source on a headless host.
	return device.NewFeatures(battery, nil, e, logger)
}

func provideCapturer(p Params, photos *store.PhotoStore, apiClient *api.Client, e *stream.Engine, t *transport.Client, logger *zap.Logger) *gallery.Capturer {
	return gallery.NewCapturer(p.Pseudo, photos, apiClient, e, t, logger)
}

func providePushHandler(logger *zap.Logger) *push.Handler {
	return push.NewHandler(push.NewMemoryStore(), push.NewHTTPSender(), logger)
}

func provideServer(p Params, e *stream.Engine, c *gallery.Capturer, f *device.Features, apiClient *api.Client, photos *store.PhotoStore, settings *store.SettingsStore, pending *store.PendingStore, m *status.Machine, mon *netwatch.Monitor, pushH *push.Handler, logger *zap.Logger) *Server {
	return NewServer(p.Pseudo, p.Cfg.ListenAddr, e, c, f, apiClient, photos, settings, pending, m, mon, pushH, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, t *transport.Client, e *stream.Engine, d *replay.Driver, mon *netwatch.Monitor, machine *status.Machine, b *bus.Bus, logger *zap.Logger) {
	trk := newTracker(machine, b, logger)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			trk.Start()
			e.Start()
			d.Start()
			mon.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http surface error", zap.Error(err))
				}
			}()

			_ = machine.Transition(status.Connecting)
			t.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			t.Stop()
			d.Stop()
			e.Stop()
			mon.Stop()
			trk.Stop()
			srv.Shutdown(ctx)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

// probeAddr derives the host:port the connectivity probe dials from the
// websocket URL.
func probeAddr(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return serverURL
	}
	if _, _, err := net.SplitHostPort(u.Host); err == nil {
		return u.Host
	}
	port := "443"
	if u.Scheme == "ws" || u.Scheme == "http" {
		port = "80"
	}
	return net.JoinHostPort(u.Hostname(), port)
}
