// Package main is the entry point for the remapd daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kvance/remapd/internal/action"
	"github.com/kvance/remapd/internal/dispatch"
	"github.com/kvance/remapd/internal/event"
	"github.com/kvance/remapd/internal/hub"
	"github.com/kvance/remapd/internal/input"
	"github.com/kvance/remapd/internal/profile"
	"github.com/kvance/remapd/internal/source"
	"github.com/kvance/remapd/internal/source/console"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if cfg.showVersion {
		fmt.Printf("remapd %s (%s)\n", version, commit)
		return 0
	}

	log := newLogger(cfg.logLevel)

	app, err := newApp(cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		log.Info("shutting down")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		return 1
	}
	return 0
}

type config struct {
	profilePath string
	listenAddr  string
	oscAddr     string
	logLevel    string
	useConsole  bool
	showVersion bool
}

// loadConfig merges flags, environment (REMAPD_*) and an optional
// daemon config file, in that precedence order.
func loadConfig() (config, error) {
	flags := pflag.NewFlagSet("remapd", pflag.ContinueOnError)
	flags.StringP("profile", "p", "profile.toml", "Path to the remapping profile")
	flags.String("listen", "127.0.0.1:8732", "Status server listen address, empty to disable")
	flags.String("osc-listen", "", "OSC UDP listen address, empty to disable")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("console", false, "Capture terminal keystrokes as keyboard input")
	flags.StringP("config", "c", "", "Path to a daemon config file")
	showVersion := flags.BoolP("version", "v", false, "Show version information")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return config{}, err
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return config{}, err
	}
	v.SetEnvPrefix("REMAPD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return config{
		profilePath: v.GetString("profile"),
		listenAddr:  v.GetString("listen"),
		oscAddr:     v.GetString("osc-listen"),
		logLevel:    v.GetString("log-level"),
		useConsole:  v.GetBool("console"),
		showVersion: *showVersion,
	}, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// app owns the runtime object graph and swaps the installed profile
// on live reload.
type app struct {
	cfg config
	log *slog.Logger

	bus        *event.Bus
	scripts    *action.ScriptHost
	dispatcher *dispatch.Dispatcher
	keyboard   *source.Keyboard
	joystick   *source.Joystick

	statePath string

	mu       sync.Mutex
	handlers map[profile.AxisKey]*dispatch.GateHandler
}

func newApp(cfg config, log *slog.Logger) (*app, error) {
	prof, err := profile.Load(cfg.profilePath)
	if err != nil {
		return nil, err
	}
	if prof == nil {
		return nil, fmt.Errorf("profile %s does not exist", cfg.profilePath)
	}
	if err := prof.Validate(); err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		bus:       event.NewBus(event.WithLogger(log)),
		scripts:   action.NewScriptHost(0),
		statePath: profile.StatePath(cfg.profilePath),
		handlers:  make(map[profile.AxisKey]*dispatch.GateHandler),
	}
	a.keyboard = source.NewKeyboard(a.bus, log)
	a.joystick = source.NewJoystick(a.bus)

	state, err := profile.LoadState(a.statePath)
	if err != nil {
		log.Warn("runtime state unreadable, starting fresh", "error", err)
	}

	rtc := dispatch.NewRuntimeContext(prof.StartModeFor(state))
	rtc.OnModePersist(func(m string) {
		if err := profile.SaveState(a.statePath, profile.State{LastRuntimeMode: m}); err != nil {
			log.Warn("mode persist failed", "error", err)
		}
	})
	a.dispatcher = dispatch.New(rtc, dispatch.WithLogger(log), dispatch.WithBus(a.bus))

	if err := a.install(prof); err != nil {
		return nil, err
	}
	return a, nil
}

// install materializes the profile and swaps it in. Used at startup
// and on watcher reloads; a reload resets transient runtime state.
func (a *app) install(prof *profile.Profile) error {
	rt, err := prof.Build(profile.Deps{
		Sink:       logSink{log: a.log},
		Scripts:    a.scripts,
		ChangeMode: a.dispatcher.ChangeMode,
	})
	if err != nil {
		return err
	}

	for _, sf := range prof.Scripts {
		src, err := os.ReadFile(sf.Path)
		if err != nil {
			return fmt.Errorf("script %s: %w", sf.Path, err)
		}
		if err := a.scripts.Load(context.Background(), sf.Path, string(src)); err != nil {
			return fmt.Errorf("script %s: %w", sf.Path, err)
		}
	}

	a.dispatcher.Reset()
	if err := a.dispatcher.InstallProfile(rt.Tree); err != nil {
		return err
	}

	a.mu.Lock()
	a.handlers = make(map[profile.AxisKey]*dispatch.GateHandler, len(rt.Gates))
	for k, data := range rt.Gates {
		h := dispatch.NewGateHandler(data, a.dispatcher.Pulser(), a.log)
		h.SetBus(a.bus)
		h.SetContext(a.dispatcher.Context())
		a.handlers[k] = h
	}
	a.mu.Unlock()

	for k, cal := range rt.Calibrations {
		a.joystick.SetCalibration(k.Device, k.Axis, cal)
	}

	a.log.Info("profile installed",
		"modes", len(prof.Modes),
		"bindings", len(prof.Bindings),
		"gated_axes", len(prof.GatedAxes))
	return nil
}

// Run wires the sources to the dispatcher and blocks until the
// context is cancelled.
func (a *app) Run(ctx context.Context) error {
	forward := func(payload any) {
		ev, ok := payload.(input.Event)
		if !ok {
			return
		}
		a.dispatcher.ProcessEvent(ev)
	}
	a.bus.Subscribe(event.TopicKeyboard, forward)
	a.bus.Subscribe(event.TopicMouse, forward)
	a.bus.Subscribe(event.TopicMIDI, forward)
	a.bus.Subscribe(event.TopicOSC, forward)
	a.bus.Subscribe(event.TopicControl, forward)
	a.bus.Subscribe(event.TopicJoystick, func(payload any) {
		ev, ok := payload.(input.Event)
		if !ok {
			return
		}
		a.dispatcher.ProcessEvent(ev)
		if ev.Type != input.TypeJoystickAxis {
			return
		}
		axis, ok := ev.Ident.(int)
		if !ok {
			return
		}
		a.mu.Lock()
		h := a.handlers[profile.AxisKey{Device: ev.Device, Axis: axis}]
		a.mu.Unlock()
		if h != nil {
			h.HandleSample(ev)
		}
	})

	var wg sync.WaitGroup
	start := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	start(func() { a.scripts.Run(ctx) })
	start(func() { a.keyboard.Run(ctx) })
	start(func() {
		hb := source.NewHeartbeat(a.bus, 0)
		hb.Run(ctx)
	})

	if a.cfg.oscAddr != "" {
		osc := source.NewOSC(a.bus, a.cfg.oscAddr, a.log)
		start(func() {
			if err := osc.Run(ctx); err != nil {
				a.log.Error("osc source failed", "error", err)
			}
		})
	}

	watcher, err := profile.NewWatcher(a.cfg.profilePath, a.log, func(p *profile.Profile) {
		if err := a.install(p); err != nil {
			a.log.Error("profile reload failed", "error", err)
		}
	})
	if err != nil {
		a.log.Warn("profile watcher unavailable", "error", err)
	} else {
		start(func() { watcher.Run(ctx) })
	}

	var statusServer *hub.Server
	if a.cfg.listenAddr != "" {
		statusServer = hub.NewServer(hub.New(a.log), a.dispatcher, a.dispatcher.Context().Mode, a.cfg.listenAddr, a.log)
		statusServer.Bind(a.bus)
		start(func() {
			if err := statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("status server failed", "error", err)
			}
		})
	}

	if a.cfg.useConsole {
		con, err := console.New(a.keyboard, a.log)
		if err != nil {
			return fmt.Errorf("console source: %w", err)
		}
		start(func() {
			if err := con.Run(ctx); err != nil {
				a.log.Error("console source failed", "error", err)
			}
		})
	}

	a.log.Info("remapd running",
		"profile", a.cfg.profilePath,
		"mode", a.dispatcher.Context().Mode())

	<-ctx.Done()

	if statusServer != nil {
		statusServer.Shutdown(context.Background())
	}
	wg.Wait()

	// Sources have stopped and the keyboard queue is drained; tear
	// down transient state so a subsequent run starts clean.
	a.scripts.Close()
	a.dispatcher.Reset()
	a.mu.Lock()
	for _, h := range a.handlers {
		h.Reset()
	}
	a.mu.Unlock()
	a.keyboard.Reset()
	a.bus.Clear()
	return nil
}

// logSink records output writes instead of driving a virtual device.
// Device I/O is host-specific and injected in production builds.
type logSink struct {
	log *slog.Logger
}

func (s logSink) SetButton(device, button int, pressed bool) error {
	s.log.Debug("vout button", "device", device, "button", button, "pressed", pressed)
	return nil
}

func (s logSink) SetAxis(device, axis int, value float64) error {
	s.log.Debug("vout axis", "device", device, "axis", axis, "value", value)
	return nil
}

func (s logSink) SetHat(device, hat, direction int) error {
	s.log.Debug("vout hat", "device", device, "hat", hat, "direction", direction)
	return nil
}
