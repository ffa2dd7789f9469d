// Package engine assembles the monitor from configuration and exposes the
// control surface used by the command line.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"polmem/archive"
	"polmem/chat"
	"polmem/config"
	"polmem/monitor"
	"polmem/process"
	"polmem/property"
	"polmem/registry"
	"polmem/sink"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"
)

// Platform supplies the OS-specific pieces.
type Platform struct {
	Helper process.ProcessHelper
	// Capture is required by the capture chat strategy only.
	Capture chat.CaptureAPI
}

type Option func(*options)

type options struct {
	clock clock.Clock
	sink  sink.Sink
}

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithSink replaces the HTTP collector sink.
func WithSink(s sink.Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

type Engine struct {
	cfg   config.Config
	clock clock.Clock
	log   *logger.Logger

	registry   *registry.Registry
	monitor    *monitor.Monitor
	name       *property.PlayerName
	id         *property.PlayerID
	resolver   *property.IdentityResolver
	tp         *property.TacticalPoints
	chatSource chat.Source
	pipeline   *chat.Pipeline
	chatLog    *chat.Log
	dispatcher *sink.Dispatcher
	store      *archive.Store

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
	closed  bool
}

func New(cfg config.Config, platform Platform, opts ...Option) (*Engine, error) {
	o := options{clock: clock.New()}
	for _, fn := range opts {
		fn(&o)
	}
	if platform.Helper == nil {
		return nil, errors.New("no process helper for this platform")
	}

	e := &Engine{
		cfg:   cfg,
		clock: o.clock,
		log:   logger.NewLogger(coloransi.Color(coloransi.ColorIndigo, coloransi.ColorLimeGreen, "engine")),
	}

	out := o.sink
	if out == nil {
		out = sink.NewHTTPSink(cfg.Sink.BaseURL,
			sink.WithAuth(cfg.Sink.AuthHeader, cfg.Sink.AuthValue),
			sink.WithTimeout(cfg.Sink.Timeout),
		)
	}
	if cfg.ArchivePath != "" {
		store, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		e.store = store
		out = archive.NewSink(out, store)
	}
	e.dispatcher = sink.NewDispatcher(out, cfg.Sink.QueueSize, cfg.Sink.Workers)

	cleaner := chat.Cleaner{Encoding: cfg.Chat.Encoding}
	switch cfg.Chat.Strategy {
	case config.ChatCapture:
		if platform.Capture == nil {
			e.closeSinks()
			return nil, fmt.Errorf("chat strategy %q: %w", cfg.Chat.Strategy, chat.ErrCaptureUnavailable)
		}
		e.chatSource = chat.NewCaptureSource(platform.Capture, cfg.Chat.MaxLinesPoll, cleaner)
	default:
		e.chatSource = chat.NewBufferSource(cfg.PointerSize, cfg.Offsets.ChatLog, cfg.Offsets.ChatSize, cleaner)
	}

	reader := property.Reader{PointerSize: cfg.PointerSize}
	e.registry = registry.New(platform.Helper, cfg.Executable, cfg.GameModule, registry.WithClock(e.clock))
	e.name = property.NewPlayerName(reader, cfg.Offsets.Name, cfg.Offsets.NameSize)
	e.id = property.NewPlayerID(reader, cfg.Offsets.PlayerID)
	e.resolver = property.NewIdentityResolver(e.name, e.id, property.ResolverConfig{
		Stabilization:  cfg.Attach.Stabilization,
		Attempts:       cfg.Attach.IdentityAttempts,
		BackoffInitial: cfg.Attach.BackoffInitial,
		BackoffMax:     cfg.Attach.BackoffMax,
	}, e.clock)
	e.tp = property.NewTacticalPoints(reader, cfg.Offsets.TP, e.resolver, e.dispatcher, cfg.Sink.TPPath)

	e.pipeline = chat.NewPipeline(chat.PipelineConfig{
		QuietPeriod:   cfg.Chat.QuietPeriod,
		WaiterPoll:    cfg.Chat.WaiterPoll,
		QueueCapacity: cfg.Chat.QueueCapacity,
		HistorySize:   cfg.Chat.HistorySize,
		Path:          cfg.Sink.ChatPath,
	}, e.resolver, e.dispatcher, e.clock)
	e.chatLog = chat.NewLog(e.chatSource, chat.LineParser{}, e.pipeline, e.clock)

	e.monitor = monitor.New(e.registry, cfg.Tick, cfg.ScanInterval, monitor.WithClock(e.clock))
	e.monitor.Register(e.name, 0)
	e.monitor.Register(e.id, 0)
	e.monitor.Register(e.tp, cfg.TPInterval)
	e.monitor.Register(e.chatLog, cfg.ChatInterval)
	e.monitor.AddTicker(e.resolver)

	for _, p := range []registry.Purger{e.name, e.id, e.tp, e.chatLog, e.resolver} {
		e.registry.AddPurger(p)
	}
	e.registry.OnAttach(e.resolver.Schedule)

	return e, nil
}

// Start launches the scheduling loop. Calling it while running does nothing.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("engine closed")
	}
	if e.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.monitor.Run(gctx)
	})

	e.cancel = cancel
	e.group = g
	e.running = true
	e.log.Infoln("Engine started for", e.cfg.Executable, "/", e.cfg.GameModule)
	return nil
}

// Stop ends the loop and the chat waiters, closes delivery and releases
// every process handle. The engine cannot be restarted afterwards.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancel, g := e.cancel, e.group
	e.running = false
	e.mu.Unlock()

	var err error
	if cancel != nil {
		cancel()
		err = g.Wait()
	}

	e.pipeline.Stop()
	e.registry.Close()
	if cerr := e.chatSource.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	err = errors.Join(err, e.closeSinks())

	e.log.Infoln("Engine stopped")
	return err
}

func (e *Engine) closeSinks() error {
	e.dispatcher.Close()
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Run starts the engine and blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return e.Stop()
}

// Scan runs one registry scan immediately, on the loop when it is running.
func (e *Engine) Scan(ctx context.Context) (res registry.ScanResult, err error) {
	doErr := e.monitor.Do(ctx, func(ctx context.Context) {
		res, err = e.registry.Scan(ctx)
	})
	return res, errors.Join(doErr, err)
}

func (e *Engine) ProcessIDs() []process.ProcessID {
	return e.registry.PIDs()
}

func (e *Engine) PlayerName(pid process.ProcessID) string {
	return e.resolver.PlayerName(pid)
}

func (e *Engine) PlayerID(pid process.ProcessID) (uint32, bool) {
	return e.resolver.PlayerID(pid)
}

// TP returns the last tactical points read for pid.
func (e *Engine) TP(pid process.ProcessID) (int32, bool) {
	return e.tp.Value(pid)
}

// ForceRefreshIdentity re-reads name and id of every tracked process.
func (e *Engine) ForceRefreshIdentity(ctx context.Context) error {
	var err error
	doErr := e.monitor.Do(ctx, func(ctx context.Context) {
		err = e.resolver.ForceRefresh(ctx, e.registry.Snapshot())
	})
	return errors.Join(doErr, err)
}

// Value returns the display value of the named property for pid.
func (e *Engine) Value(name string, pid process.ProcessID) (string, error) {
	if _, err := e.registry.Get(pid); err != nil {
		return "", err
	}
	for _, entry := range e.monitor.Entries() {
		if entry.Property.Name() == name {
			return entry.Property.DisplayValue(pid), nil
		}
	}
	return "", fmt.Errorf("%q: %w", name, monitor.ErrUnknownProperty)
}

func (e *Engine) SetInterval(name string, d time.Duration) error {
	return e.monitor.SetInterval(name, d)
}

// RefreshProperty refreshes the named property on every process now.
func (e *Engine) RefreshProperty(ctx context.Context, name string) error {
	var err error
	doErr := e.monitor.Do(ctx, func(ctx context.Context) {
		err = e.monitor.RefreshProperty(ctx, name)
	})
	return errors.Join(doErr, err)
}

// EnableChat starts chat delivery. Repeated calls keep one pipeline.
func (e *Engine) EnableChat() {
	e.pipeline.Start()
}

func (e *Engine) DisableChat() {
	e.pipeline.Stop()
}

func (e *Engine) ChatEnabled() bool {
	return e.pipeline.Running()
}

// RecentChat returns up to n of the latest chat messages for pid.
func (e *Engine) RecentChat(pid process.ProcessID, n int) []chat.Message {
	return e.chatLog.Recent(pid, n)
}

// Archive returns the delivery archive, nil when disabled.
func (e *Engine) Archive() *archive.Store {
	return e.store
}
