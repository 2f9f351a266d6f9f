package engine

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/remud/remud/pkg/action"
	"github.com/remud/remud/pkg/color"
	"github.com/remud/remud/pkg/config"
	"github.com/remud/remud/pkg/log"
	"github.com/remud/remud/pkg/messaging"
	"github.com/remud/remud/pkg/metrics"
	"github.com/remud/remud/pkg/scripting"
	"github.com/remud/remud/pkg/session"
	"github.com/remud/remud/pkg/storage"
)

// defaultTerminalMode is the capability level new connections render at
// until the wire protocol layer negotiates a better one.
const defaultTerminalMode = color.Mode256

// Engine owns one running simulation: the hydrated World, its tick
// pipeline, the message/persistence bus, and the TCP accept loop that
// spawns a session.Session per connection.
type Engine struct {
	cfg   config.Config
	store storage.Store

	world    *storage.World
	host     *scripting.Host
	bus      *messaging.Bus
	pipeline *action.Pipeline

	listener  net.Listener
	collector *metrics.Collector
	logger    zerolog.Logger

	shutdown chan struct{}
	restart  bool

	wg sync.WaitGroup
}

var _ metrics.StatsProvider = (*Engine)(nil)

// New runs the ordered boot sequence over an already-open store: load the
// world, wire the action pipeline and message bus over the result, and run
// the Init hooks of everything the loader queued. It does not yet listen
// or tick; call Run for that.
func New(ctx context.Context, cfg config.Config, store storage.Store) (*Engine, error) {
	host := scripting.NewHost(cfg.ScriptTimeLimit)

	w, err := storage.Load(ctx, store, host)
	if err != nil {
		return nil, fmt.Errorf("engine: boot: %w", err)
	}

	bus := messaging.NewBus(store, cfg.WorkerPoolSize)

	pipeline := action.NewPipeline(w.Store, w.Rooms, w.Objects, w.Prototypes, w.Players, w.Scripts, w.IdAlloc, host, bus, bus)
	pipeline.WorkerPool = cfg.WorkerPoolSize
	pipeline.ScriptTimeout = cfg.ScriptTimeLimit

	e := &Engine{
		cfg:      cfg,
		store:    store,
		world:    w,
		host:     host,
		bus:      bus,
		pipeline: pipeline,
		logger:   log.WithComponent("engine"),
		shutdown: make(chan struct{}),
	}

	metrics.RegisterComponent("storage", true, "")
	metrics.RegisterComponent("scripting", true, "")
	metrics.RegisterComponent("engine", true, "")

	e.collector = metrics.NewCollector(e)
	e.collector.Start()

	pipeline.RunInitScripts(ctx, w.PendingInit)

	return e, nil
}

// World exposes the hydrated storage.World, for cmd/remud's metrics/admin
// wiring and for tests.
func (e *Engine) World() *storage.World { return e.world }

// Pipeline exposes the action pipeline new connections submit actions to.
func (e *Engine) Pipeline() *action.Pipeline { return e.pipeline }

// Bus exposes the message/persistence bus new sessions attach to.
func (e *Engine) Bus() *messaging.Bus { return e.bus }

// Listen opens the client-facing TCP listener at cfg.ListenAddr. Run's
// accept loop reads from it; callers that want the bound address (e.g.
// tests binding ":0") should call this before Run.
func (e *Engine) Listen() error {
	ln, err := net.Listen("tcp", e.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("engine: listen %s: %w", e.cfg.ListenAddr, err)
	}
	e.listener = ln
	return nil
}

// Addr returns the bound listener address; valid only after Listen.
func (e *Engine) Addr() net.Addr {
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// Run drives the engine until ctx is cancelled or a client-requested
// shutdown/restart reaches tick order item 10. It blocks; callers
// typically run it in the main goroutine and cancel ctx on SIGINT/SIGTERM.
// The returned bool reports whether a restart (rather than a clean
// shutdown) was requested.
func (e *Engine) Run(ctx context.Context) (restart bool, err error) {
	if e.listener != nil {
		e.wg.Add(1)
		go e.acceptLoop(ctx)
	}

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.stop()
			return false, nil
		case <-ticker.C:
			result := e.pipeline.Tick(ctx)
			if result.ShutdownRequested {
				e.stop()
				return false, nil
			}
			if result.RestartRequested {
				e.stop()
				return true, nil
			}
		}
	}
}

func (e *Engine) stop() {
	close(e.shutdown)
	if e.listener != nil {
		_ = e.listener.Close()
	}
	e.wg.Wait()
	e.collector.Stop()
	e.bus.Close()
	if err := e.store.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("engine: close store")
	}
}

// acceptLoop runs the client TCP accept loop: tick order item 4's queued
// actions originate here, one per Session.Run goroutine per connection.
func (e *Engine) acceptLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			select {
			case <-e.shutdown:
				return
			default:
				e.logger.Warn().Err(err).Msg("engine: accept failed")
				return
			}
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			transport := session.NewConn(conn, defaultTerminalMode)
			sess := session.New(transport, e.store, e.world, e.pipeline, e.bus)
			sess.Run(ctx)
		}()
	}
}

// MetricsServer returns an *http.Server exposing /metrics and the
// liveness/readiness/health endpoints pkg/metrics defines, bound to addr.
// cmd/remud runs it on its own goroutine alongside Run.
func MetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/readyz", metrics.ReadyHandler())
	mux.HandleFunc("/livez", metrics.LivenessHandler())
	return &http.Server{Addr: addr, Handler: mux}
}
