// Package server implements the development HTTP server: it serves the
// rendered output directory, injects a live-reload client into HTML
// responses, and pushes reload signals to connected browsers over a
// websocket whenever a rebuild completes.
package server

import (
	"context"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/sitegen/internal/build"
	"github.com/conneroisu/sitegen/internal/config"
	sgerrors "github.com/conneroisu/sitegen/internal/errors"
	"github.com/conneroisu/sitegen/internal/logging"
	"github.com/conneroisu/sitegen/internal/watcher"
)

// shutdownGrace bounds how long in-flight requests may delay shutdown.
const shutdownGrace = 5 * time.Second

// DevServer serves the output directory with live reload.
type DevServer struct {
	cfg     *config.Config
	log     logging.Logger
	builder *build.Builder
	watcher *watcher.Watcher

	httpServer *http.Server

	clients    map[*websocket.Conn]*client
	clientsMu  sync.RWMutex
	register   chan *client
	unregister chan *websocket.Conn
	broadcast  chan []byte
	// hubDone closes when runHub exits, so senders on the channels
	// above never block on a stopped hub.
	hubDone chan struct{}

	shutdownOnce sync.Once
}

// New creates a DevServer wired to builder. The watcher subscription
// excludes dot paths, the ignore list, and the output directory, so the
// build's own writes never retrigger a build.
func New(cfg *config.Config, builder *build.Builder, log logging.Logger) (*DevServer, error) {
	w, err := watcher.New(cfg.Input, cfg.Watch.Debounce, log)
	if err != nil {
		return nil, err
	}
	for _, f := range watcher.ConfigFilters(cfg) {
		w.AddFilter(f)
	}

	return &DevServer{
		cfg:        cfg,
		log:        log.WithComponent("server"),
		builder:    builder,
		watcher:    w,
		clients:    make(map[*websocket.Conn]*client),
		register:   make(chan *client),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte),
		hubDone:    make(chan struct{}),
	}, nil
}

// Start acquires the listen address, launches the watcher, hub, and
// rebuild loop, and blocks serving HTTP until ctx is cancelled or the
// server fails. A port that cannot be bound surfaces as a BindError.
func (s *DevServer) Start(ctx context.Context) error {
	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &sgerrors.BindError{Addr: addr, Err: err}
	}

	if err := s.watcher.Start(); err != nil {
		ln.Close()
		return err
	}

	go s.runHub(ctx)
	go s.rebuildLoop(ctx)

	s.httpServer = &http.Server{Handler: s.routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.log.Error(err, "shutdown incomplete")
		}
	}()

	if s.cfg.Server.Open {
		go s.openBrowser("http://" + addr)
	}

	s.log.Info("serving site", "addr", addr, "output", s.cfg.Output)

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// routes builds the HTTP surface: the reload websocket, a health
// endpoint, and the static file tree.
func (s *DevServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/", s.handleStatic)
	return mux
}

// rebuildLoop consumes debounced change events one at a time. Events
// arriving while a rebuild runs queue up and are merged into a single
// pass before the next build, so overlapping bursts coalesce instead of
// piling up.
func (s *DevServer) rebuildLoop(ctx context.Context) {
	for {
		var ev watcher.ChangeEvent
		select {
		case <-ctx.Done():
			return
		case err := <-s.watcher.Errors():
			s.log.Error(err, "watch error, continuing")
			continue
		case ev = <-s.watcher.Events():
		}

		pending := make(map[string]struct{})
		for _, p := range ev.Paths {
			pending[p] = struct{}{}
		}

	drain:
		for {
			select {
			case more := <-s.watcher.Events():
				for _, p := range more.Paths {
					pending[p] = struct{}{}
				}
			default:
				break drain
			}
		}

		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}

		s.log.Info("change detected", "paths", paths)

		report, err := s.builder.Build(ctx, build.AffectedScope(paths))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Keep serving the last good output.
			s.log.Error(err, "rebuild failed")
			continue
		}

		if !report.OK() {
			for _, f := range report.Failed {
				s.log.Error(f.Err, "entry failed during rebuild", "path", f.Path)
			}
		}

		// Reload even on partial failure so the browser reflects every
		// page that did rebuild.
		s.Broadcast()
	}
}

// Broadcast sends a reload signal to every connected client. The hub
// never blocks on a client, so the send completes as soon as the hub
// picks it up; once the hub has stopped there is nobody left to notify.
func (s *DevServer) Broadcast() {
	select {
	case s.broadcast <- []byte(`{"command":"reload"}`):
	case <-s.hubDone:
		s.log.Debug("reload broadcast skipped, hub stopped")
	}
}

// Shutdown stops watching, closes every client connection, and shuts
// the HTTP server down, in that order. Safe to call more than once.
func (s *DevServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.log.Info("shutting down")

		if err := s.watcher.Stop(); err != nil {
			s.log.Error(err, "stopping watcher")
		}

		s.clientsMu.Lock()
		for conn, c := range s.clients {
			close(c.send)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		s.clients = make(map[*websocket.Conn]*client)
		s.clientsMu.Unlock()

		if s.httpServer != nil {
			shutdownErr = s.httpServer.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func (s *DevServer) openBrowser(url string) {
	// Give the listener a moment before pointing a browser at it.
	time.Sleep(100 * time.Millisecond)

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		return
	}
	if err != nil {
		s.log.Warn("could not open browser", "url", url, "open_error", err)
	}
}
