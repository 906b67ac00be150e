// Package server exposes drag control over websockets. Control connections
// send commands that become signals; watch connections receive drag status
// updates as JSON.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"trenddraw/internal/clients"
	"trenddraw/internal/signals"
	t "trenddraw/internal/types"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Server is both a signal source and a drag observer.
type Server struct {
	addr   string
	logger golog.Logger
	mgr    *clients.Manager

	out     chan signals.Signal
	updates chan t.StatusUpdate
	done    chan struct{}

	handlers sync.WaitGroup
	workers  sync.WaitGroup

	mu       sync.Mutex
	bound    net.Addr
	closing  bool
	shutdown func() error
}

func New(addr string, logger golog.Logger) *Server {
	return &Server{
		addr:    addr,
		logger:  logger,
		mgr:     clients.NewManager(),
		out:     make(chan signals.Signal, 8),
		updates: make(chan t.StatusUpdate, 64),
		done:    make(chan struct{}),
	}
}

// Handler serves /healthz and /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Notify queues a status update for watchers. Updates are dropped when the
// queue is full.
func (s *Server) Notify(update t.StatusUpdate) {
	select {
	case s.updates <- update:
	default:
		s.logger.Debugw("dropping status update", "kind", update.Kind)
	}
}

// Addr is the address the server listens on once Signals has returned.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Signals starts listening. Remote commands are delivered on the returned
// channel, which is closed after ctx is done and every connection is gone.
func (s *Server) Signals(ctx context.Context) (<-chan signals.Signal, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", s.addr)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	s.bound = ln.Addr()
	s.mu.Unlock()

	utils.PanicCapturingGo(func() {
		s.logger.Infow("remote control server started", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("remote control server failed", "error", err)
		}
	})

	bctx, cancelBroadcast := context.WithCancel(context.Background())
	s.workers.Add(1)
	utils.ManagedGo(func() { s.broadcastLoop(bctx) }, s.workers.Done)

	var once sync.Once
	var shutdownErr error
	shutdown := func() error {
		once.Do(func() {
			s.mu.Lock()
			s.closing = true
			s.mu.Unlock()
			close(s.done)
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownErr = multierr.Combine(srv.Shutdown(sctx), s.mgr.CloseAll())
			s.handlers.Wait()
			cancelBroadcast()
			s.workers.Wait()
			close(s.out)
			s.logger.Info("remote control server stopped")
		})
		return shutdownErr
	}
	s.mu.Lock()
	s.shutdown = shutdown
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		if err := shutdown(); err != nil {
			s.logger.Warnw("remote control shutdown", "error", err)
		}
	}()
	return s.out, nil
}

// Close stops the server if it was started.
func (s *Server) Close() error {
	s.mu.Lock()
	shutdown := s.shutdown
	s.mu.Unlock()
	if shutdown == nil {
		return nil
	}
	return shutdown()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	role := r.URL.Query().Get("role")
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = "default"
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debugw("upgrade error", "error", err)
		return
	}

	ws.SetReadLimit(4 << 10)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	s.logger.Infow("new websocket connection", "role", role, "client", clientID)

	// registration and the closing check share the lock so that CloseAll
	// sees every connection a handler is waiting on
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		ws.Close()
		return
	}
	s.handlers.Add(1)
	switch role {
	case "watch":
		s.mgr.AddWatcher(clientID, ws)
		s.mu.Unlock()
		go func() {
			defer s.handlers.Done()
			defer func() {
				s.mgr.RemoveWatcher(clientID, ws)
				ws.Close()
			}()
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					s.logger.Debugw("watch connection closed", "client", clientID, "error", err)
					return
				}
			}
		}()
	default: // control
		old := s.mgr.SetControl(clientID, ws)
		s.mu.Unlock()
		if old != nil {
			old.Close()
		}
		go func() {
			defer s.handlers.Done()
			s.handleControl(clientID, ws)
		}()
	}
}

func (s *Server) handleControl(clientID string, ws *websocket.Conn) {
	defer func() {
		s.mgr.RemoveControl(clientID, ws)
		ws.Close()
	}()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			s.logger.Debugw("control connection closed", "client", clientID, "error", err)
			return
		}
		var cmd t.Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			s.logger.Warnw("bad control message", "client", clientID, "error", err)
			continue
		}
		sig, ok := commandSignal(cmd.Type)
		if !ok {
			s.logger.Warnw("unknown control command", "client", clientID, "type", cmd.Type)
			continue
		}
		s.logger.Infow("remote command", "client", clientID, "signal", sig)
		select {
		case s.out <- sig:
		case <-s.done:
			return
		}
	}
}

func commandSignal(typ string) (signals.Signal, bool) {
	switch typ {
	case t.CommandSchedule:
		return signals.ScheduleDraw, true
	case t.CommandTerminate:
		return signals.Terminate, true
	case t.CommandCancel:
		return signals.Cancel, true
	default:
		return 0, false
	}
}

// broadcastLoop is the only writer of data frames, so connections never see
// concurrent writes.
func (s *Server) broadcastLoop(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			s.mgr.ForEachClient(func(id string) {
				for _, conn := range s.mgr.Conns(id) {
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
						s.logger.Debugw("ping error", "client", id, "error", err)
					}
				}
			})
		case update := <-s.updates:
			payload, err := json.Marshal(update)
			if err != nil {
				s.logger.Errorw("encode status", "error", err)
				continue
			}
			s.mgr.ForEachClient(func(id string) {
				for _, conn := range s.mgr.Targets(id) {
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
						s.logger.Debugw("write error", "client", id, "error", err)
					}
				}
			})
		}
	}
}
