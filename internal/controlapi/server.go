package controlapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dashcamv2/control-go/internal/logging"
	"github.com/dashcamv2/control-go/internal/metrics"
	"github.com/dashcamv2/control-go/internal/security"
	"github.com/gorilla/websocket"
)

// Server implements the control-plane JSON-RPC 2.0 API over websocket,
// adapted from the teacher's internal/websocket.WebSocketServer: same
// upgrade/read-loop/dispatch shape, re-pointed at this process's own
// methods and collaborators instead of camera/MediaMTX ones.
type Server struct {
	config ServerConfig
	logger *logging.Logger

	jwtHandler        *security.JWTHandler
	permissionChecker *security.PermissionChecker
	rateLimiter       *security.EnhancedRateLimiter

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	clientsMu     sync.RWMutex
	clients       map[string]*client
	clientCounter int64
	active        int32 // atomic bool: 0/1

	methodsMu sync.RWMutex
	methods   map[string]methodHandler

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a Server wired to the security collaborators that already
// own authentication, RBAC, and rate limiting (internal/security), per
// SPEC_FULL.md's control-plane auth requirement.
func New(cfg ServerConfig, jwtHandler *security.JWTHandler, permissionChecker *security.PermissionChecker, rateLimiter *security.EnhancedRateLimiter, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewLogger("controlapi")
	}
	s := &Server{
		config:            cfg,
		logger:            logger,
		jwtHandler:        jwtHandler,
		permissionChecker: permissionChecker,
		rateLimiter:       rateLimiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		methods: make(map[string]methodHandler),
		stopCh:  make(chan struct{}),
	}
	s.registerBuiltinMethods()
	return s
}

// Handler returns the http.HandlerFunc to mount at s.config.Path (or any
// path the caller's mux chooses).
func (s *Server) Handler() http.HandlerFunc {
	return s.handleUpgrade
}

// ListenAndServe starts a dedicated HTTP server bound to addr, serving
// only the control-plane path. Most deployments instead mount Handler()
// onto a shared mux alongside the MJPEG endpoints; this is a convenience
// for standalone use.
func (s *Server) ListenAndServe(addr string) error {
	if !atomic.CompareAndSwapInt32(&s.active, 0, 1) {
		return fmt.Errorf("controlapi: server already running")
	}
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleUpgrade)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}

	s.logger.WithFields(logging.Fields{"addr": addr, "path": s.config.Path}).Info("starting control-plane API server")
	return s.httpSrv.ListenAndServe()
}

// Stop satisfies internal/shutdown.Stoppable: it closes every client
// connection and shuts down the HTTP listener, if one was started via
// ListenAndServe.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.clientsMu.Lock()
	for _, c := range s.clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(2*time.Second))
		c.conn.Close()
	}
	s.clientsMu.Unlock()

	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	atomic.StoreInt32(&s.active, 0)
	return nil
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	n := len(s.clients)
	s.clientsMu.RUnlock()
	if s.config.MaxConnections > 0 && n >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("control-plane websocket upgrade failed")
		return
	}

	id := "ctl_" + strconv.FormatInt(atomic.AddInt64(&s.clientCounter, 1), 10)
	c := &client{id: id, connectedAt: time.Now(), conn: conn}

	s.clientsMu.Lock()
	s.clients[id] = c
	s.clientsMu.Unlock()
	metrics.ControlAPIActiveConnections.Inc()

	s.wg.Add(1)
	go s.serveClient(c)
}

func (s *Server) serveClient(c *client) {
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c.id)
		s.clientsMu.Unlock()
		metrics.ControlAPIActiveConnections.Dec()
		c.conn.Close()
		s.wg.Done()
	}()

	readTimeout := s.config.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	pongWait := s.config.PongWait
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	pingInterval := s.config.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if s.config.MaxMessageSize > 0 {
		c.conn.SetReadLimit(s.config.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	msgCh := make(chan []byte)
	errCh := make(chan error, 1)
	go func() {
		for {
			_, msg, err := c.conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			msgCh <- msg
		}
	}()

	for {
		select {
		case <-s.stopCh:
			return
		case err := <-errCh:
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.WithError(err).WithField("client_id", c.id).Debug("control-plane read error")
			}
			return
		case msg := <-msgCh:
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
			s.handleMessage(c, msg)
		case <-ticker.C:
			writeTimeout := s.config.WriteTimeout
			if writeTimeout <= 0 {
				writeTimeout = 5 * time.Second
			}
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(c *client, raw []byte) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.send(c, &Response{JSONRPC: "2.0", Error: NewRPCError(ErrParseError, "")})
		return
	}
	if req.JSONRPC != "2.0" {
		s.send(c, &Response{JSONRPC: "2.0", ID: req.ID, Error: NewRPCError(ErrInvalidRequest, "jsonrpc must be \"2.0\"")})
		return
	}

	resp := s.dispatch(&req, c)
	if req.ID != nil {
		s.send(c, resp)
	}
}

func (s *Server) dispatch(req *Request, c *client) *Response {
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.ControlAPIRequestsTotal.WithLabelValues(req.Method, outcome).Inc()
		s.logger.WithFields(logging.Fields{
			"client_id": c.id,
			"method":    req.Method,
			"outcome":   outcome,
			"duration":  time.Since(start),
		}).Debug("control-plane request handled")
	}()

	if s.rateLimiter != nil {
		if err := s.rateLimiter.CheckLimit(req.Method, c.id); err != nil {
			return &Response{JSONRPC: "2.0", ID: req.ID, Error: NewRPCError(ErrRateLimitExceeded, err.Error())}
		}
	}

	s.methodsMu.RLock()
	handler, ok := s.methods[req.Method]
	s.methodsMu.RUnlock()
	if !ok {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: NewRPCError(ErrMethodNotFound, req.Method)}
	}

	if req.Method != "authenticate" {
		if !c.authenticated {
			return &Response{JSONRPC: "2.0", ID: req.ID, Error: NewRPCError(ErrAuthenticationRequired, "")}
		}
		role, err := s.permissionChecker.ValidateRole(c.role)
		if err != nil || !s.permissionChecker.HasPermission(role, req.Method) {
			return &Response{JSONRPC: "2.0", ID: req.ID, Error: NewRPCError(ErrInsufficientPermissions, "")}
		}
	}

	result, err := handler(req.Params, c)
	if err != nil {
		if domainErr, ok := err.(*rpcDomainError); ok {
			return &Response{JSONRPC: "2.0", ID: req.ID, Error: NewRPCError(domainErr.code, "")}
		}
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: NewRPCError(ErrInternalError, err.Error())}
	}
	outcome = "ok"
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) send(c *client, resp *Response) {
	writeTimeout := s.config.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(resp); err != nil {
		s.logger.WithError(err).WithField("client_id", c.id).Warn("failed to send control-plane response")
	}
}

// Notify pushes an unsolicited notification to every authenticated,
// connected client. No code path in this process calls it; geodata
// progress and recording status are served by request only.
func (s *Server) Notify(method string, params map[string]interface{}) {
	n := &Notification{JSONRPC: "2.0", Method: method, Params: params}
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		if !c.authenticated {
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteJSON(n); err != nil {
			s.logger.WithError(err).WithField("client_id", c.id).Debug("failed to deliver notification")
		}
	}
}

func (s *Server) registerMethod(name string, h methodHandler) {
	s.methodsMu.Lock()
	defer s.methodsMu.Unlock()
	s.methods[name] = h
}
