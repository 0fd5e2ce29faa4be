// Package rpc exposes the price queries over a request/response
// websocket transport and owns the server's persistent identity.
package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/leaopedro/top-coins-price-tracker/internal/model"
	"github.com/leaopedro/top-coins-price-tracker/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Querier answers the two price queries. *store.Store satisfies it.
type Querier interface {
	GetLatest(ctx context.Context, symbols []string) (map[string]model.PriceObservation, error)
	GetRange(ctx context.Context, symbols []string, from, to time.Time) (map[string][]model.PriceObservation, error)
}

var _ Querier = (*store.Store)(nil)

// Config holds server settings.
type Config struct {
	// Addr is the TCP listen address, e.g. ":40001".
	Addr string
}

// Server serves getLatestPrices and getHistoricalPrices over a
// websocket endpoint, behind a small HTTP router that also carries a
// health probe. Startup is atomic: a bind failure releases everything
// acquired and leaves the server stopped.
type Server struct {
	cfg     Config
	querier Querier
	seeds   SeedStore
	logger  *slog.Logger

	mu         sync.Mutex
	identity   *Identity
	listener   net.Listener
	httpServer *http.Server

	upgrader websocket.Upgrader
}

// NewServer builds a stopped Server. The seed store and querier are
// usually the same *store.Store.
func NewServer(cfg Config, querier Querier, seeds SeedStore, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		querier: querier,
		seeds:   seeds,
		logger:  logger.With("component", "rpc"),
	}
}

// Start acquires the identity, binds the listener, and begins serving.
// It returns once the server is listening; the serve loop runs in the
// background. On any failure partially acquired resources are released
// and the server stays stopped.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("rpc server already started")
	}

	identity, err := LoadIdentity(s.seeds)
	if err != nil {
		return fmt.Errorf("acquire identity: %w", err)
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.cfg.Addr, err)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/rpc", s.handleRPC)

	httpServer := &http.Server{Handler: engine}
	s.identity = identity
	s.listener = listener
	s.httpServer = httpServer

	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Serve failed", "error", err)
		}
	}()

	s.logger.Info("RPC server listening", "addr", listener.Addr().String(), "publicKey", identity.PublicKeyHex())
	return nil
}

// Stop shuts the server down and releases the transport and identity
// handles. Safe to call on a stopped server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)

	s.httpServer = nil
	s.listener = nil
	s.identity = nil

	s.logger.Info("RPC server stopped")
	return err
}

// Addr returns the bound listen address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// PublicKeyHex returns the server credential, or "" when stopped.
func (s *Server) PublicKeyHex() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.PublicKeyHex()
}

func (s *Server) handleRPC(c *gin.Context) {
	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()
	if identity == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	nonce := c.Query("nonce")

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	hello := Hello{
		NodeID:    identity.NodeIDHex(),
		PublicKey: identity.PublicKeyHex(),
		Signature: hex.EncodeToString(identity.Sign([]byte(nonce))),
	}
	if err := conn.WriteJSON(hello); err != nil {
		s.logger.Warn("Failed to send hello", "error", err)
		return
	}

	ctx := c.Request.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			if err := conn.WriteJSON(failure("", "invalid request frame")); err != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(s.dispatch(ctx, req)); err != nil {
			return
		}
	}
}

// dispatch routes one request and never lets a failure escape: every
// outcome, including a handler panic, becomes a well-formed Response.
func (s *Server) dispatch(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Handler panic", "method", req.Method, "panic", r)
			resp = failure(req.ID, "internal error")
		}
	}()

	switch req.Method {
	case MethodGetLatestPrices:
		return s.handleLatest(ctx, req)
	case MethodGetHistoricalPrices:
		return s.handleHistorical(ctx, req)
	default:
		return failure(req.ID, fmt.Sprintf("unknown method %q", req.Method))
	}
}

func (s *Server) handleLatest(ctx context.Context, req Request) Response {
	var params LatestParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return failure(req.ID, "invalid parameters")
		}
	}

	data, err := s.querier.GetLatest(ctx, params.Pairs)
	if err != nil {
		return failure(req.ID, err.Error())
	}
	return success(req.ID, data)
}

func (s *Server) handleHistorical(ctx context.Context, req Request) Response {
	var params HistoricalParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return failure(req.ID, "invalid parameters")
	}

	var pairs []string
	if params.Pairs == nil || json.Unmarshal(params.Pairs, &pairs) != nil {
		return failure(req.ID, "pairs must be a list of symbols")
	}
	if params.From == nil || params.To == nil {
		return failure(req.ID, "from and to must be numeric epoch milliseconds")
	}

	from := time.UnixMilli(int64(*params.From)).UTC()
	to := time.UnixMilli(int64(*params.To)).UTC()

	data, err := s.querier.GetRange(ctx, pairs, from, to)
	if err != nil {
		return failure(req.ID, err.Error())
	}
	return success(req.ID, data)
}

func success(id string, data any) Response {
	raw, err := json.Marshal(data)
	if err != nil {
		return failure(id, "failed to encode response")
	}
	return Response{ID: id, Success: true, Data: raw}
}

func failure(id, msg string) Response {
	return Response{ID: id, Success: false, Error: msg}
}
