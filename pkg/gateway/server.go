package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/mnemo/internal/observability"
	"github.com/harun/mnemo/internal/tracing"
	"github.com/harun/mnemo/pkg/memory"
)

// Server exposes the memory store over JSON-RPC: single-shot requests on
// /rpc, a challenge-authenticated WebSocket on /ws for clients that also
// want lifecycle events.
type Server struct {
	port           int
	sharedSecret   string
	server         *http.Server
	upgrader       websocket.Upgrader
	clients        *ClientRegistry
	router         *RPCRouter
	authHandler    *AuthHandler
	broadcaster    *EventBroadcaster
	service        *memory.Service
	retriever      *memory.Retriever
	importer       *memory.Importer
	logger         zerolog.Logger
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// Config holds server configuration. Importer is optional; the import
// method is only exposed when one is configured.
type Config struct {
	Port         int
	SharedSecret string
	Service      *memory.Service
	Retriever    *memory.Retriever
	Importer     *memory.Importer
	Logger       zerolog.Logger
}

// NewServer creates a gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.SharedSecret == "" {
		return nil, fmt.Errorf("shared secret is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("memory service is required")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("memory retriever is required")
	}

	clients := NewClientRegistry()

	s := &Server{
		port:         cfg.Port,
		sharedSecret: cfg.SharedSecret,
		clients:      clients,
		router:       NewRPCRouter(),
		authHandler:  NewAuthHandler(cfg.SharedSecret),
		broadcaster:  NewEventBroadcaster(clients, cfg.Logger),
		service:      cfg.Service,
		retriever:    cfg.Retriever,
		importer:     cfg.Importer,
		logger:       cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // loopback deployments; auth happens after upgrade
			},
		},
	}

	s.registerBuiltinMethods()

	return s, nil
}

// Start starts the gateway server
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	s.logger.Info().Int("port", s.port).Msg("Starting gateway server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Stop gracefully stops the gateway server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")

	s.broadcaster.Broadcast("server.shutdown", map[string]interface{}{
		"message": "Server is shutting down",
	})

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	for _, client := range s.clients.GetAll() {
		client.Conn.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	client := &Client{
		ID:           clientID,
		Conn:         conn,
		ConnectedAt:  time.Now(),
		LastActivity: time.Now(),
		IPAddress:    r.RemoteAddr,
		RateLimiter:  NewClientRateLimiter(),
		State:        StateConnecting,
	}

	s.clients.Add(client)

	s.logger.Info().
		Str("clientId", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	if err := s.sendAuthChallenge(client); err != nil {
		s.logger.Error().Err(err).Str("clientId", clientID).Msg("Failed to send auth challenge")
		conn.Close()
		s.clients.Remove(clientID)
		return
	}

	go s.handleClient(client)
}

// sendAuthChallenge sends an authentication challenge to a client
func (s *Server) sendAuthChallenge(client *Client) error {
	challenge, err := s.authHandler.GenerateChallenge()
	if err != nil {
		return err
	}

	client.Challenge = challenge
	client.State = StateAuthenticating

	return client.Conn.WriteJSON(AuthChallenge{
		Event:     "auth.challenge",
		Challenge: challenge,
	})
}

// handleClient handles messages from a client
func (s *Server) handleClient(client *Client) {
	defer func() {
		client.Conn.Close()
		s.clients.Remove(client.ID)
		s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("clientId", client.ID).Msg("WebSocket error")
			}
			break
		}

		s.clients.UpdateActivity(client.ID)
		s.handleMessage(client, message)
	}
}

// handleMessage handles a single message from a client
func (s *Server) handleMessage(client *Client, message []byte) {
	// Auth responses are the only messages allowed pre-authentication
	var authResp AuthResponse
	if err := json.Unmarshal(message, &authResp); err == nil && authResp.Method == "auth.response" {
		s.handleAuthMessage(client, authResp)
		return
	}

	if !client.Authenticated {
		s.sendError(client, "", AuthenticationRequired, "Authentication required")
		return
	}

	req, err := s.router.ParseRequest(message)
	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			s.sendError(client, "", rpcErr.Code, rpcErr.Message)
		} else {
			s.sendError(client, "", ParseError, err.Error())
		}
		return
	}

	allowed, reason := client.RateLimiter.CheckRequestAllowed()
	if !allowed {
		code := RateLimitExceeded
		if reason == "too many concurrent requests" {
			code = TooManyConcurrent
		}
		s.sendError(client, req.ID, code, reason)
		return
	}

	client.RateLimiter.RecordRequestStart()
	s.inFlightReqs.Add(1)

	go func() {
		defer client.RateLimiter.RecordRequestEnd()
		defer s.inFlightReqs.Done()

		start := time.Now()
		ctx := tracing.NewRequestContext(context.Background())

		response := s.router.RouteRequest(ctx, req)
		observability.RecordGatewayRequest(req.Method, time.Since(start), response.Error == nil)

		logger := tracing.LoggerFromContext(ctx, s.logger)
		logger.Debug().
			Str("clientId", client.ID).
			Str("method", req.Method).
			Dur("duration", time.Since(start)).
			Msg("Request handled")

		if err := client.Conn.WriteJSON(response); err != nil {
			logger.Error().
				Err(err).
				Str("clientId", client.ID).
				Str("requestId", req.ID).
				Msg("Failed to send response")
		}
	}()
}

// handleAuthMessage processes a client authentication response
func (s *Server) handleAuthMessage(client *Client, authResp AuthResponse) {
	result := s.authHandler.HandleAuthResponse(client, authResp.Signature)

	if err := client.Conn.WriteJSON(result); err != nil {
		s.logger.Error().Err(err).Str("clientId", client.ID).Msg("Failed to send auth result")
		return
	}

	if !result.Success && client.AuthAttempts >= 3 {
		s.logger.Warn().Str("clientId", client.ID).Msg("Closing client after repeated auth failures")
		client.Conn.Close()
	}
}

// sendError sends an error response to a client
func (s *Server) sendError(client *Client, requestID string, code int, message string) {
	response := RPCResponse{
		ID:      requestID,
		JSONRPC: "2.0",
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}

	if err := client.Conn.WriteJSON(response); err != nil {
		s.logger.Error().Err(err).Str("clientId", client.ID).Msg("Failed to send error response")
	}
}

// handleRPC handles single-shot HTTP JSON-RPC requests
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.Header.Get("X-Mnemo-Secret") != s.sharedSecret {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	req, err := s.router.ParseRequest(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rpcErr, ok := err.(*RPCError)
		if !ok {
			rpcErr = &RPCError{Code: ParseError, Message: err.Error()}
		}
		_ = json.NewEncoder(w).Encode(RPCResponse{
			JSONRPC: "2.0",
			Error:   rpcErr,
		})
		return
	}

	traceID := r.Header.Get("X-Trace-Id")
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}
	ctx := tracing.WithTraceID(r.Context(), traceID)

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	start := time.Now()
	response := s.router.RouteRequest(ctx, req)
	observability.RecordGatewayRequest(req.Method, time.Since(start), response.Error == nil)

	reqLogger := tracing.LoggerFromContext(ctx, s.logger)
	reqLogger.Debug().
		Str("method", req.Method).
		Dur("duration", time.Since(start)).
		Msg("RPC request handled")

	w.Header().Set("X-Trace-Id", traceID)
	_ = json.NewEncoder(w).Encode(response)
}
