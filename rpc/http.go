package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ciphermarket/core/events"
	"ciphermarket/native/common"
	escrowengine "ciphermarket/native/escrow"
	marketengine "ciphermarket/native/market"
	platformengine "ciphermarket/native/platform"
	"ciphermarket/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000

	codeDomainInvalidParams = -32021
	codeDomainNotFound      = -32022
	codeDomainForbidden     = -32023
	codeDomainConflict      = -32024
	codeDomainInternal      = -32025
	codeDomainProof         = -32026
	codeDomainPayout        = -32027
)

// Server exposes the marketplace engines over a single JSON-RPC endpoint plus
// health and metrics routes. Mutating methods require the configured bearer
// token when one is set.
type Server struct {
	market    *marketengine.Engine
	escrow    *escrowengine.Engine
	platform  *platformengine.Engine
	recorder  *events.Recorder
	authToken string
	logger    *slog.Logger
}

// NewServer wires the RPC surface over the provided engines. A nil logger
// falls back to slog.Default; an empty token disables write auth (dev mode).
func NewServer(market *marketengine.Engine, escrow *escrowengine.Engine, platform *platformengine.Engine, recorder *events.Recorder, authToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		market:    market,
		escrow:    escrow,
		platform:  platform,
		recorder:  recorder,
		authToken: strings.TrimSpace(authToken),
		logger:    logger,
	}
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid bearer token"}
	}
	return nil
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

type methodRoute struct {
	module  string
	mutates bool
	handler handlerFunc
}

func (s *Server) routes() map[string]methodRoute {
	return map[string]methodRoute{
		"market_list":            {module: "market", mutates: true, handler: s.handleMarketList},
		"market_updatePrice":     {module: "market", mutates: true, handler: s.handleMarketUpdatePrice},
		"market_unlist":          {module: "market", mutates: true, handler: s.handleMarketUnlist},
		"market_get":             {module: "market", handler: s.handleMarketGet},
		"market_activeCount":     {module: "market", handler: s.handleMarketActiveCount},
		"market_activeSlice":     {module: "market", handler: s.handleMarketActiveSlice},
		"escrow_open":            {module: "escrow", mutates: true, handler: s.handleEscrowOpen},
		"escrow_confirmDelivery": {module: "escrow", mutates: true, handler: s.handleEscrowConfirmDelivery},
		"escrow_claimRefund":     {module: "escrow", mutates: true, handler: s.handleEscrowClaimRefund},
		"escrow_canRefund":       {module: "escrow", handler: s.handleEscrowCanRefund},
		"escrow_get":             {module: "escrow", handler: s.handleEscrowGet},
		"platform_setFeeBps":     {module: "platform", mutates: true, handler: s.handlePlatformSetFeeBps},
		"platform_setTreasury":   {module: "platform", mutates: true, handler: s.handlePlatformSetTreasury},
		"platform_pause":         {module: "platform", mutates: true, handler: s.handlePlatformPause},
		"platform_unpause":       {module: "platform", mutates: true, handler: s.handlePlatformUnpause},
		"platform_withdraw":      {module: "platform", mutates: true, handler: s.handlePlatformWithdraw},
		"platform_params":        {module: "platform", handler: s.handlePlatformParams},
		"sync_events":            {module: "sync", handler: s.handleSyncEvents},
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid_request", "unsupported jsonrpc version")
		return
	}
	route, ok := s.routes()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
		return
	}
	if route.mutates {
		if authErr := s.requireAuth(r); authErr != nil {
			observability.ModuleMetrics().Observe(route.module, req.Method, "unauthorized", 0)
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	started := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	route.handler(rec, r, &req)
	outcome := "ok"
	if rec.status >= http.StatusBadRequest {
		outcome = "error"
	}
	observability.ModuleMetrics().Observe(route.module, req.Method, outcome, time.Since(started))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// writeEngineError maps engine failures onto the stable domain error codes so
// off-ledger tooling can branch without parsing strings.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeDomainForbidden, "forbidden", err.Error())
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeDomainNotFound, "not_found", err.Error())
	case errors.Is(err, common.ErrInvalidState), errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusConflict, id, codeDomainConflict, "conflict", err.Error())
	case errors.Is(err, common.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, id, codeDomainInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, common.ErrProofMismatch):
		writeError(w, http.StatusConflict, id, codeDomainProof, "proof_mismatch", err.Error())
	case errors.Is(err, common.ErrPayout):
		writeError(w, http.StatusConflict, id, codeDomainPayout, "payout_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeDomainInternal, "internal_error", err.Error())
	}
}

func singleParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

func noParams(w http.ResponseWriter, req *RPCRequest) bool {
	if len(req.Params) > 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "no parameters expected")
		return false
	}
	return true
}
