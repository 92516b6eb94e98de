package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"blockmarket/core"
	marketerrors "blockmarket/core/errors"
	"blockmarket/core/types"
	"blockmarket/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestsPerSec  = 20
	requestBurst    = 40
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020

	codeMarketUnauthorized = -32030
	codeMarketNotFound     = -32031
	codeMarketValidation   = -32032
	codeMarketInvalidState = -32033
	codeMarketPaused       = -32034
)

// Server exposes the market over JSON-RPC 2.0. Mutating methods take the
// caller address as an explicit parameter; transport authentication is an
// optional bearer token layered on top.
type Server struct {
	market     *core.Market
	logger     *slog.Logger
	authToken  string
	trustProxy bool
	metrics    interface {
		Observe(module, method string, status int, duration time.Duration)
		RecordThrottle(module, reason string)
	}

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer wires a server around the market. The bearer token is read from
// BMD_RPC_TOKEN; when unset, token authentication is disabled.
func NewServer(market *core.Market, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		market:    market,
		logger:    logger,
		authToken: strings.TrimSpace(os.Getenv("BMD_RPC_TOKEN")),
		metrics:   observability.ModuleMetrics(),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// SetTrustProxyHeaders controls whether X-Forwarded-For is honoured when
// resolving the client address for rate limiting.
func (s *Server) SetTrustProxyHeaders(trust bool) { s.trustProxy = trust }

// Router assembles the HTTP surface: the JSON-RPC endpoint, health and
// metrics probes, and the websocket event stream.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	return r
}

// Start serves the router on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
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

// writeMarketError maps the module sentinel chain of err onto the published
// error codes and writes the response.
func writeMarketError(w http.ResponseWriter, id interface{}, err error) {
	code := codeServerError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, marketerrors.ErrUnauthorized):
		code = codeMarketUnauthorized
		status = http.StatusForbidden
	case errors.Is(err, marketerrors.ErrNotFound):
		code = codeMarketNotFound
		status = http.StatusNotFound
	case errors.Is(err, marketerrors.ErrValidation):
		code = codeMarketValidation
		status = http.StatusBadRequest
	case errors.Is(err, marketerrors.ErrInvalidState):
		code = codeMarketInvalidState
		status = http.StatusConflict
	case errors.Is(err, marketerrors.ErrPaused):
		code = codeMarketPaused
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, id, code, err.Error(), nil)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	client := s.clientAddress(r)
	if !s.allowClient(client) {
		s.metrics.RecordThrottle("rpc", "rate_limit")
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.dispatch(recorder, r, req)
	s.metrics.Observe(moduleOf(req.Method), req.Method, recorder.status, time.Since(started))
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if mutatingMethods[req.Method] {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	switch req.Method {
	case "identity_registerAdmin":
		s.handleIdentityRegisterAdmin(w, r, req)
	case "identity_registerStoreOwner":
		s.handleIdentityRegisterStoreOwner(w, r, req)
	case "identity_isAdmin":
		s.handleIdentityIsAdmin(w, r, req)
	case "identity_isStoreOwner":
		s.handleIdentityIsStoreOwner(w, r, req)
	case "identity_getUser":
		s.handleIdentityGetUser(w, r, req)
	case "identity_adminCount":
		s.handleIdentityAdminCount(w, r, req)
	case "identity_adminAddress":
		s.handleIdentityAdminAddress(w, r, req)
	case "identity_storeOwnerCount":
		s.handleIdentityStoreOwnerCount(w, r, req)
	case "identity_storeOwnerAddress":
		s.handleIdentityStoreOwnerAddress(w, r, req)
	case "catalog_createStore":
		s.handleCatalogCreateStore(w, r, req)
	case "catalog_addProduct":
		s.handleCatalogAddProduct(w, r, req)
	case "catalog_getStore":
		s.handleCatalogGetStore(w, r, req)
	case "catalog_getProduct":
		s.handleCatalogGetProduct(w, r, req)
	case "catalog_productsOfStore":
		s.handleCatalogProductsOfStore(w, r, req)
	case "catalog_storesOfOwner":
		s.handleCatalogStoresOfOwner(w, r, req)
	case "catalog_storesCount":
		s.handleCatalogStoresCount(w, r, req)
	case "catalog_productsCount":
		s.handleCatalogProductsCount(w, r, req)
	case "catalog_isActiveStore":
		s.handleCatalogIsActiveStore(w, r, req)
	case "catalog_pause":
		s.handleCatalogPause(w, r, req)
	case "catalog_unpause":
		s.handleCatalogUnpause(w, r, req)
	case "escrow_buy":
		s.handleEscrowBuy(w, r, req)
	case "escrow_release":
		s.handleEscrowRelease(w, r, req)
	case "escrow_refund":
		s.handleEscrowRefund(w, r, req)
	case "escrow_getInfo":
		s.handleEscrowGetInfo(w, r, req)
	case "escrow_getCounts":
		s.handleEscrowGetCounts(w, r, req)
	case "escrow_pause":
		s.handleEscrowPause(w, r, req)
	case "escrow_unpause":
		s.handleEscrowUnpause(w, r, req)
	case "escrow_allowWithdrawal":
		s.handleEscrowAllowWithdrawal(w, r, req)
	case "escrow_buyerWithdraw":
		s.handleEscrowBuyerWithdraw(w, r, req)
	case "market_getBalance":
		s.handleGetBalance(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

// mutatingMethods require the bearer token when one is configured.
var mutatingMethods = map[string]bool{
	"identity_registerAdmin":      true,
	"identity_registerStoreOwner": true,
	"catalog_createStore":         true,
	"catalog_addProduct":          true,
	"catalog_pause":               true,
	"catalog_unpause":             true,
	"escrow_buy":                  true,
	"escrow_release":              true,
	"escrow_refund":               true,
	"escrow_pause":                true,
	"escrow_unpause":              true,
	"escrow_allowWithdrawal":      true,
	"escrow_buyerWithdraw":        true,
}

func moduleOf(method string) string {
	if idx := strings.IndexByte(method, '_'); idx > 0 {
		return method[:idx]
	}
	return "unknown"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) clientAddress(r *http.Request) string {
	if s.trustProxy {
		if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
			parts := strings.Split(fwd, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) allowClient(client string) bool {
	if client == "" {
		client = "unknown"
	}
	s.mu.Lock()
	limiter, ok := s.limiters[client]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSec), requestBurst)
		s.limiters[client] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

// --- shared parameter helpers ---

func singleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddressField(value, field string) (types.Address, error) {
	addr, err := types.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return types.Address{}, fmt.Errorf("%s: %v", field, err)
	}
	return addr, nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

type balanceParams struct {
	Address string `json:"address"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddressField(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.market.Balance(addr)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, BalanceResult{Address: addr.Hex(), Balance: balance.String()})
}
