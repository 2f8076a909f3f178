package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"taxledger/core"
	"taxledger/core/journal"
	"taxledger/core/types"
	"taxledger/native/token"
	"taxledger/observability"
	"taxledger/observability/logging"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-ID"
	metricsModule   = "token"
)

// Ledger is the node surface served over JSON-RPC.
type Ledger interface {
	Apply(ctx context.Context, op *types.Operation) (*core.Result, error)
	Initialized() bool
	Config() (*token.Config, error)
	Balance(account [20]byte) (*big.Int, error)
	Allowance(owner, spender [20]byte) (*big.Int, error)
	IsTaxExempt(account [20]byte) (bool, error)
	QuoteTax(from, to [20]byte, amount *big.Int) (*big.Int, error)
	HasRole(role string, account [20]byte) bool
	RoleMembers(role string) ([][20]byte, error)
	Events(ctx context.Context, after uint64, limit int, eventType string) ([]journal.EventRecord, error)
	Receipt(ctx context.Context, hash string) (*journal.Receipt, error)
}

// Options configures a Server.
type Options struct {
	// AuthToken gates token_submit. Submissions are refused while it is empty.
	AuthToken string
	RateLimit RateLimit
	Logger    *slog.Logger
}

type Server struct {
	ledger    Ledger
	authToken string
	limiter   *rateLimiter
	logger    *slog.Logger
	methods   map[string]method
}

// method handles one JSON-RPC method. auth marks methods behind the bearer
// token.
type method struct {
	auth    bool
	handler func(ctx context.Context, req *RPCRequest) (interface{}, *failure)
}

type failure struct {
	status int
	err    *RPCError
}

func fail(status, code int, message string, data interface{}) *failure {
	return &failure{status: status, err: &RPCError{Code: code, Message: message, Data: data}}
}

func failWith(err error) *failure {
	status, rpcErr := ledgerError(err)
	return &failure{status: status, err: rpcErr}
}

func NewServer(ledger Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ledger:    ledger,
		authToken: strings.TrimSpace(opts.AuthToken),
		limiter:   newRateLimiter(opts.RateLimit),
		logger:    logger.With("component", "rpc"),
	}
	s.methods = map[string]method{
		"token_submit":      {auth: true, handler: s.handleSubmit},
		"token_balance":     {handler: s.handleBalance},
		"token_allowance":   {handler: s.handleAllowance},
		"token_config":      {handler: s.handleConfig},
		"token_isTaxExempt": {handler: s.handleIsTaxExempt},
		"token_quoteTax":    {handler: s.handleQuoteTax},
		"token_hasRole":     {handler: s.handleHasRole},
		"token_roleMembers": {handler: s.handleRoleMembers},
		"token_events":      {handler: s.handleEvents},
		"token_receipt":     {handler: s.handleReceipt},
	}
	return s
}

// Handler returns the HTTP routes: POST / and POST /rpc for JSON-RPC and
// GET /healthz for liveness.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/", s.handle)
	r.Post("/rpc", s.handle)
	return r
}

// Start serves the routes on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go s.limiter.evictLoop(ctx, evictInterval)
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting JSON-RPC server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type requestIDKey struct{}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
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

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func writeError(w http.ResponseWriter, status int, id interface{}, rpcErr *RPCError) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, &RPCError{Code: codeInvalidRequest, Message: message})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeInvalidRequest, Message: "request body required"})
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()})
		return
	}

	result, failed := s.serve(r, req)
	code := 0
	if failed != nil {
		code = failed.err.Code
		writeError(w, failed.status, req.ID, failed.err)
	} else {
		writeResult(w, req.ID, result)
	}
	observability.ModuleMetrics().Observe(metricsModule, s.metricMethod(req.Method), code, time.Since(start))
	s.logger.Debug("rpc request",
		"method", req.Method,
		"request_id", requestIDFrom(r.Context()),
		"outcome", outcome(code),
	)
}

// metricMethod bounds the method label to the registered methods.
func (s *Server) metricMethod(name string) string {
	if _, ok := s.methods[name]; ok {
		return name
	}
	return "unknown"
}

func outcome(code int) string {
	if code == 0 {
		return "success"
	}
	return fmt.Sprintf("error_%d", code)
}

func (s *Server) serve(r *http.Request, req *RPCRequest) (interface{}, *failure) {
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		return nil, fail(http.StatusBadRequest, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
	}
	if req.Method == "" {
		return nil, fail(http.StatusBadRequest, codeInvalidRequest, "method required", nil)
	}
	m, ok := s.methods[req.Method]
	if !ok {
		return nil, fail(http.StatusNotFound, codeMethodNotFound, "method not found", req.Method)
	}
	if !s.limiter.allow(s.limiter.clientID(r)) {
		observability.ModuleMetrics().RecordThrottle(metricsModule, "rate_limit")
		return nil, fail(http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded", nil)
	}
	if m.auth {
		if authErr := s.requireAuth(r); authErr != nil {
			return nil, &failure{status: http.StatusUnauthorized, err: authErr}
		}
	}
	return m.handler(r.Context(), req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	presented := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.authToken)) != 1 {
		s.logger.Warn("rejected RPC credentials",
			"request_id", requestIDFrom(r.Context()),
			logging.MaskField("token", presented),
		)
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}
