package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"w2rchain/core/events"
	"w2rchain/native/amm"
	"w2rchain/native/registry"
	"w2rchain/native/rental"
	"w2rchain/native/staking"
	"w2rchain/native/token"
	"w2rchain/native/vault"
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
)

// Engines bundles the native module engines the server dispatches into.
type Engines struct {
	Token          *token.Engine
	Vault          *vault.Engine
	LenderRegistry *registry.Engine
	RenterRegistry *registry.Engine
	Rental         *rental.Engine
	AMM            *amm.Engine
	Staking        *staking.Engine
}

type Server struct {
	engines   Engines
	events    *events.Ring
	authToken string

	// txMu serializes mutating calls. Engine transitions span several state
	// reads and writes; the state manager's lock only covers each one
	// individually, so without this two writers could both validate against
	// the same pre-transition state.
	txMu sync.Mutex
}

// NewServer builds a JSON-RPC server over the wired engines. Mutating methods
// require the bearer token from W2R_RPC_TOKEN when one is set.
func NewServer(engines Engines, ring *events.Ring) *Server {
	return &Server{
		engines:   engines,
		events:    ring,
		authToken: strings.TrimSpace(os.Getenv("W2R_RPC_TOKEN")),
	}
}

// SetAuthToken overrides the environment-sourced bearer token.
func (s *Server) SetAuthToken(token string) { s.authToken = strings.TrimSpace(token) }

// Router mounts the JSON-RPC endpoint alongside health and metrics.
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

// Start serves the router on addr and blocks.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Router())
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
		return &RPCError{Code: codeUnauthorized, Message: "bearer token required"}
	}
	presented := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid token"}
	}
	return nil
}

// mutating reports whether a method changes state and therefore needs auth.
func mutating(method string) bool {
	switch method {
	case "events_latest":
		return false
	}
	for _, suffix := range []string{
		"_balanceOf", "_totalSupply", "_allowance", "_paused",
		"_reserve", "_approvedContract",
		"_member", "_isWhitelisted",
		"_account", "_config", "_proposals", "_rentals", "_totalRewards",
		"_userBalances", "_contractBalances", "_feesPercent", "_pendingReward",
		"_stakers", "_viewReward", "_multiplier", "_maxLockPeriod", "_earlyUnstakePenalty",
	} {
		if strings.HasSuffix(method, suffix) {
			return false
		}
	}
	return true
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
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

	if mutating(req.Method) {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}

	var (
		result interface{}
		rpcErr *RPCError
	)
	switch {
	case req.Method == "events_latest":
		result, rpcErr = s.handleEventsLatest(req.Params)
	case strings.HasPrefix(req.Method, "token_"):
		result, rpcErr = s.handleToken(req.Method, req.Params)
	case strings.HasPrefix(req.Method, "vault_"):
		result, rpcErr = s.handleVault(req.Method, req.Params)
	case strings.HasPrefix(req.Method, "registry_"):
		result, rpcErr = s.handleRegistry(req.Method, req.Params)
	case strings.HasPrefix(req.Method, "rental_"):
		result, rpcErr = s.handleRental(req.Method, req.Params)
	case strings.HasPrefix(req.Method, "amm_"):
		result, rpcErr = s.handleAMM(req.Method, req.Params)
	case strings.HasPrefix(req.Method, "staking_"):
		result, rpcErr = s.handleStaking(req.Method, req.Params)
	default:
		rpcErr = &RPCError{Code: codeMethodNotFound, Message: "method not found", Data: req.Method}
	}
	if rpcErr != nil {
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

func engineError(err error) *RPCError {
	return &RPCError{Code: codeServerError, Message: err.Error()}
}

func invalidParams(message string) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message}
}

func decodeParam(params []json.RawMessage, i int, out any) *RPCError {
	if i >= len(params) {
		return invalidParams(fmt.Sprintf("missing parameter %d", i))
	}
	if err := json.Unmarshal(params[i], out); err != nil {
		return invalidParams(fmt.Sprintf("parameter %d: %v", i, err))
	}
	return nil
}

func parseAddress(raw string) ([20]byte, *RPCError) {
	var addr [20]byte
	cleaned := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(cleaned)
	if err != nil || len(decoded) != 20 {
		return addr, invalidParams("invalid address: " + raw)
	}
	copy(addr[:], decoded)
	return addr, nil
}

func addressParam(params []json.RawMessage, i int) ([20]byte, *RPCError) {
	var raw string
	if rpcErr := decodeParam(params, i, &raw); rpcErr != nil {
		return [20]byte{}, rpcErr
	}
	return parseAddress(raw)
}

func (s *Server) handleEventsLatest(params []json.RawMessage) (interface{}, *RPCError) {
	if s.events == nil {
		return []interface{}{}, nil
	}
	limit := 50
	if len(params) > 0 {
		if rpcErr := decodeParam(params, 0, &limit); rpcErr != nil {
			return nil, rpcErr
		}
	}
	return s.events.Latest(limit), nil
}
