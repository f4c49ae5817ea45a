package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RyanSea/AlignmentVault/internal/logger"
	"github.com/RyanSea/AlignmentVault/internal/metrics"
	"github.com/RyanSea/AlignmentVault/internal/oracle"
	"github.com/RyanSea/AlignmentVault/internal/state"
	"github.com/RyanSea/AlignmentVault/internal/types"
	"github.com/RyanSea/AlignmentVault/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the operator surface: read-only vault views plus gated
// alignment and claim triggers.
type WebServer struct {
	router *mux.Router
	port   string
	apiKey string
	vault  *vault.Vault
}

// NewWebServer creates a new web server instance.
func NewWebServer(port, apiKey string, v *vault.Vault) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		apiKey: apiKey,
		vault:  v,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/floor", ws.handleGetFloor).Methods("GET")
	api.HandleFunc("/inventory", ws.handleGetInventory).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetSummary).Methods("GET")
	api.HandleFunc("/receipts", ws.handleGetReceipts).Methods("GET")

	ops := api.NewRoute().Subrouter()
	ops.Use(ws.operatorMiddleware)
	ops.HandleFunc("/inventory/check", ws.handleCheckInventory).Methods("POST")
	ops.HandleFunc("/align/nfts", ws.handleAlignNfts).Methods("POST")
	ops.HandleFunc("/align/tokens", ws.handleAlignTokens).Methods("POST")
	ops.HandleFunc("/align/max", ws.handleAlignMax).Methods("POST")
	ops.HandleFunc("/yield/claim", ws.handleClaimYield).Methods("POST")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
	}
	if err := state.TestDBConnection(); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
	}
	ws.writeJSON(w, http.StatusOK, status)
}

func (ws *WebServer) handleGetFloor(w http.ResponseWriter, r *http.Request) {
	floor, err := ws.vault.EstimateFloor(r.Context())
	if err != nil {
		ws.writeError(w, "floor", err)
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]string{"floor_price": floor.String()})
}

func (ws *WebServer) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"size":  ws.vault.InventorySize(),
		"items": ws.vault.InventoryItems(),
	})
}

func (ws *WebServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := ws.vault.Summary(r.Context())
	if err != nil {
		ws.writeError(w, "summary", err)
		return
	}
	ws.writeJSON(w, http.StatusOK, summary)
}

func (ws *WebServer) handleGetReceipts(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	alignments, err := state.RecentAlignments(limit)
	if err != nil {
		ws.writeError(w, "receipts", err)
		return
	}
	yields, err := state.RecentYields(limit)
	if err != nil {
		ws.writeError(w, "receipts", err)
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"alignments": alignments,
		"yields":     yields,
	})
}

type checkInventoryRequest struct {
	ItemIDs []types.ItemID `json:"item_ids"`
}

func (ws *WebServer) handleCheckInventory(w http.ResponseWriter, r *http.Request) {
	var req checkInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := ws.vault.CheckInventory(r.Context(), req.ItemIDs); err != nil {
		ws.writeError(w, "check_inventory", err)
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"inventory_size": ws.vault.InventorySize(),
	})
}

type alignNftsRequest struct {
	ItemIDs []types.ItemID `json:"item_ids"`
}

func (ws *WebServer) handleAlignNfts(w http.ResponseWriter, r *http.Request) {
	var req alignNftsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := ws.vault.AlignNfts(r.Context(), req.ItemIDs); err != nil {
		ws.writeError(w, "align_nfts", err)
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]string{"status": "aligned"})
}

type alignTokensRequest struct {
	CurrencyAmount string `json:"currency_amount"`
}

func (ws *WebServer) handleAlignTokens(w http.ResponseWriter, r *http.Request) {
	var req alignTokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	amount, ok := sdkmath.NewIntFromString(req.CurrencyAmount)
	if !ok {
		ws.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid currency_amount"})
		return
	}
	if err := ws.vault.AlignTokens(r.Context(), amount); err != nil {
		ws.writeError(w, "align_tokens", err)
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]string{"status": "aligned"})
}

func (ws *WebServer) handleAlignMax(w http.ResponseWriter, r *http.Request) {
	if err := ws.vault.AlignMaxLiquidity(r.Context()); err != nil {
		ws.writeError(w, "align_max", err)
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]string{"status": "aligned"})
}

type claimYieldRequest struct {
	// Recipient is optional; omitted or empty means compound everything.
	Recipient string `json:"recipient,omitempty"`
}

func (ws *WebServer) handleClaimYield(w http.ResponseWriter, r *http.Request) {
	var req claimYieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	recipient := common.Address{}
	if req.Recipient != "" {
		if !common.IsHexAddress(req.Recipient) {
			ws.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid recipient address"})
			return
		}
		recipient = common.HexToAddress(req.Recipient)
	}

	if err := ws.vault.ClaimYield(r.Context(), recipient); err != nil {
		ws.writeError(w, "claim_yield", err)
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]string{"status": "claimed"})
}

// operatorMiddleware gates mutating endpoints behind the operator API key.
func (ws *WebServer) operatorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ws.apiKey == "" || r.Header.Get("X-Operator-Key") != ws.apiKey {
			ws.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "operator key required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Operator-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps vault error kinds onto HTTP statuses.
func (ws *WebServer) writeError(w http.ResponseWriter, operation string, err error) {
	metrics.OperationErrorsTotal.WithLabelValues(operation).Inc()

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vault.ErrNotInitialized), errors.Is(err, vault.ErrAlreadyInitialized),
		errors.Is(err, vault.ErrInitializersDisabled):
		status = http.StatusConflict
	case errors.Is(err, vault.ErrReentrancy):
		status = http.StatusConflict
	case errors.Is(err, vault.ErrInvalidVaultID), errors.Is(err, vault.ErrUnwantedNFT),
		errors.Is(err, vault.ErrUntrackedItem):
		status = http.StatusBadRequest
	case errors.Is(err, vault.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, vault.ErrAlignedAsset):
		status = http.StatusForbidden
	case errors.Is(err, oracle.ErrNoNFTXVault):
		status = http.StatusServiceUnavailable
	}

	webLogger.Error().Err(err).Str("operation", operation).Msg("Operation failed")
	ws.writeJSON(w, status, map[string]string{"error": err.Error()})
}
