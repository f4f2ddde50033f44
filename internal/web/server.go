// Package web is the HTTP boundary. Its only job is decoding requests,
// calling the engine and mapping typed failures to responses; no business
// rule lives here.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tonex/tonex/internal/auth"
	"github.com/tonex/tonex/internal/domain"
	"github.com/tonex/tonex/internal/services/engine"
	"go.uber.org/zap"
)

// Server exposes the engine over HTTP.
type Server struct {
	addr     string
	engine   *engine.Engine
	verifier *auth.Verifier
	logger   *zap.Logger
}

// NewServer creates the HTTP boundary server.
func NewServer(addr string, eng *engine.Engine, verifier *auth.Verifier, logger *zap.Logger) *Server {
	return &Server{addr: addr, engine: eng, verifier: verifier, logger: logger}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/exchange/rate", s.handleRate)

	r.Group(func(r chi.Router) {
		r.Use(s.verifier.Middleware)
		r.Get("/api/balance", s.handleBalance)
		r.Post("/api/exchange/convert", s.handleConvert)
		r.Post("/api/exchange/deposit", s.handleDeposit)
		r.Post("/api/transfer/send", s.handleTransfer)
		r.Get("/api/history", s.handleHistory)
	})

	return r
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.engine.Rate(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := map[string]interface{}{
		"rate":   snapshot.Value,
		"source": snapshot.Origin,
	}
	if snapshot.Warning != "" {
		resp["warning"] = snapshot.Warning
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, errors.New("no principal in context"))
		return
	}

	balances, err := s.engine.Balances(r.Context(), principal)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"balance": balances})
}

type convertRequest struct {
	FromCurrency string      `json:"fromCurrency"`
	ToCurrency   string      `json:"toCurrency"`
	Amount       json.Number `json:"amount"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, errors.New("no principal in context"))
		return
	}

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(domain.ErrInvalidInput, "malformed request body"))
		return
	}

	from, err := domain.ParseCurrency(req.FromCurrency)
	if err != nil {
		s.writeError(w, errors.Wrap(domain.ErrInvalidInput, err.Error()))
		return
	}
	to, err := domain.ParseCurrency(req.ToCurrency)
	if err != nil {
		s.writeError(w, errors.Wrap(domain.ErrInvalidInput, err.Error()))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.engine.Exchange(r.Context(), principal, from, to, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := map[string]interface{}{
		"message":         "Exchange successful",
		"convertedAmount": result.ConvertedAmount,
		"rate":            result.Rate.Value,
		"newBalance":      result.NewBalance,
	}
	if result.Rate.Warning != "" {
		resp["warning"] = result.Rate.Warning
	}
	writeJSON(w, http.StatusOK, resp)
}

type depositRequest struct {
	Currency string      `json:"currency"`
	Amount   json.Number `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, errors.New("no principal in context"))
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(domain.ErrInvalidInput, "malformed request body"))
		return
	}

	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		s.writeError(w, errors.Wrap(domain.ErrInvalidInput, err.Error()))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.engine.Deposit(r.Context(), principal, currency, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Deposit successful",
		"newBalance": result.NewBalance,
	})
}

type transferRequest struct {
	ToUsername string      `json:"toUsername"`
	Currency   string      `json:"currency"`
	Amount     json.Number `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, errors.New("no principal in context"))
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(domain.ErrInvalidInput, "malformed request body"))
		return
	}

	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		s.writeError(w, errors.Wrap(domain.ErrInvalidInput, err.Error()))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.engine.Transfer(r.Context(), principal, req.ToUsername, currency, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Transfer successful",
		"newBalance": result.NewBalance,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		s.writeError(w, errors.New("no principal in context"))
		return
	}

	var kind domain.EntryKind
	if v := r.URL.Query().Get("type"); v != "" {
		parsed, err := domain.ParseEntryKind(v)
		if err != nil {
			s.writeError(w, errors.Wrap(domain.ErrInvalidInput, err.Error()))
			return
		}
		kind = parsed
	}

	entries, err := s.engine.History(r.Context(), principal, kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func parseAmount(raw json.Number) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, errors.Wrap(domain.ErrInvalidInput, "amount is required")
	}
	amount, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(domain.ErrInvalidInput, "amount must be a number")
	}
	return amount, nil
}

// writeError maps the failure taxonomy to responses. Storage faults never
// leak raw detail: they are logged and surfaced as a generic failure.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Insufficient balance"})
	case errors.Is(err, domain.ErrRecipientNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Recipient not found"})
	case errors.Is(err, domain.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Account not found"})
	case errors.Is(err, domain.ErrRateUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "Exchange rate temporarily unavailable, retry later"})
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
