package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/dto"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/gateway"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/intent"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/webhook"
)

// UserHeader carrega o usuário autenticado pelo gateway de borda.
const UserHeader = "X-User-ID"

type Depositor interface {
	RequestDeposit(ctx context.Context, req intent.Request) (intent.Credentials, error)
}

type WebhookHandler interface {
	HandleWebhook(ctx context.Context, raw []byte, signature string) (webhook.Result, error)
}

type WalletReader interface {
	GetWalletByUserID(ctx context.Context, userID string) (domain.Wallet, error)
}

type Options struct {
	MaxWebhookBytes int64
	MaxDepositBytes int64
	AllowedOrigins  []string
}

// Server expõe a API pública de depósitos e o endpoint de webhook do gateway.
type Server struct {
	log      *zap.Logger
	deposits Depositor
	webhooks WebhookHandler
	wallets  WalletReader
	opts     Options
}

func NewServer(log *zap.Logger, d Depositor, wh WebhookHandler, wr WalletReader, opts Options) *Server {
	if opts.MaxWebhookBytes <= 0 {
		opts.MaxWebhookBytes = 64 << 10
	}
	if opts.MaxDepositBytes <= 0 {
		opts.MaxDepositBytes = 4 << 10
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{log: log, deposits: d, webhooks: wh, wallets: wr, opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Client-Info", "Apikey", gateway.SignatureHeader, UserHeader},
		MaxAge:         300,
	}))

	r.Post("/v1/deposits/intent", s.requestDeposit)
	r.Post("/v1/webhooks/stripe", s.stripeWebhook)
	r.Get("/v1/wallet", s.getWallet)
	return r
}

// requestDeposit emite o payment intent de um depósito.
func (s *Server) requestDeposit(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var req dto.DepositIntentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxDepositBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	minor, cur, err := domain.ToMinor(req.Amount, req.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	creds, err := s.deposits.RequestDeposit(r.Context(), intent.Request{
		UserID:         userID,
		AmountMinor:    minor,
		Currency:       cur,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		status := depositStatus(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("request deposit", zap.String("userId", userID), zap.Error(err))
		}
		writeError(w, status, publicMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, dto.DepositIntentResponse{
		ClientSecret:    creds.ClientSecret,
		PaymentIntentID: creds.PaymentIntentID,
		PublishableKey:  creds.PublishableKey,
	})
}

// stripeWebhook repassa o corpo bruto, sem parsing, ao processador.
func (s *Server) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	sig := r.Header.Get(gateway.SignatureHeader)
	if sig == "" {
		writeError(w, http.StatusBadRequest, "missing "+gateway.SignatureHeader+" header")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if _, err := s.webhooks.HandleWebhook(r.Context(), body, sig); err != nil {
		writeError(w, webhookStatus(err), publicMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, dto.WebhookAck{Received: true})
}

// getWallet devolve a carteira do usuário autenticado.
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	wl, err := s.wallets.GetWalletByUserID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "wallet not found")
			return
		}
		s.log.Error("get wallet", zap.String("userId", userID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{
		UserID:              wl.UserID,
		WalletID:            wl.ID,
		Currency:            wl.Currency,
		Balance:             domain.DisplayAmount(wl.BalanceMinor, wl.Currency),
		BalanceMinor:        wl.BalanceMinor,
		PendingMinor:        wl.PendingMinor,
		TotalEarnedMinor:    wl.TotalEarnedMinor,
		TotalWithdrawnMinor: wl.TotalWithdrawnMinor,
	})
}

func depositStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusInternalServerError
	}
	return http.StatusServiceUnavailable
}

// webhookStatus: só 5xx faz o gateway reenviar.
func webhookStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrAuthentication), errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// publicMessage não vaza detalhes de infraestrutura para o cliente.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrDependency):
		return "temporarily unavailable"
	case errors.Is(err, domain.ErrConfiguration):
		return "service misconfigured"
	case errors.Is(err, domain.ErrAuthentication):
		return "webhook signature verification failed"
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
