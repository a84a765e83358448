package httppresentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	appcheckout "github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	maxBodyBytes         = 1 << 20

	codeBadRequest = "bad_request"
	codeNotFound   = "not_found"
	codeConflict   = "conflict"
	codeGone       = "session_closed"
	codeInternal   = "internal_error"
)

var errEmptyBody = errors.New("request body is empty")

type Handler struct {
	checkout *appcheckout.Service
	ledger   domain.LocalOrderLedger
	log      observability.Logger
	limiter  *clientLimiter

	reqCounter   observability.Counter   // http_requests_total{method,route,status}
	durHistogram observability.Histogram // http_request_duration_seconds{method,route,status}
}

type Option func(*Handler)

// WithRateLimit allows each client perMinute checkout requests on average, with bursts
// of up to burst requests. Without it requests are not limited.
func WithRateLimit(perMinute, burst int) Option {
	return func(h *Handler) {
		if perMinute <= 0 || burst <= 0 {
			return
		}
		h.limiter = newClientLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
}

func NewHandler(svc *appcheckout.Service, ledger domain.LocalOrderLedger, tel observability.Observability, opts ...Option) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	h := &Handler{
		checkout:     svc,
		ledger:       ledger,
		log:          tel.Logger().With(observability.F("component", componentHTTPHandler)),
		reqCounter:   metrics.Counter(observability.MHTTPRequests),
		durHistogram: metrics.Histogram(observability.MHTTPRequestDuration),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router wires the checkout API.
// Middleware order: Recoverer → Trace → Request logger → Metrics → Access log → Handler.
// Checkout routes are rate limited per client when configured.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.withTrace)
	r.Use(RequestLogger(h.log, func(r *http.Request) string { return r.Header.Get(headerRequestID) }))
	r.Use(h.withHTTPMetrics)
	r.Use(h.withAccessLog)

	r.Get("/health", h.handleHealth)

	r.Route("/checkout", func(r chi.Router) {
		r.Use(h.withRateLimit)
		r.Post("/sessions", h.handleStart)
		r.Get("/sessions/{id}", h.handleGet)
		r.Delete("/sessions/{id}", h.handleAbandon)
		r.Put("/sessions/{id}/method", h.handleSelectMethod)
		r.Put("/sessions/{id}/input", h.handleSetMethodInput)
		r.Post("/sessions/{id}/submit", h.handleSubmit)
		r.Post("/sessions/{id}/reset", h.handleReset)
		r.Get("/orders/simulated", h.handleListSimulatedOrders)
	})

	return r
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	// an empty body opens checkout with the default amount
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error(), nil)
		return
	}

	s, err := h.checkout.Start(r.Context(), appcheckout.StartInput{
		DisplayAmount: req.Amount,
		MinorUnits:    req.AmountMinor,
		Currency:      req.Currency,
		ProductID:     req.ProductID,
		ProductName:   req.ProductName,
	})
	if err != nil {
		h.writeDomainError(w, r, err, nil)
		return
	}
	w.Header().Set("Location", "/checkout/sessions/"+s.ID)
	writeJSON(w, http.StatusCreated, toSession(s))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toSession(s))
}

func (h *Handler) handleSelectMethod(w http.ResponseWriter, r *http.Request) {
	var req selectMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error(), nil)
		return
	}
	s, err := h.checkout.SelectMethod(r.Context(), chi.URLParam(r, "id"), domain.MethodKind(req.Method))
	h.respond(w, r, s, err)
}

func (h *Handler) handleSetMethodInput(w http.ResponseWriter, r *http.Request) {
	var req methodInputRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error(), nil)
		return
	}
	s, err := h.checkout.SetMethodInput(r.Context(), chi.URLParam(r, "id"), domain.MethodInput{
		CardHandle: domain.CardHandle(req.CardHandle),
		UPIPayerID: req.UPIID,
	})
	h.respond(w, r, s, err)
}

// handleSubmit blocks until the submission reaches a terminal phase. Declines and network
// failures are reported in the session body with 200; the status code only reflects
// whether a submission ran.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.Submit(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, s, err)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.Reset(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, s, err)
}

func (h *Handler) handleAbandon(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Abandon(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListSimulatedOrders(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeJSON(w, http.StatusOK, []simulatedOrderResponse{})
		return
	}
	orders, err := h.ledger.List(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err, nil)
		return
	}
	out := make([]simulatedOrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toSimulatedOrder(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, s *domain.Session, err error) {
	if err != nil {
		h.writeDomainError(w, r, err, s)
		return
	}
	writeJSON(w, http.StatusOK, toSession(s))
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return validateRequest(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string, s *domain.Session) {
	writeJSON(w, status, errorResponse{
		Error:   failureResponse{Kind: code, Message: message},
		Session: toSession(s),
	})
}

// writeDomainError maps checkout errors onto status codes. Failures carry a buyer-facing
// message; other errors are reported by sentinel.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error, s *domain.Session) {
	var f *domain.Failure
	if errors.As(err, &f) {
		status := http.StatusBadRequest
		if f.Kind == domain.KindValidation {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, string(f.Kind), f.Message, s)
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error(), nil)
	case errors.Is(err, appcheckout.ErrSessionClosed):
		writeError(w, http.StatusGone, codeGone, err.Error(), nil)
	case errors.Is(err, domain.ErrSubmitInFlight),
		errors.Is(err, domain.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, codeConflict, err.Error(), s)
	case errors.Is(err, domain.ErrUnknownMethod),
		errors.Is(err, domain.ErrMethodRequired),
		errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error(), s)
	default:
		logctx.FromOr(r.Context(), h.log).Error("http_handler_error",
			observability.F("route", routePattern(r)),
			observability.Err(err),
		)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error", nil)
	}
}
