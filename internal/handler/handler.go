// Package handler exposes the quote service over HTTP.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/quote"
	"github.com/xenking/kart-pricing/internal/wire"
)

const defaultMaxBodyBytes = 1 << 20

// Quoter prices quote requests.
type Quoter interface {
	Quote(ctx context.Context, req quote.Request) (*quote.Quote, error)
}

// CouponLookup returns redeemable coupon rules by code.
type CouponLookup interface {
	Lookup(ctx context.Context, code string) (*coupon.Rule, error)
}

// Handler serves the /api routes.
type Handler struct {
	quotes       Quoter
	coupons      CouponLookup
	maxBodyBytes int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(quotes Quoter, coupons CouponLookup) *Handler {
	return &Handler{
		quotes:       quotes,
		coupons:      coupons,
		maxBodyBytes: defaultMaxBodyBytes,
	}
}

// Routes registers the API routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/quote", h.Quote)
	r.Get("/coupons/{code}", h.Coupon)
}

// Quote handles POST /api/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	req, err := wire.DecodeQuoteRequest(body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	q, err := h.quotes.Quote(r.Context(), req)
	if err != nil {
		status, msg := mapQuoteError(err)
		writeError(w, r, status, msg)
		return
	}

	var e jx.Encoder
	wire.EncodeQuote(&e, q)
	writeJSON(w, http.StatusOK, e.Bytes())
}

// Coupon handles GET /api/coupons/{code}.
func (h *Handler) Coupon(w http.ResponseWriter, r *http.Request) {
	rule, err := h.coupons.Lookup(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		status, msg := mapCouponError(err)
		writeError(w, r, status, msg)
		return
	}

	var e jx.Encoder
	wire.EncodeRule(&e, rule)
	writeJSON(w, http.StatusOK, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.String("error", msg))
		msg = http.StatusText(status)
	}
	var e jx.Encoder
	wire.EncodeError(&e, status, msg)
	writeJSON(w, status, e.Bytes())
}

// notFoundJSON and methodNotAllowedJSON replace chi's plain-text defaults.
func notFoundJSON(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "route not found")
}

func methodNotAllowedJSON(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// isClientGone reports whether the client went away mid-request.
func isClientGone(err error) bool {
	return errors.Is(err, context.Canceled)
}
