package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/customer"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/quote"
)

// statusClientClosedRequest is the nginx convention for a request the client
// abandoned.
const statusClientClosedRequest = 499

// mapQuoteError converts domain errors to an HTTP status and message.
func mapQuoteError(err error) (int, string) {
	var (
		iqErr  *quote.InvalidQuantityError
		pnfErr *quote.ProductNotFoundError
	)
	switch {
	case errors.Is(err, quote.ErrEmptyItems):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, customer.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &iqErr):
		return http.StatusUnprocessableEntity, iqErr.Error()
	case errors.As(err, &pnfErr):
		return http.StatusUnprocessableEntity, pnfErr.Error()
	case isCouponRejection(err), errors.Is(err, pricing.ErrInvalidInput):
		return http.StatusUnprocessableEntity, err.Error()
	case isClientGone(err):
		return statusClientClosedRequest, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// mapCouponError converts coupon lookup errors. An unknown code is a 404 here,
// unlike in a quote where it makes the request unprocessable.
func mapCouponError(err error) (int, string) {
	switch {
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return http.StatusNotFound, err.Error()
	case isCouponRejection(err):
		return http.StatusUnprocessableEntity, err.Error()
	case isClientGone(err):
		return statusClientClosedRequest, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func isCouponRejection(err error) bool {
	return errors.Is(err, coupon.ErrInvalidCoupon) ||
		errors.Is(err, coupon.ErrCouponExpired) ||
		errors.Is(err, coupon.ErrCouponUsageLimitReached)
}
