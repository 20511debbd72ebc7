package httpapi

import (
	"errors"
	"net/http"

	"github.com/radieske/sports-bet-cart/internal/betcart/cart"
	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
)

// statusFor traduz o kind do erro para o status HTTP.
func statusFor(err error) int {
	var perr *cart.PartialSubmissionError
	if errors.As(err, &perr) && perr.Persisted() {
		return http.StatusMultiStatus
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindFeedUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody(err))
}

func errorBody(err error) api.ErrorResponse {
	kind := apperr.KindOf(err)
	var perr *cart.PartialSubmissionError
	if errors.As(err, &perr) && perr.Persisted() {
		kind = apperr.KindPartialSubmission
	}
	return api.ErrorResponse{Error: err.Error(), Kind: string(kind)}
}
