package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-cart/internal/betcart/cart"
	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
)

type updateStakeRequest struct {
	Stake decimal.Decimal `json:"stake"`
}

// submitResponse é o objeto de resultado: sucesso ou resumo da falha parcial.
type submitResponse struct {
	Result cart.SubmitResult  `json:"result"`
	Error  *api.ErrorResponse `json:"error,omitempty"`
	Cart   cart.Snapshot      `json:"cart"`
}

func (a *API) getCart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Session.Cart.Snapshot())
}

func (a *API) clearCart(w http.ResponseWriter, _ *http.Request) {
	if err := a.Session.Cart.Clear(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) addLine(w http.ResponseWriter, r *http.Request) {
	var sel cart.Selection
	if err := decodeJSON(w, r, &sel); err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "bad json", Kind: string(apperr.KindValidation)})
		return
	}

	line, err := a.Session.Cart.AddLine(sel)
	if err != nil {
		// linha duplicada: devolve a existente, sem sobrescrever
		if apperr.Is(err, apperr.KindValidation) && line.ID != "" {
			writeJSON(w, http.StatusConflict, map[string]any{"error": errorBody(err), "line": line})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (a *API) updateStake(w http.ResponseWriter, r *http.Request) {
	var req updateStakeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "bad json", Kind: string(apperr.KindValidation)})
		return
	}
	line, err := a.Session.Cart.UpdateStake(chi.URLParam(r, "id"), req.Stake)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (a *API) removeLine(w http.ResponseWriter, r *http.Request) {
	if err := a.Session.Cart.RemoveLine(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) submit(w http.ResponseWriter, r *http.Request) {
	res, err := a.Session.Cart.Submit(r.Context())
	if err != nil && res.StartedAt.IsZero() {
		// rejeitado antes de começar (vazio, já em andamento)
		writeError(w, err)
		return
	}

	out := submitResponse{Result: res, Cart: a.Session.Cart.Snapshot()}
	status := http.StatusOK
	if err != nil {
		body := errorBody(err)
		out.Error = &body
		status = statusFor(err)
	}
	writeJSON(w, status, out)
}

func (a *API) lastResult(w http.ResponseWriter, _ *http.Request) {
	res, ok := a.Session.Cart.LastResult()
	if !ok {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "no submission yet", Kind: string(apperr.KindNotFound)})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) notices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Session.Notices())
}
