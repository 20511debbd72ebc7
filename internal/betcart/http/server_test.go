package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/betcart/cart"
	"github.com/radieske/sports-bet-cart/internal/betcart/session"
	"github.com/radieske/sports-bet-cart/internal/betcart/subscription"
	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type backend struct {
	mu        sync.Mutex
	failBetAt int
	bets      int
	down      bool
}

func (b *backend) GetOdds(_ context.Context, eventID string) ([]events.OddsQuote, error) {
	if b.isDown() {
		return nil, apperr.Network("oddsapi.GetOdds", errors.New("connection refused"))
	}
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	return []events.OddsQuote{
		{EventID: eventID, OutcomeCode: "LOCAL", CurrentValue: d("1.90"), PreviousValue: d("1.80"), LastUpdated: at, Active: true},
		{EventID: eventID, OutcomeCode: "VISITANTE", CurrentValue: d("4.00"), PreviousValue: d("4.00"), LastUpdated: at, Active: true},
	}, nil
}

func (b *backend) GetTrends(context.Context, string, api.TrendFilter) ([]api.OddsTrend, error) {
	return nil, nil
}

func (b *backend) GetVolume(context.Context, string) ([]api.VolumeRecord, error) {
	if b.isDown() {
		return nil, apperr.Network("oddsapi.GetVolume", errors.New("connection refused"))
	}
	return []api.VolumeRecord{{OutcomeCode: "LOCAL", TotalStaked: d("100"), BetCount: 3}}, nil
}

func (b *backend) GetStatistics(context.Context, string) (api.OddsStatistics, error) {
	return api.OddsStatistics{TotalBets: 3}, nil
}

func (b *backend) CreateBet(_ context.Context, req api.CreateBetRequest) (api.BetRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bets++
	if b.bets == b.failBetAt {
		return api.BetRecord{}, apperr.Network("oddsapi.CreateBet", errors.New("502 bad gateway"))
	}
	return api.BetRecord{BetID: fmt.Sprintf("bet-%d", b.bets), EventID: req.EventID, Status: "CREATED"}, nil
}

func (b *backend) RegisterBet(context.Context, api.RegisterBetRequest) ([]events.OddsQuote, error) {
	return nil, nil
}

func (b *backend) isDown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.down
}

func newServer(t *testing.T, b *backend) (*httptest.Server, *session.Session) {
	t.Helper()
	s := session.New(b, zap.NewNop(), session.Options{Subscription: subscription.Options{PollInterval: time.Hour}})
	srv := httptest.NewServer((&API{Session: s, Log: zap.NewNop(), CORSOrigins: []string{"http://localhost:3000"}}).Router())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return srv, s
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var raw json.RawMessage
	_ = json.NewDecoder(res.Body).Decode(&raw)
	return res, raw
}

const line55 = `{"event_id":"55","market_code":"LOCAL","market_label":"1X2","prediction_label":"Local","displayed_odds":"1.90","stake":"10"}`

func TestCartLifecycle(t *testing.T) {
	srv, _ := newServer(t, &backend{})

	res, body := do(t, http.MethodPost, srv.URL+"/v1/cart/lines", line55)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d body = %s", res.StatusCode, body)
	}
	var line cart.Line
	if err := json.Unmarshal(body, &line); err != nil {
		t.Fatal(err)
	}
	if !line.PotentialPayout.Equal(d("19")) {
		t.Fatalf("payout = %s", line.PotentialPayout)
	}

	res, body = do(t, http.MethodPost, srv.URL+"/v1/cart/lines", line55)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d body = %s", res.StatusCode, body)
	}

	res, _ = do(t, http.MethodPost, srv.URL+"/v1/cart/lines", `{"event_id":"55","market_code":"EMPATE","displayed_odds":"3","stake":"0"}`)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero stake status = %d", res.StatusCode)
	}

	res, body = do(t, http.MethodPatch, srv.URL+"/v1/cart/lines/"+line.ID, `{"stake":"20"}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d body = %s", res.StatusCode, body)
	}

	res, body = do(t, http.MethodGet, srv.URL+"/v1/cart", "")
	var snap cart.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK || snap.Totals.Count != 1 || !snap.Totals.TotalPotential.Equal(d("38")) {
		t.Fatalf("cart = %s", body)
	}

	res, _ = do(t, http.MethodDelete, srv.URL+"/v1/cart/lines/"+line.ID, "")
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", res.StatusCode)
	}
	res, _ = do(t, http.MethodDelete, srv.URL+"/v1/cart/lines/"+line.ID, "")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d", res.StatusCode)
	}
}

func TestSubmitPartialFailure(t *testing.T) {
	srv, s := newServer(t, &backend{failBetAt: 2})

	res, body := do(t, http.MethodPost, srv.URL+"/v1/cart/submit", "")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty submit status = %d body = %s", res.StatusCode, body)
	}

	do(t, http.MethodPost, srv.URL+"/v1/cart/lines", line55)
	do(t, http.MethodPost, srv.URL+"/v1/cart/lines", `{"event_id":"55","market_code":"VISITANTE","displayed_odds":"4","stake":"5"}`)

	res, body = do(t, http.MethodPost, srv.URL+"/v1/cart/submit", "")
	if res.StatusCode != http.StatusMultiStatus {
		t.Fatalf("submit status = %d body = %s", res.StatusCode, body)
	}
	var out submitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Result.Succeeded != 1 || out.Result.Failed != 1 || out.Result.Remaining != 0 {
		t.Fatalf("result = %+v", out.Result)
	}
	if out.Error == nil || out.Error.Kind != string(apperr.KindPartialSubmission) {
		t.Fatalf("error = %+v", out.Error)
	}
	if out.Cart.State != cart.StateOpen || len(out.Cart.Lines) != 1 || out.Cart.Lines[0].MarketCode != "VISITANTE" {
		t.Fatalf("cart = %+v", out.Cart)
	}
	if _, ok := s.Cart.LastResult(); !ok {
		t.Fatal("last result not recorded")
	}

	res, _ = do(t, http.MethodGet, srv.URL+"/v1/cart/result", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("result status = %d", res.StatusCode)
	}
}

func TestAttachAndFeedViews(t *testing.T) {
	b := &backend{}
	srv, s := newServer(t, b)

	res, body := do(t, http.MethodPost, srv.URL+"/v1/events/55/attach", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("attach status = %d body = %s", res.StatusCode, body)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(s.Feed.Quotes("55")) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	var view struct {
		Data  []events.OddsQuote `json:"data"`
		Stale bool               `json:"stale"`
	}
	_, body = do(t, http.MethodGet, srv.URL+"/v1/events/55/odds", "")
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatal(err)
	}
	if len(view.Data) != 2 || view.Stale {
		t.Fatalf("odds view = %s", body)
	}

	res, body = do(t, http.MethodGet, srv.URL+"/v1/events/55/trends?direction=up", "")
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"UP"`) {
		t.Fatalf("trends = %d %s", res.StatusCode, body)
	}
	res, _ = do(t, http.MethodGet, srv.URL+"/v1/events/55/trends?limit=x", "")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", res.StatusCode)
	}

	res, body = do(t, http.MethodGet, srv.URL+"/v1/events/55/health", "")
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), `"attached":true`) {
		t.Fatalf("health = %s", body)
	}

	// colaborador fora: odds com cache viram aviso, volume sem cache vira 503
	b.mu.Lock()
	b.down = true
	b.mu.Unlock()

	_, body = do(t, http.MethodGet, srv.URL+"/v1/events/55/odds?refresh=true", "")
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatal(err)
	}
	if !view.Stale || len(view.Data) != 2 {
		t.Fatalf("stale odds view = %s", body)
	}
	res, _ = do(t, http.MethodGet, srv.URL+"/v1/events/55/volume", "")
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("volume status = %d", res.StatusCode)
	}

	res, _ = do(t, http.MethodDelete, srv.URL+"/v1/events/55/attach", "")
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("detach status = %d", res.StatusCode)
	}
	res, _ = do(t, http.MethodDelete, srv.URL+"/v1/events/55/attach", "")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("second detach status = %d", res.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newServer(t, &backend{})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/v1/cart/lines", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestSubmitFirstLineFailureIsNotPartial(t *testing.T) {
	srv, _ := newServer(t, &backend{failBetAt: 1})

	do(t, http.MethodPost, srv.URL+"/v1/cart/lines", line55)
	res, body := do(t, http.MethodPost, srv.URL+"/v1/cart/submit", "")
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("submit status = %d body = %s", res.StatusCode, body)
	}
	var out submitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Error == nil || out.Error.Kind != string(apperr.KindNetwork) {
		t.Fatalf("error = %+v", out.Error)
	}
	if out.Result.Succeeded != 0 || len(out.Cart.Lines) != 1 {
		t.Fatalf("result = %+v cart = %+v", out.Result, out.Cart)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          apperr.Validation("op", "x"),
		http.StatusConflict:            apperr.New(apperr.KindInvalidState, "op", "x"),
		http.StatusNotFound:            apperr.New(apperr.KindNotFound, "op", "x"),
		http.StatusServiceUnavailable:  apperr.New(apperr.KindFeedUnavailable, "op", "x"),
		http.StatusBadGateway:          apperr.Network("op", errors.New("x")),
		http.StatusMultiStatus:         &cart.PartialSubmissionError{Succeeded: 1, Failed: 1, Err: errors.New("x")},
		http.StatusInternalServerError: errors.New("x"),
	}
	for want, err := range cases {
		if got := statusFor(err); got != want {
			t.Errorf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
}
