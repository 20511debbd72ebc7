package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-cart/internal/betcart/oddsapi"
	"github.com/radieske/sports-bet-cart/internal/betcart/subscription"
	"github.com/radieske/sports-bet-cart/internal/odds-simulator/book"
	"github.com/radieske/sports-bet-cart/internal/odds-simulator/repo"
	"github.com/radieske/sports-bet-cart/internal/odds-simulator/ws"
	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type capture struct {
	mu     sync.Mutex
	quotes []events.OddsQuote
}

func (c *capture) Publish(_ context.Context, q events.OddsQuote) error {
	c.mu.Lock()
	c.quotes = append(c.quotes, q)
	c.mu.Unlock()
	return nil
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.quotes)
}

func newSim(t *testing.T, reject float64) (*Server, *httptest.Server, *capture, *ws.Hub) {
	t.Helper()
	hub := ws.NewHub(nil, zap.NewNop(), ws.Hooks{})
	c := &capture{}
	s := &Server{
		Book:       book.New(book.DefaultCatalog(time.Now())),
		Store:      repo.NewMemory(),
		Publishers: []Publisher{hub, c},
		WS:         hub.HandleWS,
		Log:        zap.NewNop(),
		RejectRate: reject,
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return s, srv, c, hub
}

// O cliente do carrinho conversa com o simulador pelo contrato REST real.
func TestClientAgainstSimulator(t *testing.T) {
	_, srv, published, _ := newSim(t, 0)
	client := oddsapi.New(srv.URL, 2*time.Second)
	ctx := context.Background()

	quotes, err := client.GetOdds(ctx, "55")
	if err != nil {
		t.Fatal(err)
	}
	if len(quotes) != 3 {
		t.Fatalf("quotes = %+v", quotes)
	}

	if _, err := client.GetOdds(ctx, "nope"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("unknown event err = %v", err)
	}

	rec, err := client.CreateBet(ctx, api.CreateBetRequest{EventID: "55", MarketCode: book.OutcomeHome, Stake: d("10"), Odds: d("1.90"), Prediction: "Flamengo"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.BetID == "" || rec.Status != repo.StatusAccepted {
		t.Fatalf("rec = %+v", rec)
	}

	changed, err := client.RegisterBet(ctx, api.RegisterBetRequest{EventID: "55", OutcomeCode: book.OutcomeHome, Amount: d("10"), OddsUsed: d("1.90")})
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) == 0 || published.count() != len(changed) {
		t.Fatalf("changed = %d published = %d", len(changed), published.count())
	}

	vol, err := client.GetVolume(ctx, "55")
	if err != nil {
		t.Fatal(err)
	}
	var staked decimal.Decimal
	for _, v := range vol {
		staked = staked.Add(v.TotalStaked)
	}
	if !staked.Equal(d("10")) {
		t.Fatalf("volume = %+v", vol)
	}

	st, err := client.GetStatistics(ctx, "55")
	if err != nil || st.TotalBets != 1 {
		t.Fatalf("stats = %+v err = %v", st, err)
	}

	trends, err := client.GetTrends(ctx, "", api.TrendFilter{Limit: 2})
	if err != nil || len(trends) != 2 {
		t.Fatalf("trends = %+v err = %v", trends, err)
	}

	if _, err := client.CreateBet(ctx, api.CreateBetRequest{EventID: "55", MarketCode: "LOCAL"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("invalid bet err = %v", err)
	}
}

func TestRejectRateSurfacesAsNetworkError(t *testing.T) {
	_, srv, _, _ := newSim(t, 1)
	client := oddsapi.New(srv.URL, 2*time.Second)

	_, err := client.CreateBet(context.Background(), api.CreateBetRequest{EventID: "55", MarketCode: "LOCAL", Stake: d("1"), Odds: d("1.9")})
	if !apperr.Is(err, apperr.KindNetwork) {
		t.Fatalf("err = %v, want network", err)
	}
}

func TestGetBet(t *testing.T) {
	_, srv, _, _ := newSim(t, 0)
	client := oddsapi.New(srv.URL, 2*time.Second)
	rec, err := client.CreateBet(context.Background(), api.CreateBetRequest{EventID: "56", MarketCode: "EMPATE", Stake: d("5"), Odds: d("3.10")})
	if err != nil {
		t.Fatal(err)
	}

	res, err := http.Get(srv.URL + "/v1/bets/" + rec.BetID)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}

	res, err = http.Get(srv.URL + "/v1/bets/not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", res.StatusCode)
	}
}

// Drift publica pelo hub e chega no WSStream do carrinho.
func TestDriftReachesWSStream(t *testing.T) {
	_, srv, _, hub := newSim(t, 0)

	stream := subscription.NewWSStream("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := stream.Dial(ctx, "55")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	for hub.Subscribers("55") == 0 {
		if ctx.Err() != nil {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// suspender um resultado sempre gera uma publicação
	res, err := http.Post(srv.URL+"/v1/events/55/outcomes/LOCAL/suspend", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()

	q, err := conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if q.EventID != "55" || q.OutcomeCode != "LOCAL" || q.Active {
		t.Fatalf("quote = %+v", q)
	}
}

func TestDriftPublishesEveryChange(t *testing.T) {
	s, _, published, _ := newSim(t, 0)
	var reported int
	s.Hooks.OnPublished = func(n int) { reported += n }

	total := 0
	for i := 0; i < 5; i++ {
		total += s.Drift(context.Background(), 5)
	}
	if published.count() != total || reported != total {
		t.Fatalf("drift = %d published = %d hook = %d", total, published.count(), reported)
	}
}

func TestTrendsRejectsBadLimit(t *testing.T) {
	_, srv, _, _ := newSim(t, 0)
	res, err := http.Get(srv.URL + "/v1/trends?limit=abc")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", res.StatusCode)
	}
}
