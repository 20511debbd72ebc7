package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

type fakeSource struct {
	odds   []events.OddsQuote
	trends []api.OddsTrend
	volume []api.VolumeRecord
	stats  api.OddsStatistics
	err    error

	inFlight func() // roda durante o GetOdds, simulando push concorrente
}

func (f *fakeSource) GetOdds(context.Context, string) ([]events.OddsQuote, error) {
	if f.inFlight != nil {
		f.inFlight()
	}
	return f.odds, f.err
}

func (f *fakeSource) GetTrends(context.Context, string, api.TrendFilter) ([]api.OddsTrend, error) {
	return f.trends, f.err
}

func (f *fakeSource) GetVolume(context.Context, string) ([]api.VolumeRecord, error) {
	return f.volume, f.err
}

func (f *fakeSource) GetStatistics(context.Context, string) (api.OddsStatistics, error) {
	return f.stats, f.err
}

var t0 = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func quote(event, outcome, value string, at time.Time) events.OddsQuote {
	return events.OddsQuote{
		EventID:      event,
		OutcomeCode:  outcome,
		CurrentValue: decimal.RequireFromString(value),
		LastUpdated:  at,
		Active:       true,
	}
}

func TestApplyUpdateStaleGuard(t *testing.T) {
	c := New(&fakeSource{}, nil)
	ctx := context.Background()

	if ok, err := c.ApplyUpdate(ctx, quote("55", "LOCAL", "1.90", t0.Add(time.Minute))); !ok || err != nil {
		t.Fatalf("first apply = %v, %v", ok, err)
	}
	ok, err := c.ApplyUpdate(ctx, quote("55", "LOCAL", "2.40", t0))
	if err != nil || ok {
		t.Fatalf("stale apply = %v, %v; want ignored", ok, err)
	}
	q, _ := c.Quote("55", "LOCAL")
	if !q.CurrentValue.Equal(decimal.RequireFromString("1.90")) {
		t.Fatalf("cache regressed to %s", q.CurrentValue)
	}
}

func TestApplyUpdateIdempotent(t *testing.T) {
	c := New(&fakeSource{}, nil)
	ctx := context.Background()
	q := quote("55", "LOCAL", "1.90", t0)

	for i := 0; i < 3; i++ {
		if _, err := c.ApplyUpdate(ctx, q); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if n := len(c.Quotes("55")); n != 1 {
		t.Fatalf("quotes = %d, want 1", n)
	}
}

func TestApplyUpdateRejectsNonPositive(t *testing.T) {
	c := New(&fakeSource{}, nil)
	_, err := c.ApplyUpdate(context.Background(), quote("55", "LOCAL", "0", t0))
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("kind = %q", apperr.KindOf(err))
	}
}

func TestApplyUpdateDerivesTrend(t *testing.T) {
	c := New(&fakeSource{}, nil)
	ctx := context.Background()

	_, _ = c.ApplyUpdate(ctx, quote("55", "LOCAL", "2.00", t0))
	_, _ = c.ApplyUpdate(ctx, quote("55", "LOCAL", "2.30", t0.Add(time.Second)))

	q, _ := c.Quote("55", "LOCAL")
	if !q.PreviousValue.Equal(decimal.RequireFromString("2.00")) {
		t.Fatalf("previous = %s, want 2.00", q.PreviousValue)
	}
	trends := c.Trends("55", api.TrendFilter{})
	if len(trends) != 1 || trends[0].Direction != api.DirectionUp || !trends[0].PercentChange.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("unexpected trends %+v", trends)
	}
}

func TestLoadOddsReplacesEvent(t *testing.T) {
	src := &fakeSource{odds: []events.OddsQuote{
		quote("55", "LOCAL", "1.90", t0),
		quote("55", "EMPATE", "3.20", t0),
	}}
	c := New(src, nil)
	ctx := context.Background()

	if _, err := c.LoadOdds(ctx, "55"); err != nil {
		t.Fatalf("LoadOdds: %v", err)
	}
	src.odds = []events.OddsQuote{quote("55", "LOCAL", "1.85", t0.Add(time.Second))}
	got, err := c.LoadOdds(ctx, "55")
	if err != nil {
		t.Fatalf("LoadOdds: %v", err)
	}
	if len(got) != 1 || got[0].OutcomeCode != "LOCAL" {
		t.Fatalf("expected replacement, got %+v", got)
	}
	if !c.Status("55").Available {
		t.Fatal("status must be available after success")
	}
}

func TestLoadOddsLatePollDoesNotRegressPush(t *testing.T) {
	src := &fakeSource{odds: []events.OddsQuote{quote("55", "LOCAL", "1.90", t0)}}
	c := New(src, nil)
	ctx := context.Background()

	// push chegou antes da resposta do poll, com timestamp mais novo
	_, _ = c.ApplyUpdate(ctx, quote("55", "LOCAL", "2.10", t0.Add(10*time.Second)))

	if _, err := c.LoadOdds(ctx, "55"); err != nil {
		t.Fatalf("LoadOdds: %v", err)
	}
	q, _ := c.Quote("55", "LOCAL")
	if !q.CurrentValue.Equal(decimal.RequireFromString("2.10")) {
		t.Fatalf("late poll overwrote push: %s", q.CurrentValue)
	}
}

func TestLoadOddsKeepsOutcomePushedDuringPoll(t *testing.T) {
	src := &fakeSource{odds: []events.OddsQuote{quote("55", "LOCAL", "1.90", t0)}}
	c := New(src, nil)
	ctx := context.Background()

	// antigo, aplicado antes do poll: some quando a resposta não o traz
	_, _ = c.ApplyUpdate(ctx, quote("55", "EMPATE", "3.20", t0))
	src.inFlight = func() {
		_, _ = c.ApplyUpdate(ctx, quote("55", "VISITANTE", "4.10", t0.Add(time.Second)))
	}

	got, err := c.LoadOdds(ctx, "55")
	if err != nil {
		t.Fatalf("LoadOdds: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("quotes = %+v, want LOCAL + VISITANTE", got)
	}
	if _, ok := c.Quote("55", "VISITANTE"); !ok {
		t.Fatal("push applied during the poll was dropped")
	}
	if _, ok := c.Quote("55", "EMPATE"); ok {
		t.Fatal("outcome missing from the poll and older than it must be dropped")
	}

	// no poll seguinte o resultado já não é mais recente que o início
	src.inFlight = nil
	if _, err := c.LoadOdds(ctx, "55"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Quote("55", "VISITANTE"); ok {
		t.Fatal("next poll must replace the event again")
	}
}

func TestLoadOddsFailureKeepsCache(t *testing.T) {
	src := &fakeSource{odds: []events.OddsQuote{quote("55", "LOCAL", "1.90", t0)}}
	var loadErrors []string
	c := New(src, nil, WithHooks(Hooks{OnLoadError: func(v string) { loadErrors = append(loadErrors, v) }}))
	ctx := context.Background()

	if _, err := c.LoadOdds(ctx, "55"); err != nil {
		t.Fatalf("LoadOdds: %v", err)
	}
	src.err = apperr.Network("oddsapi.GetOdds", errors.New("timeout"))

	got, err := c.LoadOdds(ctx, "55")
	if apperr.KindOf(err) != apperr.KindFeedUnavailable {
		t.Fatalf("kind = %q", apperr.KindOf(err))
	}
	if len(got) != 1 || !got[0].CurrentValue.Equal(decimal.RequireFromString("1.90")) {
		t.Fatalf("cache not retained: %+v", got)
	}
	if st := c.Status("55"); st.Available || st.LastError == "" {
		t.Fatalf("unexpected status %+v", st)
	}
	if len(loadErrors) != 1 || loadErrors[0] != "odds" {
		t.Fatalf("hooks = %v", loadErrors)
	}
}

func TestVolumeMonotonic(t *testing.T) {
	c := New(&fakeSource{}, nil)
	_, _ = c.ApplyUpdate(context.Background(), quote("55", "LOCAL", "1.90", t0))

	if !c.ApplyVolume(api.VolumeRecord{EventID: "55", OutcomeCode: "LOCAL", TotalStaked: decimal.NewFromInt(100), BetCount: 4}) {
		t.Fatal("first volume must apply")
	}
	if c.ApplyVolume(api.VolumeRecord{EventID: "55", OutcomeCode: "LOCAL", TotalStaked: decimal.NewFromInt(80), BetCount: 5}) {
		t.Fatal("volume regression must be ignored")
	}
	vol := c.Volume("55")
	if len(vol) != 1 || !vol[0].TotalStaked.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("volume = %+v", vol)
	}
	trends := c.Trends("55", api.TrendFilter{})
	if len(trends) != 1 || !trends[0].AggregateVolume.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("trend volume not updated: %+v", trends)
	}
}

func TestLoadVolumeAndStatisticsFailurePolicy(t *testing.T) {
	src := &fakeSource{
		volume: []api.VolumeRecord{{OutcomeCode: "LOCAL", TotalStaked: decimal.NewFromInt(50), BetCount: 2}},
		stats:  api.OddsStatistics{TotalBets: 2},
	}
	c := New(src, nil)
	ctx := context.Background()

	if _, err := c.LoadVolume(ctx, "55"); err != nil {
		t.Fatalf("LoadVolume: %v", err)
	}
	if _, err := c.LoadStatistics(ctx, "55"); err != nil {
		t.Fatalf("LoadStatistics: %v", err)
	}

	src.err = apperr.Network("x", errors.New("down"))
	vol, err := c.LoadVolume(ctx, "55")
	if apperr.KindOf(err) != apperr.KindFeedUnavailable || len(vol) != 1 {
		t.Fatalf("volume fallback = %+v, %v", vol, err)
	}
	st, err := c.LoadStatistics(ctx, "55")
	if apperr.KindOf(err) != apperr.KindFeedUnavailable || st.TotalBets != 2 || st.EventID != "55" {
		t.Fatalf("stats fallback = %+v, %v", st, err)
	}
}

func TestLoadTrendsFilter(t *testing.T) {
	src := &fakeSource{trends: []api.OddsTrend{
		{EventID: "55", OutcomeCode: "LOCAL", CurrentValue: decimal.RequireFromString("2.2"), PercentChange: decimal.RequireFromString("10")},
		{EventID: "55", OutcomeCode: "VISITANTE", CurrentValue: decimal.RequireFromString("3.1"), PercentChange: decimal.RequireFromString("5")},
		{EventID: "56", OutcomeCode: "LOCAL", CurrentValue: decimal.RequireFromString("1.4"), PercentChange: decimal.RequireFromString("-7")},
	}}
	c := New(src, nil)

	up, err := c.LoadTrends(context.Background(), "", api.TrendFilter{Direction: api.DirectionUp})
	if err != nil {
		t.Fatalf("LoadTrends: %v", err)
	}
	if len(up) != 1 || up[0].OutcomeCode != "LOCAL" || up[0].EventID != "55" {
		t.Fatalf("up = %+v", up)
	}
	all := c.Trends("", api.TrendFilter{Limit: 2})
	if len(all) != 2 {
		t.Fatalf("limit not applied: %d", len(all))
	}
}

func TestCloseEvent(t *testing.T) {
	c := New(&fakeSource{}, nil)
	ctx := context.Background()
	_, _ = c.ApplyUpdate(ctx, quote("55", "LOCAL", "1.90", t0))
	c.ApplyVolume(api.VolumeRecord{EventID: "55", OutcomeCode: "LOCAL", TotalStaked: decimal.NewFromInt(5), BetCount: 1})

	c.CloseEvent(ctx, "55")
	if len(c.Quotes("55")) != 0 || len(c.Volume("55")) != 0 || len(c.Trends("55", api.TrendFilter{})) != 0 {
		t.Fatal("event data must be removed on close")
	}
}
