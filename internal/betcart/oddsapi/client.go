// Package oddsapi é o cliente do colaborador REST de odds e apostas.
// Toda falha de transporte ou HTTP é normalizada em *apperr.Error antes de entrar no core.
package oddsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/radieske/sports-bet-cart/internal/shared/apperr"
	"github.com/radieske/sports-bet-cart/pkg/contracts/api"
	"github.com/radieske/sports-bet-cart/pkg/contracts/events"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(base, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// GetOdds GET /v1/events/{id}/odds
func (c *Client) GetOdds(ctx context.Context, eventID string) ([]events.OddsQuote, error) {
	var out []events.OddsQuote
	err := c.do(ctx, "oddsapi.GetOdds", http.MethodGet, "/v1/events/"+url.PathEscape(eventID)+"/odds", nil, &out)
	return out, err
}

// GetTrends GET /v1/trends; eventID vazio consulta todos os eventos
func (c *Client) GetTrends(ctx context.Context, eventID string, f api.TrendFilter) ([]api.OddsTrend, error) {
	q := url.Values{}
	if eventID != "" {
		q.Set("eventId", eventID)
	}
	if f.Direction != "" {
		q.Set("direction", string(f.Direction))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/v1/trends"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []api.OddsTrend
	err := c.do(ctx, "oddsapi.GetTrends", http.MethodGet, path, nil, &out)
	return out, err
}

// GetVolume GET /v1/events/{id}/volume
func (c *Client) GetVolume(ctx context.Context, eventID string) ([]api.VolumeRecord, error) {
	var out []api.VolumeRecord
	err := c.do(ctx, "oddsapi.GetVolume", http.MethodGet, "/v1/events/"+url.PathEscape(eventID)+"/volume", nil, &out)
	return out, err
}

// GetStatistics GET /v1/events/{id}/statistics
func (c *Client) GetStatistics(ctx context.Context, eventID string) (api.OddsStatistics, error) {
	var out api.OddsStatistics
	err := c.do(ctx, "oddsapi.GetStatistics", http.MethodGet, "/v1/events/"+url.PathEscape(eventID)+"/statistics", nil, &out)
	return out, err
}

// RegisterBet POST /v1/odds/register-bet; o servidor devolve as odds recalculadas
func (c *Client) RegisterBet(ctx context.Context, req api.RegisterBetRequest) ([]events.OddsQuote, error) {
	var out []events.OddsQuote
	err := c.do(ctx, "oddsapi.RegisterBet", http.MethodPost, "/v1/odds/register-bet", req, &out)
	return out, err
}

// CreateBet POST /v1/bets
func (c *Client) CreateBet(ctx context.Context, req api.CreateBetRequest) (api.BetRecord, error) {
	var out api.BetRecord
	err := c.do(ctx, "oddsapi.CreateBet", http.MethodPost, "/v1/bets", req, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return apperr.Network(op, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return statusError(op, res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return apperr.Network(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// statusError traduz o status HTTP: 4xx é erro do pedido, 5xx é transitório
func statusError(op string, res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	msg := strings.TrimSpace(string(raw))

	var er api.ErrorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		msg = er.Error
	}
	cause := fmt.Errorf("http %d: %s", res.StatusCode, msg)

	switch {
	case res.StatusCode == http.StatusNotFound:
		return apperr.Wrap(apperr.KindNotFound, op, cause)
	case res.StatusCode >= 500, res.StatusCode == http.StatusTooManyRequests, res.StatusCode == http.StatusRequestTimeout:
		return apperr.Network(op, cause)
	case res.StatusCode >= 400:
		return apperr.Wrap(apperr.KindValidation, op, cause)
	default:
		return apperr.Network(op, errors.New("unexpected redirect"))
	}
}
