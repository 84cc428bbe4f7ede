// Package bybit is a small REST client for Bybit v5 linear perpetuals:
// market data, instrument metadata, positions and order placement.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/betbot/quanttrader/internal/domain"
	"github.com/betbot/quanttrader/pkg/cache"
)

const (
	MainnetURL = "https://api.bybit.com"
	DemoURL    = "https://api-demo.bybit.com"

	category = "linear"
)

var log = logrus.WithField("component", "bybit")

type Options struct {
	BaseURL    string
	Demo       bool
	APIKey     string
	APISecret  string
	RecvWindow int           // ms
	RateLimit  float64       // requests per second
	Timeout    time.Duration // per HTTP attempt
	RetryCount int           // 0 means default (3), negative disables retries
}

type Client struct {
	http       *resty.Client
	limiter    *rate.Limiter
	apiKey     string
	apiSecret  string
	recvWindow string
	now        func() time.Time

	instruments *cache.InMemoryCache[string, InstrumentInfo]
}

func New(opts Options) *Client {
	base := strings.TrimSuffix(opts.BaseURL, "/")
	if base == "" {
		base = MainnetURL
		if opts.Demo {
			base = DemoURL
		}
	}
	if opts.RecvWindow <= 0 {
		opts.RecvWindow = 5000
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	switch {
	case opts.RetryCount == 0:
		opts.RetryCount = 3
	case opts.RetryCount < 0:
		opts.RetryCount = 0
	}

	hc := resty.New().
		SetBaseURL(base).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			// never retry order placement: a retried POST can double-fill
			if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
		})

	return &Client{
		http:        hc,
		limiter:     rate.NewLimiter(rate.Limit(opts.RateLimit), int(opts.RateLimit)+1),
		apiKey:      opts.APIKey,
		apiSecret:   opts.APISecret,
		recvWindow:  strconv.Itoa(opts.RecvWindow),
		now:         time.Now,
		instruments: cache.NewInMemoryCache[string, InstrumentInfo](time.Hour),
	}
}

// APIError is a non-zero retCode returned by the exchange.
type APIError struct {
	Method string
	Path   string
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit %s %s: retCode=%d retMsg=%s", e.Method, e.Path, e.Code, e.Msg)
}

// Is lets callers match every exchange-side failure as a connectivity error.
func (e *APIError) Is(target error) bool {
	return target == domain.ErrExchangeConnectivity
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

func connectivity(method, path string, err error) error {
	return fmt.Errorf("%w: bybit %s %s: %w", domain.ErrExchangeConnectivity, method, path, err)
}

// get issues a GET; signed requests carry the auth headers.
func (c *Client) get(ctx context.Context, path string, query url.Values, signed bool, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, signed, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, true, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, signed bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return connectivity(method, path, err)
	}

	r := c.http.R().SetContext(ctx).SetHeader("Accept", "application/json")

	var payload string
	if query != nil {
		payload = query.Encode()
		r.SetQueryString(payload)
	}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "bybit: marshal request")
		}
		payload = string(b)
		r.SetHeader("Content-Type", "application/json").SetBody(b)
	}
	if signed {
		if c.apiKey == "" || c.apiSecret == "" {
			return errors.Errorf("bybit %s %s: api key/secret not configured", method, path)
		}
		ts := strconv.FormatInt(c.now().UnixMilli(), 10)
		r.SetHeaders(map[string]string{
			"X-BAPI-API-KEY":     c.apiKey,
			"X-BAPI-TIMESTAMP":   ts,
			"X-BAPI-RECV-WINDOW": c.recvWindow,
			"X-BAPI-SIGN":        sign(c.apiSecret, ts, c.apiKey, c.recvWindow, payload),
		})
	}

	resp, err := r.Execute(method, path)
	if err != nil {
		return connectivity(method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		if !resp.IsSuccess() {
			return connectivity(method, path, errors.Errorf("http %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body()))))
		}
		return connectivity(method, path, errors.Wrap(err, "decode envelope"))
	}
	if env.RetCode != 0 {
		return &APIError{Method: method, Path: path, Code: env.RetCode, Msg: env.RetMsg}
	}
	if !resp.IsSuccess() {
		return connectivity(method, path, errors.Errorf("http %d", resp.StatusCode()))
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return connectivity(method, path, errors.Wrap(err, "decode result"))
	}
	return nil
}
