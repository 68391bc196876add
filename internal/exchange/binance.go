// Package exchange implements the authenticated REST client for a
// Binance-compatible spot exchange.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"pullback-trading-bot/internal/domain"
)

// DefaultBaseURL points at the Binance spot testnet.
const DefaultBaseURL = "https://testnet.binance.vision"

const (
	defaultHTTPTimeout = 10 * time.Second
	quantityPrecision  = 6
)

// UpstreamError reports a failed or malformed exchange response. Callers must
// treat it as transient: log, skip the tick and retry on the next one.
type UpstreamError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("exchange %s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("exchange %s: %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstream(endpoint string, status int, err error) *UpstreamError {
	return &UpstreamError{Endpoint: endpoint, Status: status, Err: err}
}

// Client talks to the exchange REST API. Public market data endpoints are
// unauthenticated; account and order endpoints are signed per request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *Signer

	mu    sync.RWMutex
	creds domain.Credentials
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithClock injects the clock used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.signer = NewSigner(now) }
}

// NewClient creates an exchange client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		signer:     NewSigner(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCredentials installs the credentials used for signed calls for this run.
func (c *Client) SetCredentials(creds domain.Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
}

// ClearCredentials drops the stored credentials.
func (c *Client) ClearCredentials() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = domain.Credentials{}
}

func (c *Client) credentials() domain.Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// ErrNoCredentials is returned when a signed call is attempted before
// credentials were installed. This is a configuration error, not an
// upstream failure.
var ErrNoCredentials = errors.New("exchange credentials are not configured")

func (c *Client) signedCredentials() (domain.Credentials, error) {
	creds := c.credentials()
	if creds.Empty() {
		return domain.Credentials{}, ErrNoCredentials
	}
	return creds, nil
}

// Ping checks connectivity with the exchange.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v3/ping", "", domain.Credentials{}, nil)
}

// CurrentPrice fetches the last traded price for symbol.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var out struct {
		Price string `json:"price"`
	}
	query := "symbol=" + symbol
	if err := c.do(ctx, http.MethodGet, "/api/v3/ticker/price", query, domain.Credentials{}, &out); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(out.Price)
	if err != nil {
		return decimal.Zero, upstream("/api/v3/ticker/price", 0, errors.Wrapf(err, "malformed price %q", out.Price))
	}
	return price, nil
}

// Klines fetches up to limit candlesticks for symbol, oldest first.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Kline, error) {
	var raw [][]any
	query := fmt.Sprintf("symbol=%s&interval=%s&limit=%d", symbol, interval, limit)
	if err := c.do(ctx, http.MethodGet, "/api/v3/klines", query, domain.Credentials{}, &raw); err != nil {
		return nil, err
	}

	klines := make([]domain.Kline, 0, len(raw))
	for i, row := range raw {
		kline, err := parseKline(row)
		if err != nil {
			return nil, upstream("/api/v3/klines", 0, errors.Wrapf(err, "kline %d", i))
		}
		klines = append(klines, kline)
	}
	return klines, nil
}

// ValidateCredentials makes one signed, zero-side-effect account read with the
// candidate credentials. It returns false, not an error, when the exchange
// rejects them; the credentials are not retained either way.
func (c *Client) ValidateCredentials(ctx context.Context, creds domain.Credentials) (bool, error) {
	if creds.Empty() {
		return false, nil
	}
	err := c.do(ctx, http.MethodGet, "/api/v3/account", "", creds, nil)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) && ue.Status >= 400 && ue.Status < 500 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AccountBalance returns the balance of the given quote asset.
func (c *Client) AccountBalance(ctx context.Context, asset string) (domain.Balance, error) {
	var out struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	creds, err := c.signedCredentials()
	if err != nil {
		return domain.Balance{}, err
	}
	if err := c.do(ctx, http.MethodGet, "/api/v3/account", "", creds, &out); err != nil {
		return domain.Balance{}, err
	}

	for _, b := range out.Balances {
		if b.Asset != asset {
			continue
		}
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return domain.Balance{}, upstream("/api/v3/account", 0, errors.Wrapf(err, "malformed free balance %q", b.Free))
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			return domain.Balance{}, upstream("/api/v3/account", 0, errors.Wrapf(err, "malformed locked balance %q", b.Locked))
		}
		return domain.Balance{
			Total:     free.Add(locked),
			Available: free,
			Locked:    locked,
		}, nil
	}
	return domain.Balance{}, nil
}

// PlaceMarketOrder submits a signed market order and returns the exchange
// order id together with the client order id sent with the request.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity decimal.Decimal) (string, error) {
	var out struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Status        string `json:"status"`
	}
	creds, err := c.signedCredentials()
	if err != nil {
		return "", err
	}
	query := fmt.Sprintf("symbol=%s&side=%s&type=MARKET&quantity=%s&newClientOrderId=%s",
		symbol, side, quantity.StringFixed(quantityPrecision), uuid.NewString())
	if err := c.do(ctx, http.MethodPost, "/api/v3/order", query, creds, &out); err != nil {
		return "", err
	}
	return strconv.FormatInt(out.OrderID, 10), nil
}

// Order a historical order as reported by the exchange.
type Order struct {
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Price       string `json:"price"`
	OrigQty     string `json:"origQty"`
	ExecutedQty string `json:"executedQty"`
	Time        int64  `json:"time"`
}

// OrderHistory returns up to limit past orders for symbol.
func (c *Client) OrderHistory(ctx context.Context, symbol string, limit int) ([]Order, error) {
	creds, err := c.signedCredentials()
	if err != nil {
		return nil, err
	}
	var out []Order
	query := fmt.Sprintf("symbol=%s&limit=%d", symbol, limit)
	if err := c.do(ctx, http.MethodGet, "/api/v3/allOrders", query, creds, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do performs a request against the exchange. When creds are supplied the
// query is extended with timestamp+signature and the API key header is set.
func (c *Client) do(ctx context.Context, method, path, query string, creds domain.Credentials, out any) error {
	signed := !creds.Empty()
	if signed {
		var err error
		query, err = c.signer.SignedQuery(creds.SecretKey, query)
		if err != nil {
			return err
		}
	}

	url := c.baseURL + path
	if query != "" {
		url += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return upstream(path, 0, err)
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", creds.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return upstream(path, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return upstream(path, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstream(path, resp.StatusCode, errors.Errorf("%s", truncate(body, 256)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return upstream(path, resp.StatusCode, errors.Wrap(err, "malformed response body"))
	}
	return nil
}

func parseKline(row []any) (domain.Kline, error) {
	if len(row) < 7 {
		return domain.Kline{}, errors.Errorf("expected at least 7 fields, got %d", len(row))
	}

	openTime, ok := row[0].(float64)
	if !ok {
		return domain.Kline{}, errors.New("open time is not a number")
	}
	closeTime, ok := row[6].(float64)
	if !ok {
		return domain.Kline{}, errors.New("close time is not a number")
	}

	fields := make([]decimal.Decimal, 5)
	for i := 1; i <= 5; i++ {
		str, ok := row[i].(string)
		if !ok {
			return domain.Kline{}, errors.Errorf("field %d is not a string", i)
		}
		value, err := decimal.NewFromString(str)
		if err != nil {
			return domain.Kline{}, errors.Wrapf(err, "field %d", i)
		}
		fields[i-1] = value
	}

	return domain.Kline{
		OpenTime:  time.UnixMilli(int64(openTime)),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
		CloseTime: time.UnixMilli(int64(closeTime)),
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
