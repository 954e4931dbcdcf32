// Package broker implements the SmartAPI-style HTTP session used to quote the
// underlying future and route option orders.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL       = "https://apiconnect.angelone.in"
	defaultInstrumentURL = "https://margincalculator.angelbroking.com/OpenAPI_File/files/OpenAPIScripMaster.json"

	loginPath = "/rest/auth/angelbroking/user/v1/loginByPassword"
	ltpPath   = "/rest/secure/angelbroking/order/v1/getLtpData"
	orderPath = "/rest/secure/angelbroking/order/v1/placeOrder"
	rmsPath   = "/rest/secure/angelbroking/user/v1/getRMS"
)

// APIError is a well-formed broker response whose status flag is false. For
// order placement the message is the venue's rejection reason.
type APIError struct {
	Message string
}

func (e *APIError) Error() string { return "smartapi: " + e.Message }

// Credentials bundles everything needed to open a session.
type Credentials struct {
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string
}

// Instrument is one row of the downloaded scrip master. A zero LotSize means the
// master omitted it and callers fall back to a configured default.
type Instrument struct {
	Token   string
	Symbol  string
	LotSize int
}

// OrderRequest describes a single market order.
type OrderRequest struct {
	Symbol   string
	Token    string
	Side     string // "BUY" or "SELL"
	Quantity int
}

// Funds reports available and used margin.
type Funds struct {
	Available float64 `json:"available"`
	Used      float64 `json:"used"`
}

// Client is a stateful SmartAPI session: login tokens plus the instrument map.
type Client struct {
	creds      Credentials
	baseURL    string
	instURL    string
	underlying string
	expiry     string
	httpClient *http.Client
	log        zerolog.Logger

	mu          sync.RWMutex
	jwtToken    string
	feedToken   string
	instruments map[string]Instrument
}

// Option configures Client construction parameters.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithInstrumentURL overrides where the scrip master is downloaded from.
func WithInstrumentURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.instURL = u
		}
	}
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// NewClient builds an unauthenticated session for the given underlying and
// expiry. Call Login before quoting or trading.
func NewClient(creds Credentials, underlying, expiry string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		creds:       creds,
		baseURL:     defaultBaseURL,
		instURL:     defaultInstrumentURL,
		underlying:  strings.ToUpper(underlying),
		expiry:      strings.ToUpper(expiry),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		log:         log,
		instruments: make(map[string]Instrument),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login opens a session using a freshly generated TOTP, then downloads the
// instrument master so symbols can be resolved locally.
func (c *Client) Login(ctx context.Context) error {
	code, err := totp.GenerateCode(c.creds.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("generate totp: %w", err)
	}

	payload := map[string]string{
		"clientcode": c.creds.ClientCode,
		"password":   c.creds.Password,
		"totp":       code,
	}
	var data struct {
		JWTToken  string `json:"jwtToken"`
		FeedToken string `json:"feedToken"`
	}
	if err := c.call(ctx, http.MethodPost, loginPath, payload, &data); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if data.JWTToken == "" {
		return fmt.Errorf("login: response carried no session token")
	}

	c.mu.Lock()
	c.jwtToken = data.JWTToken
	c.feedToken = data.FeedToken
	c.mu.Unlock()
	c.log.Info().Str("client", c.creds.ClientCode).Msg("logged in to broker")

	return c.fetchInstruments(ctx)
}

// IsConnected reports whether a live session is held.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feedToken != ""
}

// fetchInstruments downloads the full scrip master and indexes it by trading
// symbol.
func (c *Client) fetchInstruments(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.instURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download instrument list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("instrument list: unexpected status %d", resp.StatusCode)
	}

	var rows []struct {
		Token   string `json:"token"`
		Symbol  string `json:"symbol"`
		LotSize string `json:"lotsize"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return fmt.Errorf("decode instrument list: %w", err)
	}

	index := make(map[string]Instrument, len(rows))
	for _, row := range rows {
		if row.Symbol == "" {
			continue
		}
		lot, _ := strconv.Atoi(row.LotSize)
		index[row.Symbol] = Instrument{Token: row.Token, Symbol: row.Symbol, LotSize: lot}
	}

	c.mu.Lock()
	c.instruments = index
	c.mu.Unlock()
	c.log.Info().Int("count", len(index)).Msg("instrument master downloaded")
	return nil
}

// Instrument resolves a trading symbol against the downloaded master.
func (c *Client) Instrument(symbol string) (Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.instruments[symbol]
	return inst, ok
}

// FutureLTP returns the last traded price of the underlying's future contract.
func (c *Client) FutureLTP(ctx context.Context) (float64, error) {
	symbol := c.underlying + c.expiry + "FUT"
	inst, ok := c.Instrument(symbol)
	if !ok {
		return 0, fmt.Errorf("no token for future symbol %s", symbol)
	}

	payload := map[string]string{
		"exchange":      "NFO",
		"tradingsymbol": symbol,
		"symboltoken":   inst.Token,
	}
	var data struct {
		LTP float64 `json:"ltp"`
	}
	if err := c.call(ctx, http.MethodPost, ltpPath, payload, &data); err != nil {
		return 0, err
	}
	if data.LTP <= 0 {
		return 0, fmt.Errorf("quote for %s carried no ltp", symbol)
	}
	return data.LTP, nil
}

// PlaceOrder submits a market order and returns the venue-assigned order id.
// Rejections surface as *APIError with the venue's reason.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	payload := map[string]string{
		"variety":         "NORMAL",
		"tradingsymbol":   req.Symbol,
		"symboltoken":     req.Token,
		"transactiontype": req.Side,
		"exchange":        "NFO",
		"ordertype":       "MARKET",
		"producttype":     "CARRYFORWARD",
		"duration":        "DAY",
		"quantity":        strconv.Itoa(req.Quantity),
	}
	var data struct {
		OrderID string `json:"orderid"`
	}
	if err := c.call(ctx, http.MethodPost, orderPath, payload, &data); err != nil {
		return "", err
	}
	if data.OrderID == "" {
		return "", &APIError{Message: "response carried no order id"}
	}
	c.log.Info().
		Str("symbol", req.Symbol).
		Str("side", req.Side).
		Int("qty", req.Quantity).
		Str("order_id", data.OrderID).
		Msg("order placed")
	return data.OrderID, nil
}

// GetFunds reports the account's available and used margin.
func (c *Client) GetFunds(ctx context.Context) (Funds, error) {
	var data struct {
		AvailableCash string `json:"availablecash"`
		MarginUsed    string `json:"marginused"`
	}
	if err := c.call(ctx, http.MethodGet, rmsPath, nil, &data); err != nil {
		return Funds{}, err
	}
	available, _ := strconv.ParseFloat(data.AvailableCash, 64)
	used, _ := strconv.ParseFloat(data.MarginUsed, 64)
	return Funds{Available: available, Used: used}, nil
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call performs one API request and decodes the data payload of a successful
// envelope into out.
func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PrivateKey", c.creds.APIKey)
	c.mu.RLock()
	if c.jwtToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.jwtToken)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Status || len(env.Data) == 0 || string(env.Data) == "null" {
		msg := env.Message
		if msg == "" {
			msg = "unknown error from API"
		}
		return &APIError{Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
