// Package hz is the connector for the HZ OTC trading platform.
//
// Only the read endpoints the product catalog needs are exposed. All calls
// go through pkg/httputil (retry, rate limiting, logging) and carry a
// bearer token obtained with the OAuth password grant.
package hz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wonny/rfqnorm/backend/pkg/config"
	"github.com/wonny/rfqnorm/backend/pkg/httputil"
	"github.com/wonny/rfqnorm/backend/pkg/logger"
	"github.com/wonny/rfqnorm/backend/pkg/redis"
)

const (
	tokenPath = "/auth/oauth/token"

	// tokens are treated as expired this long before the server says so
	tokenSafetyWindow = 120 * time.Second
	defaultTokenTTL   = 55 * time.Minute

	// business code the platform uses for an expired session
	codeUnauthorized = 401
)

var (
	// ErrInvalidAddress is returned for an empty or scheme-less base address
	ErrInvalidAddress = errors.New("hz: invalid base address")
	// ErrLoginFailed is returned when the token endpoint rejects the credentials
	ErrLoginFailed = errors.New("hz: login failed")
)

// Client talks to the HZ API
// ⭐ SSOT: HZ API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.HZConfig
	address    string

	// Token management
	tokenMu      sync.Mutex
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time
	now          func() time.Time
}

// NewClient validates the address and wraps httpClient
func NewClient(cfg config.HZConfig, httpClient *httputil.Client, log *logger.Logger) (*Client, error) {
	address, err := normalizeAddress(cfg.Address)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		httpClient: httpClient,
		logger:     log.Component("hz"),
		cfg:        cfg,
		address:    address,
		now:        time.Now,
	}, nil
}

// NewFromConfig builds the HTTP client too: HZ timeout and connection
// limit, an in-process token bucket at HZ_RATE_PER_SECOND and, when redis
// is enabled, the shared sliding-window limiter.
func NewFromConfig(cfg *config.Config, rdb *redis.Client, log *logger.Logger) (*Client, error) {
	httpClient := httputil.New(cfg, log).
		WithRetry(2, 500*time.Millisecond).
		WithLimiter(float64(cfg.HZ.RatePerSecond), 1)

	if rdb != nil && rdb.Enabled() {
		httpClient.WithRateLimiter(redis.NewRateLimiter(rdb, redis.DefaultPrefix), redis.HZRateLimit(cfg.HZ.RatePerSecond))
	}
	return NewClient(cfg.HZ, httpClient, log)
}

// Address returns the normalized base address
func (c *Client) Address() string {
	return c.address
}

func normalizeAddress(raw string) (string, error) {
	address := strings.TrimRight(strings.TrimSpace(raw), "/")
	if address == "" {
		return "", fmt.Errorf("%w: address is empty (set HZ_ADDRESS)", ErrInvalidAddress)
	}
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		return "", fmt.Errorf("%w: %q must start with http:// or https://", ErrInvalidAddress, address)
	}
	return address, nil
}

// envelope is the {code, message, data} wrapper of every HZ response
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type tokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresInAlt int    `json:"expiresIn"`
}

// getToken returns a valid access token, refreshing or logging in as needed.
// A failed refresh falls back to one fresh login.
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	if c.refreshToken != "" {
		err := c.requestToken(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {c.refreshToken},
		})
		if err == nil {
			c.logger.Info("HZ token refreshed")
			return c.accessToken, nil
		}
		c.logger.WithError(err).Warn("HZ token refresh failed, logging in again")
	}

	c.logger.Info("HZ logging in")
	if err := c.requestToken(ctx, url.Values{
		"username":   {c.cfg.Username},
		"password":   {c.cfg.Password},
		"grant_type": {"password"},
		"user_type":  {"user"},
	}); err != nil {
		return "", err
	}

	c.logger.WithField("expires_at", c.tokenExpiry.Format(time.RFC3339)).Info("HZ login success")
	return c.accessToken, nil
}

// requestToken posts a grant to the token endpoint; caller holds tokenMu
func (c *Client) requestToken(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.address+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var env envelope
	if err := c.httpClient.DoJSON(req, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if env.Code != 0 {
		return fmt.Errorf("%w: code %d: %s", ErrLoginFailed, env.Code, env.Message)
	}

	var data tokenData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return fmt.Errorf("%w: decode token: %v", ErrLoginFailed, err)
		}
	}
	if data.AccessToken == "" {
		return fmt.Errorf("%w: response has no access_token", ErrLoginFailed)
	}

	c.accessToken = data.AccessToken
	if data.RefreshToken != "" {
		c.refreshToken = data.RefreshToken
	}

	expiresIn := data.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = data.ExpiresInAlt
	}
	ttl := defaultTokenTTL
	if expiresIn > 0 {
		ttl = time.Duration(expiresIn)*time.Second - tokenSafetyWindow
		if ttl < 0 {
			ttl = 0
		}
	}
	c.tokenExpiry = c.now().Add(ttl)
	return nil
}

// invalidate forces the next getToken to refresh
func (c *Client) invalidate() {
	c.tokenMu.Lock()
	c.tokenExpiry = time.Time{}
	c.tokenMu.Unlock()
}

// request makes an authenticated JSON call and decodes the data field into
// out. An HTTP 401 or a business code 401 invalidates the token and the
// call is retried once.
func (c *Client) request(ctx context.Context, method, endpoint string, body, out interface{}) error {
	const retries = 1
	target := c.address + "/" + strings.TrimLeft(endpoint, "/")

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}

	for attempt := 0; attempt <= retries; attempt++ {
		token, err := c.getToken(ctx)
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}

		var reader *bytes.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := newJSONRequest(ctx, method, target, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		var env envelope
		err = c.httpClient.DoJSON(req, &env)

		var se *httputil.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized && attempt < retries {
			c.logger.WithField("endpoint", endpoint).Warn("HZ unauthorized (401), refreshing token")
			c.invalidate()
			continue
		}
		if err != nil {
			return fmt.Errorf("hz %s %s: %w", method, endpoint, err)
		}

		if env.Code == codeUnauthorized && attempt < retries {
			c.logger.WithField("endpoint", endpoint).Warn("HZ business 401, refreshing token")
			c.invalidate()
			continue
		}

		if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("hz %s %s: decode data: %w", method, endpoint, err)
		}
		return nil
	}

	return fmt.Errorf("hz %s %s: still unauthorized after %d attempts", method, endpoint, retries+1)
}

func newJSONRequest(ctx context.Context, method, target string, body *bytes.Reader) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, target, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, target, body)
	}
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
